package telemetry

// Span attribute keys shared by upstream adapters.
const (
	AttrGeocodeQuery   = "geocode.query"
	AttrRouteType      = "transit.route_type"
	AttrRouteRef       = "transit.ref"
	AttrRouteWays      = "transit.ways"
	AttrUpstreamStatus = "upstream.status_code"
	AttrListingID      = "listing.id"
)
