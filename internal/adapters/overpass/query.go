package overpass

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samirrijal/casahunt/internal/core/domain"
)

// categoryTags maps route types to OSM route=* values.
var categoryTags = map[domain.TransitRouteType]string{
	domain.RouteTypeSubway: "subway",
	domain.RouteTypeTram:   "tram",
	domain.RouteTypeBus:    "bus",
}

// CategoryTag returns the OSM route=* value for t.
func CategoryTag(t domain.TransitRouteType) (string, bool) {
	tag, ok := categoryTags[t]
	return tag, ok
}

// RefExpression builds the anchored regex matched against the ref tag.
// Subway lines are often tagged "M2" instead of "2", so both are accepted.
func RefExpression(t domain.TransitRouteType, ref string) string {
	r := regexp.QuoteMeta(ref)
	if t == domain.RouteTypeSubway {
		return "^(" + r + "|M" + r + ")$"
	}
	return "^" + r + "$"
}

// escapeString escapes s for use inside a double-quoted Overpass QL string.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// BuildQuery renders the Overpass QL selecting every way of the matching
// route relations within the search radius.
func BuildQuery(q domain.RouteQuery, timeoutSeconds int) (string, error) {
	tag, ok := CategoryTag(q.RouteType)
	if !ok {
		return "", fmt.Errorf("unsupported route type %q", q.RouteType)
	}
	return fmt.Sprintf(`[out:json][timeout:%d];
relation["type"="route"]["route"="%s"]["ref"~"%s"](around:%d,%.6f,%.6f);
way(r);
out geom;`,
		timeoutSeconds, tag, escapeString(RefExpression(q.RouteType, q.Ref)),
		q.RadiusMeters, q.Center.Latitude, q.Center.Longitude,
	), nil
}
