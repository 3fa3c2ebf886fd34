package domain

import "time"

// Listing is an apartment listing as seen by the location engine.
type Listing struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Address    string    `json:"address"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	PriceCents int64     `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
}

// Coordinates implements GeoTagged. A listing with either coordinate
// missing is not geo-tagged.
func (l Listing) Coordinates() (lat, lon float64, ok bool) {
	if l.Latitude == nil || l.Longitude == nil {
		return 0, 0, false
	}
	return *l.Latitude, *l.Longitude, true
}

// ListingCreatedEvent is emitted when a listing is stored without a
// confirmed location.
type ListingCreatedEvent struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// ListingGeocodedEvent is emitted once a listing address has been resolved.
type ListingGeocodedEvent struct {
	EventID   string    `json:"event_id"`
	ID        string    `json:"id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Name      string    `json:"name"`
	At        time.Time `json:"at"`
}

// ListingGeocodeFailedEvent is emitted when an address could not be resolved.
type ListingGeocodeFailedEvent struct {
	EventID string    `json:"event_id"`
	ID      string    `json:"id"`
	Address string    `json:"address"`
	At      time.Time `json:"at"`
}
