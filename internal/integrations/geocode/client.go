package geocode

import "context"

// Point is one resolved location: normalized text plus coordinates.
type Point struct {
	Text string
	Lat  float64
	Lng  float64
}

// Suggestion is one autocomplete entry for a partial address.
type Suggestion struct {
	Description string
	PlaceID     string
}

// Client is the places/geocoding provider boundary. All lookups are
// best-effort from the caller's point of view: a failure never blocks a
// submission, it just leaves the coordinates empty.
type Client interface {
	// Geocode resolves free text to at most one point. found=false is a
	// normal outcome, not an error.
	Geocode(ctx context.Context, text string) (p Point, found bool, err error)

	// ReverseGeocode resolves coordinates to a human-readable address,
	// preferring results without an encoded-location fallback marker.
	ReverseGeocode(ctx context.Context, lat, lng float64) (text string, found bool, err error)

	// Suggestions returns ordered autocomplete entries for a partial input.
	Suggestions(ctx context.Context, input string) ([]Suggestion, error)

	// PlaceDetails resolves a suggestion's place id to text + coordinates.
	PlaceDetails(ctx context.Context, placeID string) (Point, error)
}
