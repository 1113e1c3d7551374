package domain

import "context"

// PlaceResult is what a reverse geocoding provider knows about a coordinate.
type PlaceResult struct {
	Name             string
	FormattedAddress string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// ReverseGeocoder names coordinates. Implementations may call external
// services and must honor ctx.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, g Geo) (PlaceResult, error)
}
