package domain

import (
	"context"
	"log/slog"
)

// Label sources.
const (
	LabelReported = "reported" // modal name carried by the measurements
	LabelReverse  = "reverse"
	LabelStatic   = "static"
	LabelFailed   = "failed"
)

// PlaceName is a resolved human label for a coordinate.
type PlaceName struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// ResolvePlace labels g. It asks the geocoder when one is configured and
// falls back to the nearest known city otherwise, so a provider outage
// degrades the label but never the query.
func ResolvePlace(ctx context.Context, g Geo, geocoder ReverseGeocoder, logger *slog.Logger) PlaceName {
	static := PlaceName{Name: PlaceLabel(g), Source: LabelStatic}
	if geocoder == nil {
		return static
	}

	result, err := geocoder.ReverseGeocode(ctx, g)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", g.Lat,
			"lon", g.Lon,
			"error", err,
		)
		static.Source = LabelFailed
		return static
	}
	if result.Name == "" {
		return static
	}
	return PlaceName{Name: result.Name, Source: LabelReverse}
}
