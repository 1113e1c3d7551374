package domain

import (
	"math"
	"time"
)

// WeatherCondition is one wind/precipitation observation from the weather
// collaborator, keyed by the same coordinate space as measurements.
type WeatherCondition struct {
	Geo          Geo       `json:"geo"`
	LocationName string    `json:"location_name,omitempty"`
	WindSpeed    float64   `json:"wind_speed"` // km/h
	WindAngle    float64   `json:"wind_angle"` // degrees, direction the wind blows from
	Precip       float64   `json:"precipitation"`
	Raining      bool      `json:"raining"`
	ObservedAt   time.Time `json:"observed_at,omitzero"`
}

// MovementVector is the plume drift implied by a wind observation.
type MovementVector struct {
	U         float64 `json:"u"` // eastward component, km/h
	V         float64 `json:"v"` // northward component, km/h
	Magnitude float64 `json:"magnitude"`
	Bearing   float64 `json:"bearing"` // direction of drift, degrees
	Cardinal  string  `json:"cardinal"`
}

// Movement converts a wind observation into its drift vector. Wind angle is
// meteorological, so pollutants drift toward angle+180.
func (w WeatherCondition) Movement() MovementVector {
	theta := w.WindAngle * math.Pi / 180
	bearing := math.Mod(w.WindAngle+180, 360)
	if bearing < 0 {
		bearing += 360
	}
	return MovementVector{
		U:         -w.WindSpeed * math.Sin(theta),
		V:         -w.WindSpeed * math.Cos(theta),
		Magnitude: w.WindSpeed,
		Bearing:   bearing,
		Cardinal:  Cardinal(bearing),
	}
}

// Precipitating reports whether precipitation is active given the washout
// threshold in millimeters.
func (w WeatherCondition) Precipitating(thresholdMM float64) bool {
	return w.Raining || w.Precip > thresholdMM
}
