package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMovement(t *testing.T) {
	// Wind from the east blows pollutants west.
	mv := WeatherCondition{WindSpeed: 10, WindAngle: 90}.Movement()
	assert.InDelta(t, -10, mv.U, 1e-9)
	assert.InDelta(t, 0, mv.V, 1e-9)
	assert.Equal(t, 10.0, mv.Magnitude)
	assert.InDelta(t, 270, mv.Bearing, 1e-9)
	assert.Equal(t, "West", mv.Cardinal)

	mv = WeatherCondition{WindSpeed: 4, WindAngle: 0}.Movement()
	assert.InDelta(t, -4, mv.V, 1e-9)
	assert.Equal(t, "South", mv.Cardinal)
}

func TestPrecipitating(t *testing.T) {
	assert.True(t, WeatherCondition{Precip: 0.2}.Precipitating(0.05))
	assert.False(t, WeatherCondition{Precip: 0.05}.Precipitating(0.05))
	assert.True(t, WeatherCondition{Raining: true}.Precipitating(0.05))
}
