package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() RawRecord {
	return RawRecord{
		Provider:     "waqi",
		Source:       "ground_station",
		Gas:          "pm25",
		Lat:          Float(28.6),
		Lon:          Float(77.2),
		Value:        Float(180),
		LocationName: "Delhi",
		Timestamp:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestNormalize_Accepted(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { SetClock(nil) })

	m, err := Normalize(validRecord(), Rules{Area: IndiaBounds})
	require.NoError(t, err)

	assert.Equal(t, StatusAccepted, m.Status)
	assert.True(t, m.Valid())
	assert.Equal(t, GasPM25, m.Gas)
	assert.Equal(t, SourceGroundStation, m.Source)
	assert.Equal(t, "µg/m³", m.Unit)
	assert.Equal(t, CategoryUnhealthy, m.Category)
	assert.Equal(t, Color("#FF0000"), m.Color)
	assert.Equal(t, fixed, m.IngestedAt)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), m.Timestamp)
	assert.Contains(t, m.ID, "pm25-")
}

func TestNormalize_DeterministicID(t *testing.T) {
	a, err := Normalize(validRecord(), Rules{})
	require.NoError(t, err)
	b, err := Normalize(validRecord(), Rules{})
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	other := validRecord()
	other.Value = Float(181)
	c, err := Normalize(other, Rules{})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestNormalize_MissingTimestampUsesClock(t *testing.T) {
	fixed := time.Date(2026, 5, 5, 5, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { SetClock(nil) })

	rec := validRecord()
	rec.Timestamp = time.Time{}
	m, err := Normalize(rec, Rules{})
	require.NoError(t, err)
	assert.Equal(t, fixed, m.Timestamp)
}

func TestNormalize_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RawRecord)
		source Source
	}{
		{"missing lat", func(r *RawRecord) { r.Lat = nil }, SourceGroundStation},
		{"missing lon", func(r *RawRecord) { r.Lon = nil }, SourceGroundStation},
		{"missing gas", func(r *RawRecord) { r.Gas = "" }, SourceGroundStation},
		{"unknown gas", func(r *RawRecord) { r.Gas = "radon" }, SourceGroundStation},
		{"missing value", func(r *RawRecord) { r.Value = nil }, SourceGroundStation},
		{"negative value", func(r *RawRecord) { r.Value = Float(-1) }, SourceGroundStation},
		{"lat out of range", func(r *RawRecord) { r.Lat = Float(91) }, SourceGroundStation},
		{"lon out of range", func(r *RawRecord) { r.Lon = Float(-181) }, SourceGroundStation},
		{"unknown source", func(r *RawRecord) { r.Source = "balloon" }, SourceUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)

			m, err := Normalize(rec, Rules{})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedRecord)
			assert.Equal(t, StatusRejected, m.Status)
			assert.Equal(t, tt.source, m.Source)

			var recErr *RecordError
			assert.True(t, errors.As(err, &recErr))
			assert.NotEmpty(t, recErr.Reason)
		})
	}
}

func TestNormalize_Quarantined(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RawRecord)
	}{
		{"absent location", func(r *RawRecord) { r.LocationName = "" }},
		{"unknown location", func(r *RawRecord) { r.LocationName = "unknown" }},
		{"implausible value", func(r *RawRecord) { r.Value = Float(1000.5) }},
		{"outside area", func(r *RawRecord) { r.Lat, r.Lon = Float(51.5), Float(-0.12) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)

			m, err := Normalize(rec, Rules{Area: IndiaBounds})
			require.Error(t, err)
			assert.True(t, IsQuarantined(err))
			assert.False(t, m.Valid())
			assert.Equal(t, StatusQuarantined, m.Status)
			assert.Equal(t, CategoryUnknown, m.Category)
			assert.NotEmpty(t, m.Reason)
			assert.NotEmpty(t, m.ID)
		})
	}
}

func TestNormalize_CeilingIsInclusive(t *testing.T) {
	rec := validRecord()
	rec.Value = Float(1000)
	m, err := Normalize(rec, Rules{})
	require.NoError(t, err)
	assert.Equal(t, CategoryHazardous, m.Category)

	rec.Value = Float(40)
	_, err = Normalize(rec, Rules{Ceiling: 30})
	assert.True(t, IsQuarantined(err))
}

func TestNormalize_ConvertsToNativeUnit(t *testing.T) {
	tests := []struct {
		name  string
		gas   string
		unit  string
		value float64
		want  float64
		wantU string
	}{
		{"co micrograms", "co", "µg/m³", 900, 0.9, "mg/m³"},
		{"co ascii micrograms", "co", "ug/m3", 900, 0.9, "mg/m³"},
		{"co native", "co", "mg/m3", 0.9, 0.9, "mg/m³"},
		{"pm25 milligrams", "pm25", "mg/m³", 0.18, 180, "µg/m³"},
		{"pm25 greek mu", "pm25", "μg/m³", 180, 180, "µg/m³"},
		{"no2 ppb", "no2", "ppb", 24.45, 46.01, "µg/m³"},
		{"co ppm", "co", "ppm", 1, 28.01 / 24.45, "mg/m³"},
		{"absent unit", "o3", "", 70, 70, "µg/m³"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			rec.Gas, rec.Unit, rec.Value = tt.gas, tt.unit, Float(tt.value)

			m, err := Normalize(rec, Rules{})
			require.NoError(t, err)
			assert.InDelta(t, tt.want, m.Value, 1e-9)
			assert.Equal(t, tt.wantU, m.Unit)
		})
	}
}

func TestNormalize_ClassifiesConvertedValue(t *testing.T) {
	rec := validRecord()
	rec.Gas, rec.Unit, rec.Value = "co", "µg/m³", Float(900)

	m, err := Normalize(rec, Rules{})
	require.NoError(t, err)
	assert.Equal(t, CategoryGood, m.Category, "900 µg/m³ is 0.9 mg/m³")

	// 1500 mg/m³ of PM2.5 is far above the ceiling once converted.
	rec.Gas, rec.Unit, rec.Value = "pm25", "mg/m³", Float(1.5)
	m, err = Normalize(rec, Rules{})
	assert.True(t, IsQuarantined(err))
	assert.Equal(t, "implausible value", m.Reason)
}

func TestNormalize_UnknownUnitQuarantined(t *testing.T) {
	for _, tc := range []struct{ gas, unit string }{
		{"pm25", "furlongs"},
		{"pm25", "ppb"}, // particulates have no molar mass
	} {
		rec := validRecord()
		rec.Gas, rec.Unit = tc.gas, tc.unit

		m, err := Normalize(rec, Rules{})
		require.Error(t, err, tc.unit)
		assert.True(t, IsQuarantined(err))
		assert.Equal(t, StatusQuarantined, m.Status)
		assert.Equal(t, "unknown unit", m.Reason)
		assert.Equal(t, tc.unit, m.Unit)
		assert.Equal(t, CategoryUnknown, m.Category)
	}
}

func TestMeasurementKey(t *testing.T) {
	m := Measurement{Geo: Geo{Lat: 28.612345, Lon: 77.209876}, Gas: GasNO2}
	assert.Equal(t, Key{Lat: 28.6123, Lon: 77.2099, Gas: GasNO2}, m.Key(4))
	assert.Equal(t, Key{Lat: 28.6, Lon: 77.2, Gas: GasNO2}, m.Key(1))
}
