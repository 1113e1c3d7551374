package domain

import (
	"fmt"
	"strings"
)

// Gas identifies a pollutant.
type Gas string

const (
	GasPM25 Gas = "pm25"
	GasPM10 Gas = "pm10"
	GasNO2  Gas = "no2"
	GasSO2  Gas = "so2"
	GasCO   Gas = "co"
	GasO3   Gas = "o3"
)

// Gases lists every supported pollutant in display order.
var Gases = []Gas{GasPM25, GasPM10, GasNO2, GasSO2, GasCO, GasO3}

// GasInfo is the static description of a pollutant.
type GasInfo struct {
	Name string
	Unit string
	// Thresholds are inclusive upper bounds for Good through Very Unhealthy.
	Thresholds [5]float64
}

var gasInfo = map[Gas]GasInfo{
	GasPM25: {Name: "PM2.5", Unit: "µg/m³", Thresholds: [5]float64{50, 100, 150, 200, 300}},
	GasPM10: {Name: "PM10", Unit: "µg/m³", Thresholds: [5]float64{100, 200, 250, 350, 430}},
	GasNO2:  {Name: "NO₂", Unit: "µg/m³", Thresholds: [5]float64{40, 80, 120, 160, 200}},
	GasSO2:  {Name: "SO₂", Unit: "µg/m³", Thresholds: [5]float64{20, 40, 60, 80, 100}},
	GasCO:   {Name: "CO", Unit: "mg/m³", Thresholds: [5]float64{1, 2, 4, 6, 10}},
	GasO3:   {Name: "O₃", Unit: "µg/m³", Thresholds: [5]float64{60, 120, 160, 200, 240}},
}

// Info returns the static description of g. Unknown gases report false.
func (g Gas) Info() (GasInfo, bool) {
	info, ok := gasInfo[g]
	return info, ok
}

// Unit returns the native unit of g, or "" for an unknown gas.
func (g Gas) Unit() string {
	return gasInfo[g].Unit
}

// Particulate reports whether g is a particulate matter fraction, the only
// pollutants precipitation washes out.
func (g Gas) Particulate() bool {
	return g == GasPM25 || g == GasPM10
}

// Valid reports whether g is one of the supported gases.
func (g Gas) Valid() bool {
	_, ok := gasInfo[g]
	return ok
}

// ParseGas folds a provider-native pollutant name into a Gas.
// Accepts canonical identifiers as well as common spellings like "PM2.5",
// "pm2_5" and "NO2".
func ParseGas(s string) (Gas, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer(".", "", "_", "", "-", "", " ", "", "₂", "2", "₃", "3").Replace(v)
	g := Gas(v)
	if g.Valid() {
		return g, nil
	}
	if s == "" {
		return "", fmt.Errorf("%w: gas is empty", ErrUnknownGas)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGas, s)
}

// Source identifies the provenance of a measurement.
type Source string

const (
	SourceGroundStation  Source = "ground_station"
	SourceSatelliteGrid  Source = "satellite_grid"
	SourceSatelliteProxy Source = "satellite_proxy"
	// SourceUnknown buckets rejected records whose source could not be read.
	SourceUnknown Source = "unknown"
)

// Sources lists the known provenances.
var Sources = []Source{SourceGroundStation, SourceSatelliteGrid, SourceSatelliteProxy}

// ParseSource normalizes a source tag. Unrecognized tags map to SourceUnknown
// with an error.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ground_station", "ground", "station":
		return SourceGroundStation, nil
	case "satellite_grid", "satellite", "grid":
		return SourceSatelliteGrid, nil
	case "satellite_proxy", "proxy", "aod":
		return SourceSatelliteProxy, nil
	default:
		return SourceUnknown, fmt.Errorf("%w: unknown source %q", ErrMalformedRecord, s)
	}
}
