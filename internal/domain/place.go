package domain

import (
	"math"
	"strings"
)

// nearRadiusKm is the distance beyond which a place label gets the "Near "
// prefix. Roughly half a degree of latitude.
const nearRadiusKm = 55.0

// Place is a named location with a prior characteristic PM2.5 level.
type Place struct {
	Name        string  `json:"name"`
	Geo         Geo     `json:"geo"`
	BaselineAvg float64 `json:"baseline_avg"`
	BaselineStd float64 `json:"baseline_std"`
}

// Places are the named forecast locations with their PM2.5 baselines in µg/m³.
var Places = []Place{
	{Name: "Delhi", Geo: Geo{28.61, 77.21}, BaselineAvg: 180, BaselineStd: 45},
	{Name: "Mumbai", Geo: Geo{19.08, 72.88}, BaselineAvg: 95, BaselineStd: 25},
	{Name: "Bangalore", Geo: Geo{12.97, 77.59}, BaselineAvg: 65, BaselineStd: 18},
	{Name: "Chennai", Geo: Geo{13.08, 80.27}, BaselineAvg: 55, BaselineStd: 15},
	{Name: "Kolkata", Geo: Geo{22.57, 88.36}, BaselineAvg: 120, BaselineStd: 32},
	{Name: "Hyderabad", Geo: Geo{17.39, 78.49}, BaselineAvg: 75, BaselineStd: 20},
	{Name: "Pune", Geo: Geo{18.52, 73.86}, BaselineAvg: 70, BaselineStd: 18},
	{Name: "Ahmedabad", Geo: Geo{23.02, 72.57}, BaselineAvg: 110, BaselineStd: 28},
	{Name: "Lucknow", Geo: Geo{26.85, 80.95}, BaselineAvg: 150, BaselineStd: 40},
	{Name: "Patna", Geo: Geo{25.59, 85.14}, BaselineAvg: 170, BaselineStd: 42},
	{Name: "Jaipur", Geo: Geo{26.91, 75.79}, BaselineAvg: 130, BaselineStd: 35},
	{Name: "Kanpur", Geo: Geo{26.45, 80.33}, BaselineAvg: 160, BaselineStd: 38},
	{Name: "Bhopal", Geo: Geo{23.26, 77.41}, BaselineAvg: 85, BaselineStd: 22},
	{Name: "Surat", Geo: Geo{21.17, 72.83}, BaselineAvg: 90, BaselineStd: 24},
	{Name: "Visakhapatnam", Geo: Geo{17.69, 83.22}, BaselineAvg: 50, BaselineStd: 14},
}

// LookupPlace finds a named place case-insensitively.
func LookupPlace(name string) (Place, bool) {
	name = strings.TrimSpace(name)
	for _, p := range Places {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Place{}, false
}

// Baseline returns the prior level of p for gas. Non-PM2.5 baselines are
// scaled by the ratio of the gas's Moderate threshold to PM2.5's.
func (p Place) Baseline(gas Gas) float64 {
	if gas == GasPM25 {
		return p.BaselineAvg
	}
	info, ok := gasInfo[gas]
	if !ok {
		return p.BaselineAvg
	}
	return p.BaselineAvg * info.Thresholds[1] / gasInfo[GasPM25].Thresholds[1]
}

// NearestPlace returns the closest named place to g and its distance in km.
func NearestPlace(g Geo) (Place, float64) {
	best, bestDist := Places[0], math.Inf(1)
	for _, p := range Places {
		if d := Haversine(g, p.Geo); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, bestDist
}

// PlaceLabel names the nearest known place, prefixed with "Near " when the
// point is farther than about half a degree from it.
func PlaceLabel(g Geo) string {
	p, d := NearestPlace(g)
	if d > nearRadiusKm {
		return "Near " + p.Name
	}
	return p.Name
}
