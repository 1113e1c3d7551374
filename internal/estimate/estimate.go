// Package estimate answers point queries by inverse-distance weighting over
// the fused measurement points of one gas.
package estimate

import (
	"fmt"
	"math"
	"slices"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
	"github.com/couchcryptid/air-quality-fusion/internal/store"
)

// Options tune the interpolation.
type Options struct {
	// Neighbors is the number of nearest points used (K).
	Neighbors int
	// Power is the distance exponent (p).
	Power float64
	// EpsilonKm keeps coincident points from dividing by zero.
	EpsilonKm float64
	// MinPoints is the minimum number of valid measurements required for the
	// gas, counted before co-located readings are fused.
	MinPoints int
}

// DefaultOptions returns K=5, p=2, ε=0.01 km and a one-point minimum.
func DefaultOptions() Options {
	return Options{Neighbors: 5, Power: 2, EpsilonKm: 0.01, MinPoints: 1}
}

// Neighbor is one point that contributed to an estimate.
type Neighbor struct {
	Geo          domain.Geo `json:"geo"`
	LocationName string     `json:"location_name,omitempty"`
	Value        float64    `json:"value"`
	DistanceKm   float64    `json:"distance_km"`
	Weight       float64    `json:"weight"` // normalized, sums to 1
}

// Result is the estimated concentration at a point.
type Result struct {
	Gas       domain.Gas      `json:"gas"`
	Geo       domain.Geo      `json:"geo"`
	Value     float64         `json:"value"`
	Unit      string          `json:"unit"`
	Category  domain.Category `json:"category"`
	Color     domain.Color    `json:"color"`
	Message   string          `json:"message"`
	Place     string          `json:"place"`
	Neighbors []Neighbor      `json:"neighbors"`
}

// Estimator interpolates concentrations from a store snapshot.
type Estimator struct {
	opts Options
}

// New creates an Estimator. Non-positive options fall back to defaults.
func New(opts Options) *Estimator {
	def := DefaultOptions()
	if opts.Neighbors <= 0 {
		opts.Neighbors = def.Neighbors
	}
	if opts.Power <= 0 {
		opts.Power = def.Power
	}
	if opts.EpsilonKm <= 0 {
		opts.EpsilonKm = def.EpsilonKm
	}
	if opts.MinPoints <= 0 {
		opts.MinPoints = def.MinPoints
	}
	return &Estimator{opts: opts}
}

// Estimate returns the IDW estimate of gas at g. It returns
// domain.ErrInsufficientData when the snapshot holds fewer than MinPoints
// valid measurements for gas, counted before co-located readings are fused; callers must treat that as "no estimate", not zero.
func (e *Estimator) Estimate(snap *store.Snapshot, gas domain.Gas, g domain.Geo) (Result, error) {
	if !domain.ValidCoordinate(g) {
		return Result{}, fmt.Errorf("estimate: coordinate out of range (%g, %g)", g.Lat, g.Lon)
	}
	points := snap.Fused(gas)
	if snap.CountValid(gas) < e.opts.MinPoints || len(points) == 0 {
		return Result{}, fmt.Errorf("estimate %s: %w", gas, domain.ErrInsufficientData)
	}

	neighbors := make([]Neighbor, len(points))
	for i, p := range points {
		neighbors[i] = Neighbor{
			Geo:          p.Geo,
			LocationName: p.LocationName,
			Value:        p.Value,
			DistanceKm:   domain.Haversine(g, p.Geo),
		}
	}
	// Stable sort keeps input order among equidistant points.
	slices.SortStableFunc(neighbors, func(a, b Neighbor) int {
		switch {
		case a.DistanceKm < b.DistanceKm:
			return -1
		case a.DistanceKm > b.DistanceKm:
			return 1
		default:
			return 0
		}
	})
	if len(neighbors) > e.opts.Neighbors {
		neighbors = neighbors[:e.opts.Neighbors]
	}

	value := Interpolate(neighbors, e.opts.Power, e.opts.EpsilonKm)
	cat, color := domain.Classify(gas, value)
	unit := gas.Unit()
	return Result{
		Gas:       gas,
		Geo:       g,
		Value:     value,
		Unit:      unit,
		Category:  cat,
		Color:     color,
		Message:   message(gas, value, unit, cat),
		Place:     domain.PlaceLabel(g),
		Neighbors: neighbors,
	}, nil
}

// Interpolate computes the weighted mean of the neighbors' values with
// weights 1/(d+ε)^p and stores the normalized weight on each neighbor.
func Interpolate(neighbors []Neighbor, power, epsilon float64) float64 {
	var wsum, vsum float64
	for i := range neighbors {
		w := 1 / math.Pow(neighbors[i].DistanceKm+epsilon, power)
		neighbors[i].Weight = w
		wsum += w
		vsum += w * neighbors[i].Value
	}
	if wsum == 0 {
		return 0
	}
	for i := range neighbors {
		neighbors[i].Weight /= wsum
	}
	return vsum / wsum
}

func message(gas domain.Gas, value float64, unit string, cat domain.Category) string {
	info, _ := gas.Info()
	return fmt.Sprintf("Estimated %s is %.1f %s (%s).", info.Name, value, unit, cat.Label())
}
