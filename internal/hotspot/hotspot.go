// Package hotspot ranks pollution hotspots by clustering the accepted
// measurements of one gas over (latitude, longitude, value) and ordering the
// clusters by mean concentration. Overlapping sources are kept as separate
// points: density is signal here.
package hotspot

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
	"github.com/couchcryptid/air-quality-fusion/internal/store"
)

// ErrInvalidTopN is returned for a non-positive topN.
var ErrInvalidTopN = errors.New("topN must be positive")

// Options tune the clustering.
type Options struct {
	// DefaultClusters is the density-driven cluster count used when it
	// exceeds topN.
	DefaultClusters int
	MaxIterations   int
}

// DefaultOptions returns 15 clusters and a 100 iteration cap.
func DefaultOptions() Options {
	return Options{DefaultClusters: 15, MaxIterations: 100}
}

// Hotspot is one ranked cluster.
type Hotspot struct {
	Rank        int             `json:"rank"`
	Centroid    domain.Geo      `json:"centroid"`
	Location    string          `json:"location"`
	LabelSource string          `json:"label_source"`
	MemberCount int             `json:"member_count"`
	AvgValue    float64         `json:"avg_value"`
	MaxValue    float64         `json:"max_value"`
	Unit        string          `json:"unit"`
	Category    domain.Category `json:"category"`
	Color       domain.Color    `json:"color"`
}

// Detector clusters snapshot measurements. It holds no state between calls.
type Detector struct {
	opts Options
}

// New creates a Detector. Non-positive options fall back to defaults.
func New(opts Options) *Detector {
	def := DefaultOptions()
	if opts.DefaultClusters <= 0 {
		opts.DefaultClusters = def.DefaultClusters
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	return &Detector{opts: opts}
}

// Clusters returns k = max(topN, min(DefaultClusters, n)) reduced to the
// number of distinct points.
func (d *Detector) Clusters(topN, n, distinct int) int {
	k := max(topN, min(d.opts.DefaultClusters, n))
	return max(1, min(k, distinct))
}

// Partition clusters ms and reports the assignment of every measurement.
func (d *Detector) Partition(ms []domain.Measurement, topN int) Partition {
	if len(ms) == 0 {
		return Partition{}
	}
	points := standardize(features(ms))
	k := d.Clusters(topN, len(ms), distinct(points))
	return kmeans(points, k, d.opts.MaxIterations)
}

// Detect returns at most topN hotspots for gas, most severe first. It
// returns domain.ErrInsufficientData when the gas has no accepted
// measurements.
func (d *Detector) Detect(snap *store.Snapshot, gas domain.Gas, topN int) ([]Hotspot, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("detect hotspots: %w", ErrInvalidTopN)
	}
	ms := snap.Valid(gas)
	if len(ms) == 0 {
		return nil, fmt.Errorf("detect hotspots %s: %w", gas, domain.ErrInsufficientData)
	}

	part := d.Partition(ms, topN)
	spots := summarize(ms, part, gas)
	slices.SortStableFunc(spots, func(a, b Hotspot) int {
		switch {
		case a.AvgValue > b.AvgValue:
			return -1
		case a.AvgValue < b.AvgValue:
			return 1
		default:
			return b.MemberCount - a.MemberCount
		}
	})
	if len(spots) > topN {
		spots = spots[:topN]
	}
	for i := range spots {
		spots[i].Rank = i + 1
	}
	return spots, nil
}

func features(ms []domain.Measurement) []feature {
	out := make([]feature, len(ms))
	for i, m := range ms {
		out[i] = feature{m.Geo.Lat, m.Geo.Lon, m.Value}
	}
	return out
}

// summarize converts a partition back to original units, in cluster index
// order, skipping empty clusters.
func summarize(ms []domain.Measurement, part Partition, gas domain.Gas) []Hotspot {
	type acc struct {
		lat, lon, sum, peak float64
		n                   int
		names               []string
	}
	accs := make([]acc, part.K)
	for i, c := range part.Assignments {
		m := ms[i]
		a := &accs[c]
		a.lat += m.Geo.Lat
		a.lon += m.Geo.Lon
		a.sum += m.Value
		if a.n == 0 || m.Value > a.peak {
			a.peak = m.Value
		}
		a.n++
		a.names = append(a.names, m.LocationName)
	}

	unit := ms[0].Gas.Unit()
	spots := make([]Hotspot, 0, part.K)
	for _, a := range accs {
		if a.n == 0 {
			continue
		}
		n := float64(a.n)
		centroid := domain.Geo{Lat: a.lat / n, Lon: a.lon / n}
		avg := a.sum / n
		cat, color := domain.Classify(gas, avg)
		name := label(a.names, centroid)
		spots = append(spots, Hotspot{
			Centroid:    centroid,
			Location:    name.Name,
			LabelSource: name.Source,
			MemberCount: a.n,
			AvgValue:    avg,
			MaxValue:    a.peak,
			Unit:        unit,
			Category:    cat,
			Color:       color,
		})
	}
	return spots
}

// label returns the most common member name, falling back to the nearest
// known place when members carry no usable name. Ties go to the name that
// reached the count first.
func label(names []string, centroid domain.Geo) domain.PlaceName {
	counts := make(map[string]int)
	best, bestN := "", 0
	for _, name := range names {
		if name == "" || strings.EqualFold(name, domain.UnknownLocation) {
			continue
		}
		counts[name]++
		if counts[name] > bestN {
			best, bestN = name, counts[name]
		}
	}
	if best == "" {
		return domain.PlaceName{Name: domain.PlaceLabel(centroid), Source: domain.LabelStatic}
	}
	return domain.PlaceName{Name: best, Source: domain.LabelReported}
}
