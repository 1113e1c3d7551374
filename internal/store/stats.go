package store

import (
	"math"
	"slices"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
)

// GasStats summarizes the accepted measurements of one gas.
type GasStats struct {
	Gas    domain.Gas `json:"gas"`
	Unit   string     `json:"unit"`
	Count  int        `json:"count"`
	Mean   float64    `json:"mean"`
	Median float64    `json:"median"`
	Min    float64    `json:"min"`
	Max    float64    `json:"max"`
	Std    float64    `json:"std"` // sample standard deviation
}

// Stats computes summary statistics for gas. It returns
// domain.ErrInsufficientData when the gas has no accepted measurements.
func (s *Snapshot) Stats(gas domain.Gas) (GasStats, error) {
	idx := s.valid[gas]
	if len(idx) == 0 {
		return GasStats{}, domain.ErrInsufficientData
	}
	values := make([]float64, len(idx))
	var sum float64
	for i, j := range idx {
		values[i] = s.measurements[j].Value
		sum += values[i]
	}
	slices.Sort(values)

	n := len(values)
	mean := sum / float64(n)
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	std := 0.0
	if n > 1 {
		std = math.Sqrt(ss / float64(n-1))
	}
	median := values[n/2]
	if n%2 == 0 {
		median = (values[n/2-1] + values[n/2]) / 2
	}
	return GasStats{
		Gas:    gas,
		Unit:   gas.Unit(),
		Count:  n,
		Mean:   mean,
		Median: median,
		Min:    values[0],
		Max:    values[n-1],
		Std:    std,
	}, nil
}

// SourceShare is one source's contribution to the accepted measurements.
type SourceShare struct {
	Source     domain.Source `json:"source"`
	Count      int           `json:"count"`
	Percentage float64       `json:"percentage"` // rounded to one decimal
}

// SourceStats reports how many accepted measurements each source
// contributed, largest first.
func (s *Snapshot) SourceStats() []SourceShare {
	counts := make(map[domain.Source]int)
	total := 0
	for _, m := range s.measurements {
		if m.Valid() {
			counts[m.Source]++
			total++
		}
	}
	if total == 0 {
		return nil
	}
	out := make([]SourceShare, 0, len(counts))
	for src, c := range counts {
		out = append(out, SourceShare{
			Source:     src,
			Count:      c,
			Percentage: domain.Round(100*float64(c)/float64(total), 1),
		})
	}
	slices.SortFunc(out, func(a, b SourceShare) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		if a.Source < b.Source {
			return -1
		}
		if a.Source > b.Source {
			return 1
		}
		return 0
	})
	return out
}
