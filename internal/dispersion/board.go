package dispersion

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
)

// Board holds the latest weather condition per location, keyed by rounded
// coordinate.
type Board struct {
	precision int

	mu         sync.RWMutex
	conditions map[string]domain.WeatherCondition
}

// NewBoard creates an empty board rounding coordinates to precision decimals.
func NewBoard(precision int) *Board {
	return &Board{precision: precision, conditions: make(map[string]domain.WeatherCondition)}
}

func (b *Board) key(g domain.Geo) string {
	return fmt.Sprintf("%.*f,%.*f", b.precision, g.Lat, b.precision, g.Lon)
}

// Update records conditions, keeping the newest observation per location.
// Conditions with out-of-range coordinates, negative wind speed, or a NaN or
// infinite reading are skipped. It returns the number applied.
func (b *Board) Update(conds ...domain.WeatherCondition) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	applied := 0
	for _, c := range conds {
		if !domain.ValidCoordinate(c.Geo) || c.WindSpeed < 0 ||
			!finite(c.WindSpeed, c.WindAngle, c.Precip) {
			continue
		}
		if c.ObservedAt.IsZero() {
			c.ObservedAt = domain.Now()
		}
		k := b.key(c.Geo)
		if prev, ok := b.conditions[k]; ok && prev.ObservedAt.After(c.ObservedAt) {
			continue
		}
		b.conditions[k] = c
		applied++
	}
	return applied
}

// Conditions returns a copy of the current conditions in key order.
func (b *Board) Conditions() []domain.WeatherCondition {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.conditions))
	for k := range b.conditions {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]domain.WeatherCondition, len(keys))
	for i, k := range keys {
		out[i] = b.conditions[k]
	}
	return out
}

// Len returns the number of tracked locations.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conditions)
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
