// Package dispersion turns wind and precipitation observations into
// structured warnings by combining them with co-located concentrations.
//
// Two rule families run independently per location:
//
//   - stagnation: wind below the stagnation threshold over a reading that is
//     Unhealthy or worse emits a dispersion_influence warning carrying the
//     plume movement vector.
//   - washout: active precipitation over an elevated particulate reading
//     (Unhealthy for Sensitive Groups or worse) emits a weather_washout
//     warning noting the expected improvement.
//
// Good and Moderate readings never produce warnings.
package dispersion

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
	"github.com/couchcryptid/air-quality-fusion/internal/store"
)

// warningNamespace scopes deterministic warning IDs.
var warningNamespace = uuid.MustParse("6f1c9a52-3d0e-4b8e-9c61-2a7f5e0d4b13")

// Options hold the rule thresholds.
type Options struct {
	StagnationKmh float64
	WashoutMM     float64
	ColocationKm  float64
}

// DefaultOptions returns a 5 km/h stagnation threshold, a 0.05 mm washout
// threshold and a 10 km co-location radius.
func DefaultOptions() Options {
	return Options{StagnationKmh: 5, WashoutMM: 0.05, ColocationKm: 10}
}

// Engine evaluates the dispersion rules.
type Engine struct {
	opts Options
}

// New creates an Engine. Non-positive options fall back to defaults.
func New(opts Options) *Engine {
	def := DefaultOptions()
	if opts.StagnationKmh <= 0 {
		opts.StagnationKmh = def.StagnationKmh
	}
	if opts.WashoutMM <= 0 {
		opts.WashoutMM = def.WashoutMM
	}
	if opts.ColocationKm <= 0 {
		opts.ColocationKm = def.ColocationKm
	}
	return &Engine{opts: opts}
}

// colocated is the concentration observed near a weather condition.
type colocated struct {
	value float64
	unit  string
	name  string
	geo   domain.Geo
}

// Compute returns the warnings for gas given the current conditions, most
// severe first. Conditions with a NaN or infinite reading are ignored.
func (e *Engine) Compute(snap *store.Snapshot, gas domain.Gas, conds []domain.WeatherCondition) []domain.Warning {
	points := snap.Fused(gas)
	if len(points) == 0 {
		return nil
	}

	now := domain.Now()
	var warnings []domain.Warning
	for _, c := range conds {
		if c.WindSpeed < 0 || !finite(c.WindSpeed, c.WindAngle, c.Precip) {
			continue
		}
		near, ok := e.colocate(points, c.Geo)
		if !ok {
			continue
		}
		cat, _ := domain.Classify(gas, near.value)
		anchor := &domain.Anchor{Name: anchorName(c, near), Geo: c.Geo}

		if w, ok := e.stagnation(gas, c, near, cat, anchor); ok {
			w.IssuedAt = now
			warnings = append(warnings, w)
		}
		if w, ok := e.washout(gas, c, near, cat, anchor); ok {
			w.IssuedAt = now
			warnings = append(warnings, w)
		}
	}

	slices.SortStableFunc(warnings, func(a, b domain.Warning) int {
		if c := cmp.Compare(b.Category, a.Category); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Anchor.Name, b.Anchor.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.Kind, b.Kind)
	})
	return warnings
}

// colocate averages the fused points within the co-location radius of g.
func (e *Engine) colocate(points []store.Point, g domain.Geo) (colocated, bool) {
	var sum float64
	n := 0
	nearest, nearestD := -1, 0.0
	for i, p := range points {
		d := domain.Haversine(g, p.Geo)
		if d > e.opts.ColocationKm {
			continue
		}
		sum += p.Value
		n++
		if nearest < 0 || d < nearestD {
			nearest, nearestD = i, d
		}
	}
	if n == 0 {
		return colocated{}, false
	}
	p := points[nearest]
	return colocated{value: sum / float64(n), unit: p.Unit, name: p.LocationName, geo: p.Geo}, true
}

func (e *Engine) stagnation(gas domain.Gas, c domain.WeatherCondition, near colocated, cat domain.Category, anchor *domain.Anchor) (domain.Warning, bool) {
	if c.WindSpeed >= e.opts.StagnationKmh || !cat.AtLeast(domain.CategoryUnhealthy) {
		return domain.Warning{}, false
	}
	mv := c.Movement()
	sev := domain.SeverityMedium
	if cat.AtLeast(domain.CategoryVeryUnhealthy) {
		sev = domain.SeverityHigh
	}
	info, _ := gas.Info()
	return domain.Warning{
		ID:       warningID(domain.WarningDispersion, gas, anchor.Geo),
		Kind:     domain.WarningDispersion,
		Severity: sev,
		Title:    "Stagnation: " + anchor.Name,
		Message: fmt.Sprintf(
			"Low wind speed (%.1f km/h) in %s is trapping %s near its sources at %.1f %s (%s). Residual drift is toward the %s.",
			c.WindSpeed, anchor.Name, info.Name, near.value, near.unit, cat.Label(), mv.Cardinal),
		Gas:      gas,
		Value:    near.value,
		Unit:     near.unit,
		Category: cat,
		Anchor:   anchor,
		Movement: &mv,
	}, true
}

func (e *Engine) washout(gas domain.Gas, c domain.WeatherCondition, near colocated, cat domain.Category, anchor *domain.Anchor) (domain.Warning, bool) {
	if !gas.Particulate() || !c.Precipitating(e.opts.WashoutMM) || !cat.AtLeast(domain.CategoryUnhealthySensitive) {
		return domain.Warning{}, false
	}
	info, _ := gas.Info()
	return domain.Warning{
		ID:       warningID(domain.WarningWashout, gas, anchor.Geo),
		Kind:     domain.WarningWashout,
		Severity: domain.SeverityLow,
		Title:    "Washout: " + anchor.Name,
		Message: fmt.Sprintf(
			"Precipitation (%.2f mm) in %s is expected to reduce %s from %.1f %s (%s) through washout.",
			c.Precip, anchor.Name, info.Name, near.value, near.unit, cat.Label()),
		Gas:      gas,
		Value:    near.value,
		Unit:     near.unit,
		Category: cat,
		Anchor:   anchor,
	}, true
}

func anchorName(c domain.WeatherCondition, near colocated) string {
	switch {
	case c.LocationName != "":
		return c.LocationName
	case near.name != "":
		return near.name
	default:
		return domain.PlaceLabel(c.Geo)
	}
}

// warningID is stable for a kind, gas and location so repeated evaluations
// of the same condition produce the same key downstream.
func warningID(kind domain.WarningKind, gas domain.Gas, g domain.Geo) string {
	return uuid.NewSHA1(warningNamespace, fmt.Appendf(nil, "%s|%s|%.4f|%.4f", kind, gas, g.Lat, g.Lon)).String()
}
