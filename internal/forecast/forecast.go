// Package forecast predicts the next 24 hourly concentrations for a named
// location from that location's historical slice, anchored to a prior
// baseline level for the place.
package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
	"github.com/couchcryptid/air-quality-fusion/internal/store"
)

// Horizon is the fixed number of hourly steps in every forecast.
const Horizon = 24

// Options tune slicing and fitting.
type Options struct {
	// RadiusKm selects measurements near the place when their name does not
	// mention it.
	RadiusKm float64
	// RefitFraction is the relative change in slice size that marks a cached
	// model stale.
	RefitFraction float64
	// Ridge is the regularization strength.
	Ridge float64
	// UTCOffset converts timestamps to the locations' wall clock.
	UTCOffset time.Duration
}

// DefaultOptions returns a 50 km radius, 10% refit threshold, ridge 1 and
// India Standard Time.
func DefaultOptions() Options {
	return Options{RadiusKm: 50, RefitFraction: 0.1, Ridge: 1, UTCOffset: 5*time.Hour + 30*time.Minute}
}

// Step is one predicted hour.
type Step struct {
	Offset    int             `json:"offset_hours"`
	Timestamp time.Time       `json:"timestamp"`
	Value     float64         `json:"value"`
	Category  domain.Category `json:"category"`
	Color     domain.Color    `json:"color"`
}

// Forecast is the 24-step prediction for one location and gas.
type Forecast struct {
	Location string     `json:"location"`
	Geo      domain.Geo `json:"geo"`
	Gas      domain.Gas `json:"gas"`
	Unit     string     `json:"unit"`
	Baseline float64    `json:"baseline"`
	Samples  int        `json:"samples"`
	Model    Status     `json:"model"`
	FittedAt time.Time  `json:"fitted_at"`
	Steps    []Step     `json:"steps"`
}

// Forecaster produces forecasts and owns the per-location model cache.
type Forecaster struct {
	opts   Options
	cache  *Cache
	logger *slog.Logger
}

// New creates a Forecaster. A nil store disables model persistence.
func New(opts Options, models ModelStore, logger *slog.Logger) *Forecaster {
	def := DefaultOptions()
	if opts.RadiusKm <= 0 {
		opts.RadiusKm = def.RadiusKm
	}
	if opts.RefitFraction <= 0 {
		opts.RefitFraction = def.RefitFraction
	}
	if opts.Ridge <= 0 {
		opts.Ridge = def.Ridge
	}
	return &Forecaster{
		opts:   opts,
		cache:  NewCache(opts.RefitFraction, models, logger),
		logger: logger,
	}
}

// Cache exposes the model cache.
func (f *Forecaster) Cache() *Cache {
	return f.cache
}

// Forecast predicts the 24 hours after the current hour. It returns
// domain.ErrNotAvailable when the location is not a known place, the gas is
// unknown (the error also wraps domain.ErrUnknownGas), or there are no
// accepted measurements of gas; it never falls back to a flat curve.
func (f *Forecaster) Forecast(ctx context.Context, snap *store.Snapshot, location string, gas domain.Gas) (Forecast, error) {
	place, ok := domain.LookupPlace(location)
	if !ok {
		return Forecast{}, fmt.Errorf("forecast %q: unknown location: %w", location, domain.ErrNotAvailable)
	}
	if !gas.Valid() {
		return Forecast{}, fmt.Errorf("forecast %q %q: %w: %w", location, gas, domain.ErrNotAvailable, domain.ErrUnknownGas)
	}

	samples := f.slice(snap, place, gas)
	if len(samples) == 0 {
		return Forecast{}, fmt.Errorf("forecast %s %s: no historical slice: %w", place.Name, gas, domain.ErrNotAvailable)
	}

	key := modelKey(place.Name, gas)
	model, status, err := f.cache.Get(ctx, key, len(samples), func() (Model, error) {
		return f.fit(place, gas, samples)
	})
	if err != nil {
		return Forecast{}, fmt.Errorf("forecast %s %s: %w", place.Name, gas, err)
	}

	return Build(model, place, domain.Now(), status), nil
}

// Build evaluates model at the 24 hours following now truncated to the
// hour. The result depends only on model and now.
func Build(model Model, place domain.Place, now time.Time, status Status) Forecast {
	start := now.UTC().Truncate(time.Hour)
	steps := make([]Step, Horizon)
	for i := range steps {
		ts := start.Add(time.Duration(i+1) * time.Hour)
		v := domain.Round(model.Predict(ts), 1)
		cat, color := domain.Classify(model.Gas, v)
		steps[i] = Step{Offset: i + 1, Timestamp: ts, Value: v, Category: cat, Color: color}
	}
	return Forecast{
		Location: place.Name,
		Geo:      place.Geo,
		Gas:      model.Gas,
		Unit:     model.Gas.Unit(),
		Baseline: model.Baseline,
		Samples:  model.Samples,
		Model:    status,
		FittedAt: model.FittedAt,
		Steps:    steps,
	}
}

// slice selects the accepted measurements of gas that name the place or lie
// within the configured radius of it.
func (f *Forecaster) slice(snap *store.Snapshot, place domain.Place, gas domain.Gas) []sample {
	name := strings.ToLower(place.Name)
	var out []sample
	for _, m := range snap.Valid(gas) {
		if strings.Contains(strings.ToLower(m.LocationName), name) ||
			domain.Haversine(m.Geo, place.Geo) <= f.opts.RadiusKm {
			out = append(out, sample{at: m.Timestamp, value: m.Value})
		}
	}
	return out
}

func (f *Forecaster) fit(place domain.Place, gas domain.Gas, samples []sample) (Model, error) {
	m := Model{
		Location:  place.Name,
		Gas:       gas,
		Baseline:  place.Baseline(gas),
		Profile:   ProfileFor(place.Name),
		Samples:   len(samples),
		FittedAt:  domain.Now(),
		UTCOffset: f.opts.UTCOffset,
	}
	coef, err := fit(samples, m, f.opts.Ridge)
	if err != nil {
		return Model{}, err
	}
	m.Coef = coef
	f.logger.Debug("forecast model fitted",
		"location", place.Name,
		"gas", gas,
		"samples", len(samples),
	)
	return m, nil
}
