// Package fusion wires the measurement store to the analytical components and
// exposes the operations served to consumers: ingestion, spatial estimates,
// hotspots, forecasts, dispersion warnings, and statistics.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/air-quality-fusion/internal/dispersion"
	"github.com/couchcryptid/air-quality-fusion/internal/domain"
	"github.com/couchcryptid/air-quality-fusion/internal/estimate"
	"github.com/couchcryptid/air-quality-fusion/internal/forecast"
	"github.com/couchcryptid/air-quality-fusion/internal/hotspot"
	"github.com/couchcryptid/air-quality-fusion/internal/observability"
	"github.com/couchcryptid/air-quality-fusion/internal/store"
)

// SnapshotStore persists ingested measurements so a restarted engine can
// resume from the same store contents.
type SnapshotStore interface {
	SaveMeasurements(ctx context.Context, ms []domain.Measurement) error
	LoadMeasurements(ctx context.Context) ([]domain.Measurement, error)
}

// Config groups the tunables of every component.
type Config struct {
	Store       store.Options
	Estimate    estimate.Options
	Hotspot     hotspot.Options
	Forecast    forecast.Options
	Dispersion  dispersion.Options
	BoardDigits int
}

// Deps are the optional collaborators of an Engine. A nil Snapshots, Models,
// or Geocoder disables that feature; Metrics and Logger are required.
type Deps struct {
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	Snapshots SnapshotStore
	Models    forecast.ModelStore
	Geocoder  domain.ReverseGeocoder
}

// Status is an operator-facing summary of the engine state.
type Status struct {
	Version         uint64              `json:"version"`
	Measurements    int                 `json:"measurements"`
	Quarantined     int                 `json:"quarantined"`
	Sources         []store.SourceShare `json:"sources"`
	WeatherStations int                 `json:"weather_stations"`
	ForecastModels  int                 `json:"forecast_models"`
	Ready           bool                `json:"ready"`
}

// Engine is the entry point for all reads and writes.
type Engine struct {
	store      *store.Store
	estimator  *estimate.Estimator
	detector   *hotspot.Detector
	forecaster *forecast.Forecaster
	dispersion *dispersion.Engine
	board      *dispersion.Board

	snapshots SnapshotStore
	geocoder  domain.ReverseGeocoder
	metrics   *observability.Metrics
	logger    *slog.Logger

	ready atomic.Bool
}

// New creates an Engine with an empty store.
func New(cfg Config, deps Deps) *Engine {
	digits := cfg.BoardDigits
	if digits <= 0 {
		digits = 2
	}
	return &Engine{
		store:      store.New(cfg.Store, deps.Logger),
		estimator:  estimate.New(cfg.Estimate),
		detector:   hotspot.New(cfg.Hotspot),
		forecaster: forecast.New(cfg.Forecast, deps.Models, deps.Logger),
		dispersion: dispersion.New(cfg.Dispersion),
		board:      dispersion.NewBoard(digits),
		snapshots:  deps.Snapshots,
		geocoder:   deps.Geocoder,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// CheckReadiness reports ready once a batch has been ingested or a snapshot
// restored.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if e.ready.Load() {
		return nil
	}
	return errors.New("no measurements loaded yet")
}

// Snapshot returns the current store snapshot.
func (e *Engine) Snapshot() *store.Snapshot {
	return e.store.Snapshot()
}

// Restore loads persisted measurements into the store. Without a snapshot
// store it is a no-op.
func (e *Engine) Restore(ctx context.Context) error {
	if e.snapshots == nil {
		return nil
	}
	ms, err := e.snapshots.LoadMeasurements(ctx)
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	e.store.Restore(ms)
	e.metrics.StoreSize.Set(float64(e.store.Snapshot().Len()))
	e.ready.Store(true)
	return nil
}

// Ingest validates and stores one batch of raw records. It never fails:
// per-record problems are counted in the report.
func (e *Engine) Ingest(ctx context.Context, records []domain.RawRecord) store.FusionReport {
	return e.IngestBatches(ctx, domain.ProviderBatch{Records: records})
}

// IngestBatches stores the records of several provider batches as one
// atomic update and persists the newly added measurements. A persistence
// failure is logged; the in-memory store stays authoritative.
func (e *Engine) IngestBatches(ctx context.Context, batches ...domain.ProviderBatch) store.FusionReport {
	report := e.store.IngestBatches(batches...)

	e.metrics.BatchesIngested.Inc()
	for src, c := range report.Sources {
		e.metrics.RecordsIngested.WithLabelValues(string(src), string(domain.StatusAccepted)).Add(float64(c.Accepted))
		e.metrics.RecordsIngested.WithLabelValues(string(src), string(domain.StatusQuarantined)).Add(float64(c.Quarantined))
		e.metrics.RecordsIngested.WithLabelValues(string(src), string(domain.StatusRejected)).Add(float64(c.Rejected))
	}
	for _, f := range report.Failures {
		e.metrics.ProviderFailures.WithLabelValues(f.Provider).Inc()
	}
	e.metrics.StoreSize.Set(float64(report.StoreSize))

	if e.snapshots != nil && len(report.Added) > 0 {
		if err := e.snapshots.SaveMeasurements(ctx, report.Added); err != nil {
			e.logger.Error("snapshot persistence failed",
				"batch_id", report.BatchID,
				"measurements", len(report.Added),
				"error", err,
			)
		}
	}

	e.ready.Store(true)
	return report
}

// UpdateWeather records the latest weather conditions and returns how many
// were accepted.
func (e *Engine) UpdateWeather(conds ...domain.WeatherCondition) int {
	return e.board.Update(conds...)
}

// Estimate returns the inverse-distance-weighted estimate of gas at (lat, lon).
func (e *Engine) Estimate(ctx context.Context, gas domain.Gas, lat, lon float64) (estimate.Result, error) {
	g := domain.Geo{Lat: lat, Lon: lon}
	res, err := e.estimator.Estimate(e.store.Snapshot(), gas, g)
	e.observe("estimate", err)
	if err != nil {
		return estimate.Result{}, err
	}
	res.Place = domain.ResolvePlace(ctx, g, e.geocoder, e.logger).Name
	return res, nil
}

// DetectHotspots clusters the valid measurements of gas and returns the
// topN highest-concentration clusters.
func (e *Engine) DetectHotspots(ctx context.Context, gas domain.Gas, topN int) ([]hotspot.Hotspot, error) {
	spots, err := e.detector.Detect(e.store.Snapshot(), gas, topN)
	e.observe("hotspots", err)
	if err != nil {
		return nil, err
	}
	for i := range spots {
		if spots[i].LabelSource == domain.LabelReported {
			continue
		}
		place := domain.ResolvePlace(ctx, spots[i].Centroid, e.geocoder, e.logger)
		spots[i].Location, spots[i].LabelSource = place.Name, place.Source
	}
	return spots, nil
}

// Forecast predicts the next 24 hours of gas at a named location.
func (e *Engine) Forecast(ctx context.Context, location string, gas domain.Gas) (forecast.Forecast, error) {
	fc, err := e.forecaster.Forecast(ctx, e.store.Snapshot(), location, gas)
	e.observe("forecast", err)
	if err != nil {
		return forecast.Forecast{}, err
	}
	e.metrics.ForecastModels.WithLabelValues(string(fc.Model)).Inc()
	return fc, nil
}

// ComputeWarnings evaluates the current weather board against the fused
// measurements of gas.
func (e *Engine) ComputeWarnings(_ context.Context, gas domain.Gas) []domain.Warning {
	warnings := e.dispersion.Compute(e.store.Snapshot(), gas, e.board.Conditions())
	e.observe("warnings", nil)
	for _, w := range warnings {
		e.metrics.Warnings.WithLabelValues(string(w.Kind)).Inc()
	}
	return warnings
}

// Stats summarizes the valid measurements of gas.
func (e *Engine) Stats(gas domain.Gas) (store.GasStats, error) {
	st, err := e.store.Snapshot().Stats(gas)
	e.observe("stats", err)
	return st, err
}

// SourceStats reports each source's share of the stored measurements.
func (e *Engine) SourceStats() []store.SourceShare {
	return e.store.Snapshot().SourceStats()
}

// Status reports store, board and model cache sizes.
func (e *Engine) Status() Status {
	snap := e.store.Snapshot()
	return Status{
		Version:         snap.Version(),
		Measurements:    snap.Len(),
		Quarantined:     len(snap.Quarantined()),
		Sources:         snap.SourceStats(),
		WeatherStations: e.board.Len(),
		ForecastModels:  e.forecaster.Cache().Len(),
		Ready:           e.ready.Load(),
	}
}

func (e *Engine) observe(operation string, err error) {
	e.metrics.Queries.WithLabelValues(operation, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, domain.ErrNotAvailable):
		return "not_available"
	default:
		return "error"
	}
}
