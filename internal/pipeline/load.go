package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
	"github.com/couchcryptid/air-quality-fusion/internal/observability"
	"github.com/couchcryptid/air-quality-fusion/internal/store"
)

// Engine is the subset of the fusion engine the loader drives.
type Engine interface {
	IngestBatches(ctx context.Context, batches ...domain.ProviderBatch) store.FusionReport
	UpdateWeather(conds ...domain.WeatherCondition) int
	ComputeWarnings(ctx context.Context, gas domain.Gas) []domain.Warning
}

// Publisher writes serialized warnings to the alert topic.
type Publisher interface {
	Publish(ctx context.Context, events []domain.OutputEvent) error
}

// FusionLoader implements BatchLoader. Measurement envelopes become one
// atomic ingestion, weather envelopes refresh the board, and the warnings
// for every gas are recomputed and published after each change.
type FusionLoader struct {
	engine    Engine
	publisher Publisher
	gases     []domain.Gas
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewLoader creates a FusionLoader. A nil publisher disables warning
// publication; warnings are still computed and counted.
func NewLoader(engine Engine, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) *FusionLoader {
	return &FusionLoader{
		engine:    engine,
		publisher: publisher,
		gases:     domain.Gases,
		logger:    logger,
		metrics:   metrics,
	}
}

// LoadBatch applies envelopes in order of kind: weather first so warnings
// computed after the ingestion see the latest conditions.
func (l *FusionLoader) LoadBatch(ctx context.Context, envelopes []domain.Envelope) error {
	var (
		batches []domain.ProviderBatch
		conds   []domain.WeatherCondition
	)
	for _, env := range envelopes {
		switch env.Kind {
		case domain.EnvelopeWeather:
			conds = append(conds, env.Conditions...)
		default:
			batches = append(batches, toProviderBatch(env))
		}
	}

	changed := false
	if len(conds) > 0 {
		accepted := l.engine.UpdateWeather(conds...)
		l.logger.Debug("weather updated", "received", len(conds), "accepted", accepted)
		changed = accepted > 0
	}
	if len(batches) > 0 {
		report := l.engine.IngestBatches(ctx, batches...)
		changed = changed || report.Totals().Accepted > 0
	}
	if !changed {
		return nil
	}
	return l.publishWarnings(ctx)
}

func (l *FusionLoader) publishWarnings(ctx context.Context) error {
	var events []domain.OutputEvent
	for _, gas := range l.gases {
		for _, w := range l.engine.ComputeWarnings(ctx, gas) {
			out, err := domain.SerializeWarning(w)
			if err != nil {
				return err
			}
			events = append(events, out)
		}
	}
	if len(events) == 0 || l.publisher == nil {
		return nil
	}
	if err := l.publisher.Publish(ctx, events); err != nil {
		return fmt.Errorf("publish %d warnings: %w", len(events), err)
	}
	l.metrics.WarningsProduced.Add(float64(len(events)))
	l.logger.Info("warnings published", "count", len(events))
	return nil
}

func toProviderBatch(env domain.Envelope) domain.ProviderBatch {
	b := domain.ProviderBatch{Provider: env.Provider, Records: env.Records}
	if env.Error != "" {
		b.Err = fmt.Errorf("%s: %w", env.Error, domain.ErrProviderUnavailable)
	}
	return b
}
