// Package ingest fetches raw records from independent providers. Each
// provider runs in isolation: a failure, panic or slow rate limit in one
// never blocks or invalidates the others.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
)

// Provider fetches one source's records. Implementations return whatever
// they fetched alongside any error.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.RawRecord, error)
}

// Collector fans out to providers with bounded parallelism.
type Collector struct {
	providers   []Provider
	parallelism int
	logger      *slog.Logger
}

// NewCollector creates a Collector. Parallelism below one runs the providers
// sequentially.
func NewCollector(providers []Provider, parallelism int, logger *slog.Logger) *Collector {
	return &Collector{
		providers:   providers,
		parallelism: max(1, parallelism),
		logger:      logger,
	}
}

// Collect runs every provider and returns one batch per provider in
// registration order. It never fails: provider errors are carried on the
// batches.
func (c *Collector) Collect(ctx context.Context) []domain.ProviderBatch {
	batches := make([]domain.ProviderBatch, len(c.providers))

	// The group context is not used: a failing provider must not cancel the
	// others, so workers never return an error.
	var g errgroup.Group
	g.SetLimit(c.parallelism)
	for i, p := range c.providers {
		g.Go(func() error {
			batches[i] = c.fetch(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return batches
}

func (c *Collector) fetch(ctx context.Context, p Provider) (batch domain.ProviderBatch) {
	batch.Provider = p.Name()
	defer func() {
		if r := recover(); r != nil {
			batch.Err = fmt.Errorf("%w: %s panicked: %v", domain.ErrProviderUnavailable, p.Name(), r)
			c.logger.Error("provider panicked", "provider", p.Name(), "panic", r)
		}
	}()

	records, err := p.Fetch(ctx)
	for i := range records {
		if records[i].Provider == "" {
			records[i].Provider = p.Name()
		}
	}
	batch.Records = records
	if err != nil {
		batch.Err = err
		c.logger.Warn("provider fetch failed",
			"provider", p.Name(),
			"records", len(records),
			"error", err,
		)
		return batch
	}
	c.logger.Info("provider fetched", "provider", p.Name(), "records", len(records))
	return batch
}
