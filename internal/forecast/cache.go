package forecast

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
)

// ModelStore persists fitted models across restarts.
type ModelStore interface {
	LoadModel(ctx context.Context, key string) (Model, bool, error)
	SaveModel(ctx context.Context, m Model) error
}

// Status reports where a served model came from.
type Status string

const (
	StatusFitted   Status = "fitted"
	StatusCached   Status = "cached"
	StatusStale    Status = "stale"
	StatusRestored Status = "restored"
)

type cacheEntry struct {
	model     Model
	refitting bool
}

// Cache holds one fitted model per location and gas. Refits for a key run
// once at a time; while a refit is in flight, other readers get the previous
// model instead of blocking.
type Cache struct {
	refitFraction float64
	store         ModelStore
	logger        *slog.Logger

	mu      sync.Mutex
	entries map[string]*cacheEntry
	group   singleflight.Group
}

// NewCache creates a model cache. A nil store disables persistence.
func NewCache(refitFraction float64, store ModelStore, logger *slog.Logger) *Cache {
	if refitFraction <= 0 {
		refitFraction = 0.1
	}
	return &Cache{
		refitFraction: refitFraction,
		store:         store,
		logger:        logger,
		entries:       make(map[string]*cacheEntry),
	}
}

// Stale reports whether a model fitted on fitted samples must be refit now
// that the slice holds current samples: the count has moved by at least
// max(1, fraction × fitted).
func (c *Cache) Stale(fitted, current int) bool {
	threshold := math.Max(1, c.refitFraction*float64(fitted))
	return math.Abs(float64(current-fitted)) >= threshold
}

// Get returns the model for key, calling fitFn when none is cached or the
// cached one is stale.
func (c *Cache) Get(ctx context.Context, key string, samples int, fitFn func() (Model, error)) (Model, Status, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		if !c.Stale(e.model.Samples, samples) {
			c.mu.Unlock()
			return e.model, StatusCached, nil
		}
		if e.refitting {
			c.mu.Unlock()
			return e.model, StatusStale, nil
		}
		e.refitting = true
	}
	c.mu.Unlock()

	type result struct {
		model  Model
		status Status
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if !ok {
			if m, found := c.load(ctx, key); found && !c.Stale(m.Samples, samples) {
				c.put(key, m)
				return result{m, StatusRestored}, nil
			}
		}
		m, err := fitFn()
		if err != nil {
			c.clearRefitting(key)
			return nil, err
		}
		c.put(key, m)
		c.save(ctx, m)
		return result{m, StatusFitted}, nil
	})
	if err != nil {
		return Model{}, "", err
	}
	r := v.(result)
	return r.model, r.status, nil
}

// Len returns the number of cached models.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) put(key string, m Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{model: m}
}

func (c *Cache) clearRefitting(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.refitting = false
	}
}

func (c *Cache) load(ctx context.Context, key string) (Model, bool) {
	if c.store == nil {
		return Model{}, false
	}
	m, found, err := c.store.LoadModel(ctx, key)
	if err != nil {
		c.logger.Warn("load forecast model failed", "key", key, "error", err)
		return Model{}, false
	}
	return m, found
}

func (c *Cache) save(ctx context.Context, m Model) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveModel(ctx, m); err != nil {
		c.logger.Warn("save forecast model failed", "key", m.Key(), "error", err)
	}
}

func modelKey(location string, gas domain.Gas) string {
	return strings.ToLower(location) + "|" + string(gas)
}
