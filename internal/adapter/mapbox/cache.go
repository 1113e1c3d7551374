package mapbox

import (
	"container/list"
	"context"
	"sync"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
	"github.com/couchcryptid/air-quality-fusion/internal/observability"
)

// cachePrecision is the number of decimals coordinates are rounded to
// before lookup, about 100 m at the equator. Nearby estimate points share
// a label.
const cachePrecision = 3

// CachedGeocoder wraps a ReverseGeocoder with an in-memory LRU cache.
type CachedGeocoder struct {
	inner   domain.ReverseGeocoder
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.ReverseGeocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, g domain.Geo) (domain.PlaceResult, error) {
	key := domain.Geo{Lat: domain.Round(g.Lat, cachePrecision), Lon: domain.Round(g.Lon, cachePrecision)}
	if result, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, key)
	if err != nil {
		return result, err
	}
	// Only cache named results so transient "not found" responses can be retried.
	if result.Name != "" {
		c.cache.put(key, result)
	}
	return result, nil
}

// lruCache is a thread-safe LRU cache of place results keyed by rounded
// coordinate. The list front is the most recently used entry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List
	entries    map[domain.Geo]*list.Element
}

type entry struct {
	key   domain.Geo
	value domain.PlaceResult
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[domain.Geo]*list.Element),
	}
}

func (c *lruCache) get(key domain.Geo) (domain.PlaceResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.PlaceResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

func (c *lruCache) put(key domain.Geo, value domain.PlaceResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, value: value})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
