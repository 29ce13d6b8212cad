package datasource

import (
	"context"
	"sync"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/models"
)

// RatioCache memoizes database-side ratio estimates so a scheme is
// estimated at most once per table while the entry is live.
type RatioCache struct {
	data  map[string]*cacheEntry
	ttl   time.Duration
	mutex sync.RWMutex
	now   func() time.Time
}

type cacheEntry struct {
	ratio     float64
	expiresAt time.Time
}

func NewRatioCache(ttl time.Duration) *RatioCache {
	return &RatioCache{
		data: make(map[string]*cacheEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

func cacheKey(ref models.TableRef, scheme models.Scheme) string {
	return ref.Key() + "|" + string(scheme)
}

func (c *RatioCache) Get(ref models.TableRef, scheme models.Scheme) (float64, bool) {
	c.mutex.RLock()
	entry, exists := c.data[cacheKey(ref, scheme)]
	c.mutex.RUnlock()
	if !exists {
		return 0, false
	}

	if c.now().After(entry.expiresAt) {
		c.mutex.Lock()
		delete(c.data, cacheKey(ref, scheme))
		c.mutex.Unlock()
		return 0, false
	}

	return entry.ratio, true
}

func (c *RatioCache) Set(ref models.TableRef, scheme models.Scheme, ratio float64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[cacheKey(ref, scheme)] = &cacheEntry{
		ratio:     ratio,
		expiresAt: c.now().Add(c.ttl),
	}
}

func (c *RatioCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data = make(map[string]*cacheEntry)
}

// CachingProvider serves EstimateCompressionRatio from a RatioCache
type CachingProvider struct {
	MetadataProvider
	cache *RatioCache
}

// NewCachingProvider wraps p with cache
func NewCachingProvider(p MetadataProvider, cache *RatioCache) *CachingProvider {
	return &CachingProvider{MetadataProvider: p, cache: cache}
}

func (c *CachingProvider) EstimateCompressionRatio(ctx context.Context, ref models.TableRef, scheme models.Scheme, sampleSize int64) (float64, error) {
	if ratio, ok := c.cache.Get(ref, scheme); ok {
		return ratio, nil
	}
	ratio, err := c.MetadataProvider.EstimateCompressionRatio(ctx, ref, scheme, sampleSize)
	if err != nil {
		return 0, err
	}
	c.cache.Set(ref, scheme, ratio)
	return ratio, nil
}
