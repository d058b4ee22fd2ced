package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"sogif-site/internal/kpi"
	"sogif-site/internal/loader"
	"sogif-site/internal/metrics"
)

// DefaultRevalidate is the epoch length used when none is configured.
const DefaultRevalidate = time.Hour

const flightKey = "constants"

// Options tune the cache.
type Options struct {
	Revalidate time.Duration
	// Now overrides the clock, for tests.
	Now     func() time.Time
	Metrics *metrics.Registry
}

type entry struct {
	bundle    *kpi.Bundle
	fetchedAt time.Time
}

// Cache holds the process-wide constants bundle for one revalidation window at a
// time. Concurrent misses share a single loader call; a failed refresh keeps
// serving the previous bundle when there is one.
type Cache struct {
	loader  loader.Loader
	window  time.Duration
	now     func() time.Time
	metrics *metrics.Registry
	logger  zerolog.Logger

	mu      sync.RWMutex
	current *entry
	flight  singleflight.Group
}

// New constructs a cache around l.
func New(l loader.Loader, opts Options, logger zerolog.Logger) *Cache {
	if l == nil {
		panic("cache: loader is required")
	}
	window := opts.Revalidate
	if window <= 0 {
		window = DefaultRevalidate
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		loader:  l,
		window:  window,
		now:     now,
		metrics: opts.Metrics,
		logger:  logger.With().Str("component", "constants_cache").Logger(),
	}
}

// Get returns the current bundle, loading it when the cache is cold or the epoch has expired.
func (c *Cache) Get(ctx context.Context) (*kpi.Bundle, error) {
	if e := c.fresh(); e != nil {
		c.metrics.Hit()
		return e.bundle, nil
	}
	c.metrics.Miss()
	return c.refresh(ctx, false)
}

// Refresh reloads the bundle even if the current one is fresh. It joins any load
// already in flight and follows the same stale-serve rule as Get.
func (c *Cache) Refresh(ctx context.Context) (*kpi.Bundle, error) {
	return c.refresh(ctx, true)
}

// FetchedAt reports when the held bundle was loaded; ok is false while cold.
func (c *Cache) FetchedAt() (at time.Time, ok bool) {
	e := c.snapshot()
	if e == nil {
		return time.Time{}, false
	}
	return e.fetchedAt, true
}

// Window returns the revalidation window.
func (c *Cache) Window() time.Duration { return c.window }

func (c *Cache) refresh(ctx context.Context, force bool) (*kpi.Bundle, error) {
	// The load outlives any single caller: others may be waiting on it.
	loadCtx := context.WithoutCancel(ctx)

	v, err, shared := c.flight.Do(flightKey, func() (interface{}, error) {
		if !force {
			// A flight that finished just before this one started may already have refreshed.
			if e := c.fresh(); e != nil {
				return e.bundle, nil
			}
		}
		return c.load(loadCtx)
	})
	if shared {
		c.logger.Debug().Msg("joined in-flight constants load")
	}
	if err != nil {
		return nil, err
	}
	return v.(*kpi.Bundle), nil
}

func (c *Cache) load(ctx context.Context) (*kpi.Bundle, error) {
	started := time.Now()
	bundle, err := c.loader.Load(ctx)
	if err == nil && bundle == nil {
		err = errors.New("loader returned no bundle")
	}
	c.metrics.Loaded(started, err)

	if err != nil {
		if prev := c.snapshot(); prev != nil {
			c.metrics.Stale()
			c.logger.Warn().Err(err).Time("fetched_at", prev.fetchedAt).Msg("constants refresh failed; serving previous bundle")
			return prev.bundle, nil
		}
		c.logger.Error().Err(err).Msg("constants load failed and no previous bundle exists")
		return nil, loader.Unavailable("cache", err)
	}

	fetchedAt := c.now()
	c.mu.Lock()
	c.current = &entry{bundle: bundle, fetchedAt: fetchedAt}
	c.mu.Unlock()

	c.metrics.Fetched(fetchedAt)
	c.logger.Info().Int("rows", bundle.Len()).Time("fetched_at", fetchedAt).Msg("constants refreshed")
	return bundle, nil
}

func (c *Cache) fresh() *entry {
	e := c.snapshot()
	if e == nil || c.now().Sub(e.fetchedAt) >= c.window {
		return nil
	}
	return e
}

func (c *Cache) snapshot() *entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Scoped is a per-request view of the cache: however many sections ask, the
// request performs at most one cache lookup and every caller sees the same result.
type Scoped struct {
	cache  *Cache
	once   sync.Once
	bundle *kpi.Bundle
	err    error
}

// Scoped starts a new request view.
func (c *Cache) Scoped() *Scoped {
	return &Scoped{cache: c}
}

// Get resolves the bundle on first use and memoises the result, error included.
func (s *Scoped) Get(ctx context.Context) (*kpi.Bundle, error) {
	s.once.Do(func() {
		s.bundle, s.err = s.cache.Get(ctx)
	})
	return s.bundle, s.err
}
