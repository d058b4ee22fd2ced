package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sogif-site/internal/kpi"
	"sogif-site/internal/loader"
	"sogif-site/internal/metrics"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// scriptedLoader returns bundles or errors from a queue and counts invocations.
type scriptedLoader struct {
	calls   atomic.Int32
	release chan struct{}
	mu      sync.Mutex
	results []result
}

type result struct {
	bundle *kpi.Bundle
	err    error
}

func (l *scriptedLoader) push(b *kpi.Bundle, err error) {
	l.mu.Lock()
	l.results = append(l.results, result{bundle: b, err: err})
	l.mu.Unlock()
}

func (l *scriptedLoader) Load(ctx context.Context) (*kpi.Bundle, error) {
	l.calls.Add(1)
	if l.release != nil {
		<-l.release
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.results) == 0 {
		return nil, errors.New("no scripted result")
	}
	r := l.results[0]
	l.results = l.results[1:]
	return r.bundle, r.err
}

func newBundle(t *testing.T, portal string) *kpi.Bundle {
	t.Helper()
	b, err := kpi.NewBundle(kpi.Performance{AsAt: portal}, []kpi.Row{{MonthLabel: "Jan 2025", SortKey: "2025-01"}}, kpi.Reference{PortalURL: portal})
	require.NoError(t, err)
	return b
}

func newCache(l loader.Loader, clock *fakeClock, reg *metrics.Registry) *Cache {
	return New(l, Options{Revalidate: time.Hour, Now: clock.Now, Metrics: reg}, zerolog.Nop())
}

func TestGetServesFreshBundleWithoutReloading(t *testing.T) {
	clock := newClock()
	l := &scriptedLoader{}
	first := newBundle(t, "v1")
	l.push(first, nil)

	c := newCache(l, clock, nil)
	for i := 0; i < 3; i++ {
		got, err := c.Get(context.Background())
		require.NoError(t, err)
		assert.Same(t, first, got)
		clock.Advance(59 * time.Minute / 3)
	}
	assert.EqualValues(t, 1, l.calls.Load())
}

func TestGetReloadsAfterEpoch(t *testing.T) {
	clock := newClock()
	l := &scriptedLoader{}
	first, second := newBundle(t, "v1"), newBundle(t, "v2")
	l.push(first, nil)
	l.push(second, nil)

	c := newCache(l, clock, nil)
	got, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, got)

	clock.Advance(time.Hour)
	got, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.EqualValues(t, 2, l.calls.Load())

	at, ok := c.FetchedAt()
	require.True(t, ok)
	assert.Equal(t, clock.Now(), at)
}

func TestConcurrentGetsCoalesceIntoOneLoad(t *testing.T) {
	clock := newClock()
	l := &scriptedLoader{}
	first, second := newBundle(t, "v1"), newBundle(t, "v2")
	l.push(first, nil)
	l.push(second, nil)

	c := newCache(l, clock, nil)
	_, err := c.Get(context.Background())
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	l.release = make(chan struct{})

	const callers = 32
	var wg sync.WaitGroup
	got := make([]*kpi.Bundle, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], errs[i] = c.Get(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return l.calls.Load() == 2 }, time.Second, time.Millisecond)
	close(l.release)
	wg.Wait()

	assert.EqualValues(t, 2, l.calls.Load(), "one load for the cold start, one for the expired epoch")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, second, got[i])
	}
}

func TestRefreshFailureServesPreviousBundle(t *testing.T) {
	clock := newClock()
	reg := metrics.New()
	l := &scriptedLoader{}
	first := newBundle(t, "v1")
	l.push(first, nil)
	l.push(nil, loader.Unavailable("http", errors.New("cms timeout")))

	c := newCache(l, clock, reg)
	_, err := c.Get(context.Background())
	require.NoError(t, err)

	clock.Advance(90 * time.Minute)
	got, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.StaleServes))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RefreshFailures))
}

func TestColdStartFailurePropagatesDataUnavailable(t *testing.T) {
	l := &scriptedLoader{}
	l.push(nil, errors.New("dial tcp: connection refused"))

	c := newCache(l, newClock(), nil)
	got, err := c.Get(context.Background())
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, loader.ErrDataUnavailable), "got %v", err)

	_, ok := c.FetchedAt()
	assert.False(t, ok)
}

func TestConcurrentColdFailureReachesEveryWaiter(t *testing.T) {
	l := &scriptedLoader{release: make(chan struct{})}
	for i := 0; i < 8; i++ {
		l.push(nil, errors.New("cms down"))
	}

	c := newCache(l, newClock(), nil)
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Get(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return l.calls.Load() >= 1 }, time.Second, time.Millisecond)
	close(l.release)
	wg.Wait()

	for _, err := range errs {
		assert.True(t, errors.Is(err, loader.ErrDataUnavailable))
	}
}

func TestNilBundleIsTreatedAsFailure(t *testing.T) {
	l := &scriptedLoader{}
	l.push(nil, nil)

	_, err := newCache(l, newClock(), nil).Get(context.Background())
	assert.True(t, errors.Is(err, loader.ErrDataUnavailable))
}

func TestRefreshForcesReload(t *testing.T) {
	clock := newClock()
	l := &scriptedLoader{}
	first, second := newBundle(t, "v1"), newBundle(t, "v2")
	l.push(first, nil)
	l.push(second, nil)

	c := newCache(l, clock, nil)
	_, err := c.Get(context.Background())
	require.NoError(t, err)

	got, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Same(t, second, got)

	got, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestCancelledCallerDoesNotCancelLoad(t *testing.T) {
	want := newBundle(t, "v1")
	l := loader.Func(func(ctx context.Context) (*kpi.Bundle, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return want, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := newCache(l, newClock(), nil).Get(ctx)
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestScopedPerformsOneLookupPerRequest(t *testing.T) {
	clock := newClock()
	reg := metrics.New()
	l := &scriptedLoader{}
	first := newBundle(t, "v1")
	l.push(first, nil)

	c := newCache(l, clock, reg)
	scope := c.Scoped()
	for i := 0; i < 5; i++ {
		got, err := scope.Get(context.Background())
		require.NoError(t, err)
		assert.Same(t, first, got)
	}

	lookups := testutil.ToFloat64(reg.CacheHits) + testutil.ToFloat64(reg.CacheMisses)
	assert.Equal(t, 1.0, lookups)
	assert.EqualValues(t, 1, l.calls.Load())

	_, err := c.Scoped().Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheHits), "a new request performs its own lookup")
}

func TestScopedMemoisesErrors(t *testing.T) {
	l := &scriptedLoader{}
	l.push(nil, errors.New("down"))
	l.push(newBundle(t, "v1"), nil)

	scope := newCache(l, newClock(), nil).Scoped()
	_, err1 := scope.Get(context.Background())
	_, err2 := scope.Get(context.Background())
	assert.Error(t, err1)
	assert.Equal(t, err1, err2)
	assert.EqualValues(t, 1, l.calls.Load())
}
