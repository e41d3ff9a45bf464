package memo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/levquote/utils/metrics"
)

type countingLoader struct {
	calls   atomic.Int32
	release chan struct{}
	fail    atomic.Bool
}

func newCountingLoader() *countingLoader {
	return &countingLoader{release: make(chan struct{})}
}

func (c *countingLoader) load(ctx context.Context, key string) (string, error) {
	n := c.calls.Add(1)
	<-c.release
	if c.fail.Load() {
		return "", errors.New("upstream unavailable")
	}
	return fmt.Sprintf("%s#%d", key, n), nil
}

func newStringMap(t *testing.T, l *countingLoader, opts ...Option) *Map[string, string] {
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	m, err := NewMap(func(k string) string { return k }, l.load, opts...)
	require.NoError(t, err)
	return m
}

func TestValueSingleFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	cm := metrics.NewCacheMetrics(nil, "test", "value")
	v := NewValue(func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}, WithLogger(zaptest.NewLogger(t)), WithMetrics(cm))

	assert.Equal(t, Empty, v.State())

	const callers = 5
	var wg sync.WaitGroup
	results := make([]int, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = v.Get(context.Background())
		}(i)
	}

	// every caller has missed the cache before the load is allowed to finish
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(cm.Misses) == callers
	}, time.Second, time.Millisecond)
	assert.Equal(t, Loading, v.State())
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, float64(0), testutil.ToFloat64(cm.Hits))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 42, results[i])
	}
	assert.Equal(t, Ready, v.State())

	// ready values are served without another load
	got, err := v.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMapSharesValueAcrossCallers(t *testing.T) {
	l := newCountingLoader()
	cm := metrics.NewCacheMetrics(nil, "test", "shared")
	m := newStringMap(t, l, WithMetrics(cm))

	const callers = 5
	var wg sync.WaitGroup
	results := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := m.Get(context.Background(), "weth")
			assert.NoError(t, err)
			results <- v
		}()
	}

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(cm.Misses) == callers
	}, time.Second, time.Millisecond)
	assert.Equal(t, Loading, m.State("weth"))
	close(l.release)
	wg.Wait()
	close(results)

	assert.Equal(t, int32(1), l.calls.Load())
	assert.Equal(t, float64(0), testutil.ToFloat64(cm.Hits))
	for v := range results {
		assert.Equal(t, "weth#1", v)
	}
}

func TestMapKeyIsolationAndClear(t *testing.T) {
	l := newCountingLoader()
	close(l.release)
	m := newStringMap(t, l)
	ctx := context.Background()

	v1, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	v2, err := m.Get(ctx, "k2")
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2)
	assert.Equal(t, int32(2), l.calls.Load())
	assert.Equal(t, Ready, m.State("k1"))
	assert.Equal(t, Ready, m.State("k2"))
	assert.Equal(t, 2, m.Len())

	m.Clear()
	assert.Equal(t, Empty, m.State("k1"))
	assert.Equal(t, Empty, m.State("k2"))
	assert.Equal(t, 0, m.Len())

	_, err = m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), l.calls.Load())
}

func TestMapKeyFunction(t *testing.T) {
	type pair struct {
		base  *string
		quote *string
	}
	weth, usdc := "weth", "usdc"
	weth2, usdc2 := "weth", "usdc"

	var calls atomic.Int32
	m, err := NewMap(
		func(p pair) string { return *p.base + "/" + *p.quote },
		func(ctx context.Context, p pair) (int, error) {
			calls.Add(1)
			return 1800, nil
		},
	)
	require.NoError(t, err)

	_, err = m.Get(context.Background(), pair{&weth, &usdc})
	require.NoError(t, err)
	// distinct pointers, same content: same entry
	_, err = m.Get(context.Background(), pair{&weth2, &usdc2})
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
}

func TestFailedLoadIsRetried(t *testing.T) {
	l := newCountingLoader()
	close(l.release)
	l.fail.Store(true)
	m := newStringMap(t, l)

	_, err := m.Get(context.Background(), "k")
	require.Error(t, err)
	assert.Equal(t, Empty, m.State("k"))

	l.fail.Store(false)
	v, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "k#2", v)
	assert.Equal(t, Ready, m.State("k"))
}

func TestFailedLoadReachesAllWaiters(t *testing.T) {
	l := newCountingLoader()
	l.fail.Store(true)
	m := newStringMap(t, l)

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Get(context.Background(), "k")
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return m.State("k") == Loading }, time.Second, time.Millisecond)
	close(l.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.Error(t, err)
	}
}

func TestCallerCancellation(t *testing.T) {
	l := newCountingLoader()
	m := newStringMap(t, l)

	done := make(chan string)
	go func() {
		v, err := m.Get(context.Background(), "k")
		assert.NoError(t, err)
		done <- v
	}()
	require.Eventually(t, func() bool { return m.State("k") == Loading }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)

	close(l.release)
	assert.Equal(t, "k#1", <-done)
	assert.Equal(t, int32(1), l.calls.Load())
}

func TestClearDuringLoad(t *testing.T) {
	l := newCountingLoader()
	m := newStringMap(t, l)

	done := make(chan string)
	go func() {
		v, err := m.Get(context.Background(), "k")
		assert.NoError(t, err)
		done <- v
	}()
	require.Eventually(t, func() bool { return m.State("k") == Loading }, time.Second, time.Millisecond)

	m.Clear()
	assert.Equal(t, Empty, m.State("k"))

	close(l.release)
	assert.Equal(t, "k#1", <-done)
	// the pre-clear result is not stored
	assert.Equal(t, Empty, m.State("k"))

	v, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "k#2", v)
}

func TestCapacity(t *testing.T) {
	l := newCountingLoader()
	close(l.release)
	m := newStringMap(t, l, WithCapacity(2))
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		_, err := m.Get(ctx, k)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, Empty, m.State("a"))
	assert.Equal(t, Ready, m.State("c"))

	_, err := NewMap(func(k string) string { return k }, l.load, WithCapacity(-1))
	assert.Error(t, err)
}

func TestCacheMetrics(t *testing.T) {
	l := newCountingLoader()
	close(l.release)
	cm := metrics.NewCacheMetrics(metrics.NewRegistry(), "test", "memo")
	m := newStringMap(t, l, WithMetrics(cm), WithName("memo"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := m.Get(ctx, "k")
		require.NoError(t, err)
	}
	m.Clear()

	assert.Equal(t, float64(1), testutil.ToFloat64(cm.Loads))
	assert.Equal(t, float64(1), testutil.ToFloat64(cm.Misses))
	assert.Equal(t, float64(2), testutil.ToFloat64(cm.Hits))
	assert.Equal(t, float64(1), testutil.ToFloat64(cm.Clears))
}
