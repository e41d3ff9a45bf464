// Package memo caches the results of expensive asynchronous loads with
// single-flight semantics: per key, at most one load runs at a time and
// every caller that arrives while it runs shares its outcome.
//
// Entries move Empty -> Loading -> Ready. Ready is kept until Clear (or
// until evicted when a capacity is set). A failed load is not cached: its
// waiters all receive the error and the entry returns to Empty, so the
// next Get retries.
package memo

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/michaelpento.lv/levquote/utils/metrics"
)

// State is the lifecycle position of one key.
type State int

const (
	Empty State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// LoadFunc produces the value for key. It receives a context that carries
// the first caller's values but not its cancellation.
type LoadFunc[K, V any] func(ctx context.Context, key K) (V, error)

type options struct {
	name     string
	logger   *zap.Logger
	metrics  *metrics.CacheMetrics
	capacity int
}

type Option func(*options)

// WithName labels log lines from this cache.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *metrics.CacheMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCapacity bounds the number of ready entries with an LRU policy.
// Zero keeps every entry until Clear.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// Map memoizes a keyed async load. Keys are compared by the string keyFn
// returns, never by identity.
type Map[K, V any] struct {
	keyFn func(K) string
	load  LoadFunc[K, V]
	store store[V]
	group singleflight.Group

	mu       sync.Mutex
	gen      uint64
	inflight map[string]uint64

	name    string
	logger  *zap.Logger
	metrics *metrics.CacheMetrics
}

// NewMap builds a Map. It only fails when WithCapacity is given a negative size.
func NewMap[K, V any](keyFn func(K) string, load LoadFunc[K, V], opts ...Option) (*Map[K, V], error) {
	o := options{name: "memo"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.metrics == nil {
		o.metrics = metrics.NewCacheMetrics(nil, metrics.DefaultNamespace, o.name)
	}

	m := &Map[K, V]{
		keyFn:    keyFn,
		load:     load,
		inflight: make(map[string]uint64),
		name:     o.name,
		logger:   o.logger,
		metrics:  o.metrics,
	}

	if o.capacity != 0 {
		s, err := newLRUStore[V](o.capacity, o.logger)
		if err != nil {
			return nil, err
		}
		m.store = s
	} else {
		m.store = newShardedStore[V]()
	}
	return m, nil
}

// Get returns the value for key, loading it if needed. A caller whose ctx
// ends first returns ctx.Err(); the shared load keeps running for the rest.
func (m *Map[K, V]) Get(ctx context.Context, key K) (V, error) {
	k := m.keyFn(key)
	if v, ok := m.store.get(k); ok {
		m.metrics.Hits.Inc()
		return v, nil
	}
	m.metrics.Misses.Inc()
	if m.State(key) == Loading {
		m.metrics.Coalesced.Inc()
	}

	ch := m.group.DoChan(k, func() (interface{}, error) {
		return m.fill(ctx, k, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// fill runs inside the single flight for k.
func (m *Map[K, V]) fill(ctx context.Context, k string, key K) (interface{}, error) {
	// a previous flight may have stored k after our caller's lookup
	if v, ok := m.store.get(k); ok {
		return v, nil
	}

	m.mu.Lock()
	gen := m.gen
	m.inflight[k] = gen
	m.mu.Unlock()

	m.metrics.Loads.Inc()
	start := time.Now()
	v, err := m.load(context.WithoutCancel(ctx), key)
	m.metrics.LoadLatency.Observe(time.Since(start).Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.inflight[k]; ok && g == gen {
		delete(m.inflight, k)
	}

	if err != nil {
		m.metrics.LoadErrors.Inc()
		m.logger.Warn("Memoized load failed",
			zap.String("cache", m.name),
			zap.String("key", k),
			zap.Error(err))
		return nil, err
	}

	// results of a load that started before Clear are handed to its
	// waiters but not stored
	if gen == m.gen {
		m.store.add(k, v)
	}
	return v, nil
}

// State reports where key is in its lifecycle.
func (m *Map[K, V]) State(key K) State {
	k := m.keyFn(key)
	if _, ok := m.store.get(k); ok {
		return Ready
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inflight[k]; ok {
		return Loading
	}
	return Empty
}

// Clear resets every entry to Empty. Loads already running finish for
// their current waiters, but later callers start fresh loads.
func (m *Map[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	for k := range m.inflight {
		m.group.Forget(k)
	}
	m.inflight = make(map[string]uint64)
	m.store.purge()
	m.metrics.Clears.Inc()

	m.logger.Debug("Cleared memoized entries", zap.String("cache", m.name))
}

// Len returns the number of ready entries.
func (m *Map[K, V]) Len() int {
	return m.store.len()
}

// Value memoizes a single async load.
type Value[T any] struct {
	m *Map[struct{}, T]
}

func NewValue[T any](load func(ctx context.Context) (T, error), opts ...Option) *Value[T] {
	m, err := NewMap(
		func(struct{}) string { return "" },
		func(ctx context.Context, _ struct{}) (T, error) { return load(ctx) },
		opts...,
	)
	if err != nil {
		// only reachable through a bad WithCapacity, which a single value never needs
		panic(err)
	}
	return &Value[T]{m: m}
}

func (v *Value[T]) Get(ctx context.Context) (T, error) {
	return v.m.Get(ctx, struct{}{})
}

func (v *Value[T]) State() State {
	return v.m.State(struct{}{})
}

func (v *Value[T]) Clear() {
	v.m.Clear()
}
