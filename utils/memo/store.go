package memo

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

const numShards = 16

// store holds ready values. Implementations are safe for concurrent use.
type store[V any] interface {
	get(key string) (V, bool)
	add(key string, value V)
	purge()
	len() int
}

type shard[V any] struct {
	sync.RWMutex
	entries map[string]V
}

// shardedStore is the unbounded default: entries live until Clear.
type shardedStore[V any] struct {
	shards [numShards]*shard[V]
}

func newShardedStore[V any]() *shardedStore[V] {
	s := &shardedStore[V]{}
	for i := range s.shards {
		s.shards[i] = &shard[V]{entries: make(map[string]V)}
	}
	return s
}

func (s *shardedStore[V]) shardFor(key string) *shard[V] {
	return s.shards[xxhash.Sum64String(key)%numShards]
}

func (s *shardedStore[V]) get(key string) (V, bool) {
	sh := s.shardFor(key)
	sh.RLock()
	defer sh.RUnlock()
	v, ok := sh.entries[key]
	return v, ok
}

func (s *shardedStore[V]) add(key string, value V) {
	sh := s.shardFor(key)
	sh.Lock()
	sh.entries[key] = value
	sh.Unlock()
}

func (s *shardedStore[V]) purge() {
	for _, sh := range s.shards {
		sh.Lock()
		sh.entries = make(map[string]V)
		sh.Unlock()
	}
}

func (s *shardedStore[V]) len() int {
	n := 0
	for _, sh := range s.shards {
		sh.RLock()
		n += len(sh.entries)
		sh.RUnlock()
	}
	return n
}

// lruStore bounds the number of ready entries. An evicted entry is Empty again.
type lruStore[V any] struct {
	cache *lru.Cache
}

func newLRUStore[V any](size int, logger *zap.Logger) (*lruStore[V], error) {
	cache, err := lru.NewWithEvict(size, func(key, _ interface{}) {
		logger.Debug("Evicted memoized entry", zap.Any("key", key))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &lruStore[V]{cache: cache}, nil
}

func (s *lruStore[V]) get(key string) (V, bool) {
	v, ok := s.cache.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	typed, _ := v.(V)
	return typed, true
}

func (s *lruStore[V]) add(key string, value V) {
	s.cache.Add(key, value)
}

func (s *lruStore[V]) purge() {
	s.cache.Purge()
}

func (s *lruStore[V]) len() int {
	return s.cache.Len()
}
