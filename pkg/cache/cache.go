// Package cache provides a small, bounded, concurrency-safe cache with
// oldest-first eviction.
//
// It backs the process-wide transition-graph and compiled-artifact caches.
// Instances are constructed explicitly and passed to the components that use
// them; there is no package-level singleton.
package cache

import "sync"

// DefaultCapacity is used when a non-positive capacity is given.
const DefaultCapacity = 64

// Bounded is a fixed-capacity map that evicts the oldest insertion first.
// Concurrent misses for the same key may both compute and insert a value;
// the later insert replaces the earlier one without disturbing the eviction
// order.
type Bounded[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]V
	order    []K
	onEvict  func(K, V)
}

// Option configures a Bounded cache.
type Option[K comparable, V any] func(*Bounded[K, V])

// WithEvictHook registers a callback invoked (under the cache lock) whenever
// an entry is evicted.
func WithEvictHook[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(b *Bounded[K, V]) {
		b.onEvict = fn
	}
}

// New creates a cache holding at most capacity entries.
func New[K comparable, V any](capacity int, opts ...Option[K, V]) *Bounded[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Bounded[K, V]{
		capacity: capacity,
		items:    make(map[K]V, capacity),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Get returns the cached value for key.
func (b *Bounded[K, V]) Get(key K) (V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.items[key]
	return v, ok
}

// Add inserts or replaces key, evicting the oldest entries beyond capacity.
func (b *Bounded[K, V]) Add(key K, v V) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.items[key]; exists {
		b.items[key] = v
		return
	}
	b.items[key] = v
	b.order = append(b.order, key)

	for len(b.order) > b.capacity {
		oldest := b.order[0]
		b.order = b.order[1:]
		evicted := b.items[oldest]
		delete(b.items, oldest)
		if b.onEvict != nil {
			b.onEvict(oldest, evicted)
		}
	}
}

// GetOrAdd returns the cached value or builds, stores and returns a new one.
// build runs outside the lock, so it may run more than once for a key under
// concurrent misses.
func (b *Bounded[K, V]) GetOrAdd(key K, build func() (V, error)) (V, error) {
	if v, ok := b.Get(key); ok {
		return v, nil
	}
	v, err := build()
	if err != nil {
		var zero V
		return zero, err
	}
	b.Add(key, v)
	return v, nil
}

// Remove drops key if present.
func (b *Bounded[K, V]) Remove(key K) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[key]; !ok {
		return
	}
	delete(b.items, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of cached entries.
func (b *Bounded[K, V]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Keys returns the keys from oldest to newest.
func (b *Bounded[K, V]) Keys() []K {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]K(nil), b.order...)
}
