// Package cache provides the short-TTL read-through cache shared by the
// chat stores. Instances are injected, never package-level globals, and all
// map access is mutex-guarded because callers run on multiple goroutines.
package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[T any] struct {
	data    T
	stamped time.Time
}

// Store is a TTL cache keyed by logical resource ("conversations", or a
// conversation id for message lists). Concurrent fetches for the same key
// are collapsed into one network call.
type Store[T any] struct {
	mu      sync.RWMutex
	items   map[string]entry[T]
	ttl     time.Duration
	flights singleflight.Group

	// now is swappable in tests.
	now func() time.Time
}

// New creates a Store with the given validity window.
func New[T any](ttl time.Duration) *Store[T] {
	return &Store[T]{
		items: make(map[string]entry[T]),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the cached value when the entry is younger than the TTL.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[key]
	if !ok || s.now().Sub(e.stamped) >= s.ttl {
		var zero T
		return zero, false
	}
	return e.data, true
}

// Set stores data stamped with the current time.
func (s *Store[T]) Set(key string, data T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = entry[T]{data: data, stamped: s.now()}
}

// Invalidate drops one entry. Called on every mutation of the resource.
func (s *Store[T]) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// InvalidateAll drops every entry.
func (s *Store[T]) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]entry[T])
}

// GetOrFetch returns the cached value when fresh, otherwise runs fetch and
// caches its result. Concurrent callers for the same key share a single
// in-flight fetch; its result (or error) is delivered to all of them and
// the flight is removed regardless of outcome.
func (s *Store[T]) GetOrFetch(key string, fetch func() (T, error)) (T, error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}
	v, err, _ := s.flights.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// already populated the entry.
		if v, ok := s.Get(key); ok {
			return v, nil
		}
		data, err := fetch()
		if err != nil {
			return nil, err
		}
		s.Set(key, data)
		return data, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
