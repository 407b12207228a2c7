package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// idleEvictInterval is the eviction tick used when no TTL is set.
const idleEvictInterval = time.Minute

// Entry is a value together with the time it was stored.
type Entry[T any] struct {
	Value     T
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory store keyed by feed URL. A background
// goroutine (Run) periodically evicts entries older than the TTL. A TTL of
// zero keeps entries until they are replaced.
type Store[T any] struct {
	mu   sync.RWMutex
	data map[string]*Entry[T]
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New[T any](ttl time.Duration) *Store[T] {
	return &Store[T]{
		data: make(map[string]*Entry[T]),
		ttl:  ttl,
		now:  time.Now,
	}
}

// SetTTL changes the eviction age for subsequent Evict calls.
func (s *Store[T]) SetTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttl = ttl
}

// Put stores or replaces the value for key.
// Callers must not modify v after calling Put.
func (s *Store[T]) Put(key string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = &Entry[T]{
		Value:     v,
		UpdatedAt: s.now(),
	}
}

// Get returns the Entry for key and whether one was found. The entry may be
// older than the TTL if it has not been evicted yet.
func (s *Store[T]) Get(key string) (*Entry[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	return e, ok
}

// Count returns the number of entries held, including ones past the TTL.
func (s *Store[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries whose UpdatedAt is at or before now minus TTL and
// returns how many were removed.
func (s *Store[T]) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-s.ttl)
	removed := 0
	for key, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, key)
			removed++
		}
	}
	return removed
}

// Run starts the eviction loop. It ticks at half the TTL (minimum 1 second)
// and blocks until ctx is cancelled.
func (s *Store[T]) Run(ctx context.Context) {
	s.mu.RLock()
	interval := s.ttl / 2
	s.mu.RUnlock()
	switch {
	case interval <= 0:
		interval = idleEvictInterval
	case interval < time.Second:
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted expired results", "count", n)
			}
		}
	}
}
