package infra

import (
	"context"
	"sync"
	"time"

	"summary-relay/middleware/ratelimit/domain"
)

// MemoryStore is an in-process fixed-window counter store with periodic
// eviction of elapsed windows. State is lost on restart.
type MemoryStore struct {
	mu           sync.Mutex
	entries      map[domain.Key]*storeEntry
	cleanupEvery time.Duration
	now          func() time.Time
}

type storeEntry struct {
	hits        int
	windowStart time.Time
	resetAt     time.Time
}

var _ domain.CounterStore = (*MemoryStore)(nil)

type StoreOption func(*MemoryStore)

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

// WithClock sets the clock used by Cleanup.
func WithClock(now func() time.Time) StoreOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	s := &MemoryStore{
		entries:      make(map[domain.Key]*storeEntry),
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Increment implements domain.CounterStore.
func (s *MemoryStore) Increment(_ context.Context, key domain.Key, window time.Duration, now time.Time) (domain.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok || !now.Before(ent.resetAt) {
		ent = &storeEntry{windowStart: now, resetAt: now.Add(window)}
		s.entries[key] = ent
	}
	ent.hits++

	return ent.counter(), nil
}

// Get implements domain.CounterStore.
func (s *MemoryStore) Get(_ context.Context, key domain.Key, now time.Time) (domain.Counter, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok || !now.Before(ent.resetAt) {
		return domain.Counter{}, false, nil
	}
	return ent.counter(), true, nil
}

// Reset implements domain.CounterStore.
func (s *MemoryStore) Reset(_ context.Context, key domain.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup drops every entry whose window has elapsed.
func (s *MemoryStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if !now.Before(ent.resetAt) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor starts a goroutine that evicts elapsed windows periodically.
// Stop it by cancelling the context.
func (s *MemoryStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// DoneContext is the minimum needed to accept a context.Context.
type DoneContext interface {
	Done() <-chan struct{}
}

func (e *storeEntry) counter() domain.Counter {
	return domain.Counter{Hits: e.hits, WindowStart: e.windowStart, ResetAt: e.resetAt}
}
