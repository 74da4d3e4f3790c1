package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"summary-relay/middleware/ratelimit/domain"
)

// fakeStore is a minimal fixed-window store for exercising the service.
type fakeStore struct {
	counters map[domain.Key]domain.Counter
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{counters: make(map[domain.Key]domain.Counter)}
}

func (s *fakeStore) Increment(_ context.Context, key domain.Key, window time.Duration, now time.Time) (domain.Counter, error) {
	if s.err != nil {
		return domain.Counter{}, s.err
	}
	c, ok := s.counters[key]
	if !ok || !now.Before(c.ResetAt) {
		c = domain.Counter{WindowStart: now, ResetAt: now.Add(window)}
	}
	c.Hits++
	s.counters[key] = c
	return c, nil
}

func (s *fakeStore) Get(_ context.Context, key domain.Key, now time.Time) (domain.Counter, bool, error) {
	if s.err != nil {
		return domain.Counter{}, false, s.err
	}
	c, ok := s.counters[key]
	if !ok || !now.Before(c.ResetAt) {
		return domain.Counter{}, false, nil
	}
	return c, true, nil
}

func (s *fakeStore) Reset(_ context.Context, key domain.Key) error {
	delete(s.counters, key)
	return s.err
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newService(store domain.CounterStore, clock *fakeClock, limit int, window time.Duration) Service {
	return Service{
		Store:  store,
		Window: domain.Window{Name: "w", Duration: window, Limit: limit},
		Now:    clock.Now,
	}
}

func TestService_Decide_AllowsWhenNoStore(t *testing.T) {
	svc := Service{}
	dec, err := svc.Decide(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_RejectsAfterLimit(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	svc := newService(newFakeStore(), clock, 10, time.Minute)

	for i := 1; i <= 10; i++ {
		dec, err := svc.Decide(context.Background(), "10.0.0.1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !dec.Allowed {
			t.Fatalf("expected request %d to be allowed", i)
		}
		if dec.Remaining != 10-i {
			t.Fatalf("expected remaining=%d, got %d", 10-i, dec.Remaining)
		}
	}

	clock.Advance(20 * time.Second)
	dec, _ := svc.Decide(context.Background(), "10.0.0.1")
	if dec.Allowed {
		t.Fatalf("expected 11th request to be rejected")
	}
	if dec.Remaining != 0 {
		t.Fatalf("expected remaining=0, got %d", dec.Remaining)
	}
	if dec.RetryAfter != 40*time.Second {
		t.Fatalf("expected RetryAfter=40s, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_WindowRollsOver(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	svc := newService(newFakeStore(), clock, 1, time.Minute)

	if dec, _ := svc.Decide(context.Background(), "k"); !dec.Allowed {
		t.Fatalf("expected first request allowed")
	}
	if dec, _ := svc.Decide(context.Background(), "k"); dec.Allowed {
		t.Fatalf("expected second request rejected")
	}

	clock.Advance(time.Minute)
	if dec, _ := svc.Decide(context.Background(), "k"); !dec.Allowed {
		t.Fatalf("expected request allowed in the next window")
	}
}

func TestService_Decide_IdentifiersAreIndependent(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newService(newFakeStore(), clock, 1, time.Minute)

	_, _ = svc.Decide(context.Background(), "a")
	if dec, _ := svc.Decide(context.Background(), "a"); dec.Allowed {
		t.Fatalf("expected a to be exhausted")
	}
	if dec, _ := svc.Decide(context.Background(), "b"); !dec.Allowed {
		t.Fatalf("expected b to be unaffected by a")
	}
}

func TestService_Decide_FailsOpenOnStoreError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")
	svc := newService(store, &fakeClock{t: time.Now()}, 1, time.Minute)

	dec, err := svc.Decide(context.Background(), "k")
	if err == nil {
		t.Fatalf("expected store error to be returned")
	}
	if !dec.Allowed {
		t.Fatalf("expected request to be allowed on store error")
	}
}

func TestService_Peek_DoesNotCount(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newService(newFakeStore(), clock, 2, time.Minute)

	for i := 0; i < 5; i++ {
		dec, err := svc.Peek(context.Background(), "k")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dec.Remaining != 2 {
			t.Fatalf("expected remaining=2, got %d", dec.Remaining)
		}
	}

	_, _ = svc.Decide(context.Background(), "k")
	dec, _ := svc.Peek(context.Background(), "k")
	if dec.Remaining != 1 || !dec.Allowed {
		t.Fatalf("expected remaining=1 after one hit, got %+v", dec)
	}
}

func TestService_Reset_ClearsCounter(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newService(newFakeStore(), clock, 1, time.Minute)

	_, _ = svc.Decide(context.Background(), "k")
	if err := svc.Reset(context.Background(), "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec, _ := svc.Decide(context.Background(), "k"); !dec.Allowed {
		t.Fatalf("expected request allowed after reset")
	}
}
