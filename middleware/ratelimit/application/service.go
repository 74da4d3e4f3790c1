package application

import (
	"context"
	"fmt"
	"time"

	"summary-relay/middleware/ratelimit/domain"
)

// Service applies one fixed window on top of a CounterStore.
//
// It knows nothing about HTTP (headers/status), it only returns a decision.
type Service struct {
	Store  domain.CounterStore
	Window domain.Window
	Now    func() time.Time
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Service) key(identifier string) domain.Key {
	return domain.NewKey(s.Window.Name, identifier)
}

// Decide counts one hit for identifier and reports whether it fits the window.
// Rejected hits are counted too. On store failure the request is allowed and
// the error is returned for logging.
func (s Service) Decide(ctx context.Context, identifier string) (domain.Decision, error) {
	if s.Store == nil || s.Window.Limit <= 0 {
		return domain.Decision{Allowed: true}, nil
	}

	now := s.now()
	c, err := s.Store.Increment(ctx, s.key(identifier), s.Window.Duration, now)
	if err != nil {
		return domain.Decision{Allowed: true}, fmt.Errorf("increment %s counter: %w", s.Window.Name, err)
	}

	return s.decision(c, now), nil
}

// Peek reports the current quota for identifier without counting a hit.
func (s Service) Peek(ctx context.Context, identifier string) (domain.Decision, error) {
	now := s.now()
	if s.Store == nil {
		return domain.Decision{Allowed: true, Limit: s.Window.Limit, Remaining: s.Window.Limit}, nil
	}

	c, ok, err := s.Store.Get(ctx, s.key(identifier), now)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("get %s counter: %w", s.Window.Name, err)
	}
	if !ok {
		return domain.Decision{
			Allowed:   true,
			Limit:     s.Window.Limit,
			Remaining: s.Window.Limit,
			ResetAt:   now.Add(s.Window.Duration),
		}, nil
	}
	remaining := s.Window.Limit - c.Hits
	if remaining < 0 {
		remaining = 0
	}
	return domain.Decision{
		Allowed:   remaining > 0,
		Limit:     s.Window.Limit,
		Remaining: remaining,
		ResetAt:   c.ResetAt,
	}, nil
}

// Reset clears the counter of identifier in this window.
func (s Service) Reset(ctx context.Context, identifier string) error {
	if s.Store == nil {
		return nil
	}
	if err := s.Store.Reset(ctx, s.key(identifier)); err != nil {
		return fmt.Errorf("reset %s counter: %w", s.Window.Name, err)
	}
	return nil
}

func (s Service) decision(c domain.Counter, now time.Time) domain.Decision {
	remaining := s.Window.Limit - c.Hits
	if remaining < 0 {
		remaining = 0
	}
	dec := domain.Decision{
		Allowed:   c.Hits <= s.Window.Limit,
		Limit:     s.Window.Limit,
		Remaining: remaining,
		ResetAt:   c.ResetAt,
	}
	if !dec.Allowed {
		dec.RetryAfter = c.ResetAt.Sub(now)
		if dec.RetryAfter < 0 {
			dec.RetryAfter = 0
		}
	}
	return dec
}
