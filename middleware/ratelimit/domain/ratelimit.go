package domain

// Rate limit domain layer.
//
// Rules and contracts (interfaces/types) with no dependency on net/http.

import (
	"context"
	"time"
)

// Key identifies one counter. It is the window name plus the client
// identifier, so a single store can serve several windows.
type Key string

// NewKey joins a window name and a client identifier.
func NewKey(window, identifier string) Key {
	return Key(window + ":" + identifier)
}

// Window is a fixed time span over which a request count is bounded.
type Window struct {
	Name     string
	Duration time.Duration
	Limit    int
	// Message is returned to the client when the window rejects a request.
	Message string
}

// Counter is the state of one key in its active window.
type Counter struct {
	Hits        int
	WindowStart time.Time
	ResetAt     time.Time
}

// CounterStore holds per-key fixed-window counters.
//
// Increment must be atomic with respect to concurrent calls for the same key:
// the window rollover, the increment and the returned snapshot happen as one step.
// Implementations can be in-memory (single process) or shared (Redis, etc).
type CounterStore interface {
	Increment(ctx context.Context, key Key, window time.Duration, now time.Time) (Counter, error)
	Get(ctx context.Context, key Key, now time.Time) (Counter, bool, error)
	Reset(ctx context.Context, key Key) error
}

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is the value for Retry-After when the request is blocked.
	// Zero when allowed.
	RetryAfter time.Duration
}
