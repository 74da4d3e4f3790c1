package domain

import (
	"context"
	"time"
)

// StatsEvent is one rate limit decision.
//
// Method/Path are plain strings so the event stays transport agnostic.
// Watch the cardinality: storing Key/Path unchecked can blow up the number
// of series/keys in a backend like Redis.
type StatsEvent struct {
	Key     Key
	Window  string
	Allowed bool

	Method string
	Path   string

	At time.Time
}

// StatsStore persists rate limit statistics.
//
// Callers treat errors as best-effort and never fail a request because of them.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
