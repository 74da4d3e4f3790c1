package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"summary-relay/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore keeps decision counters in Redis hashes so every relay
// instance reports into one place:
//
//	<prefix>:total             allowed | denied
//	<prefix>:window            <window>:allowed | <window>:denied
//	<prefix>:route             <METHOD path>:allowed | ...:denied
//	<prefix>:minute:<yyyymmddhhmm>  allowed | denied   (expires after ttl)
//	<prefix>:key:<key>         allowed | denied        (optional, expires after ttl)
type RedisStatsStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration

	trackKeys bool
}

var _ domain.StatsStore = (*RedisStatsStore)(nil)

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithStatsTTL bounds the lifetime of the per-minute and per-key hashes.
func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func outcome(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := outcome(ev.Allowed)
	route := strings.TrimSpace(ev.Method + " " + ev.Path)

	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, s.prefix+":total", field, 1)
		if ev.Window != "" {
			pipe.HIncrBy(ctx, s.prefix+":window", ev.Window+":"+field, 1)
		}
		if route != "" {
			pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
		}
		s.incrExpiring(ctx, pipe, s.prefix+":minute:"+at.UTC().Format("200601021504"), field)
		if s.trackKeys && ev.Key != "" {
			s.incrExpiring(ctx, pipe, s.prefix+":key:"+string(ev.Key), field)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record stats: %w", err)
	}
	return nil
}

func (s *RedisStatsStore) incrExpiring(ctx context.Context, pipe redis.Pipeliner, key, field string) {
	pipe.HIncrBy(ctx, key, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

// Snapshot reads the cumulative hashes back. Per-key hashes are left out.
func (s *RedisStatsStore) Snapshot(ctx context.Context) (StatsSnapshot, error) {
	var total, window, route *redis.MapStringStringCmd
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		total = pipe.HGetAll(ctx, s.prefix+":total")
		window = pipe.HGetAll(ctx, s.prefix+":window")
		route = pipe.HGetAll(ctx, s.prefix+":route")
		return nil
	})
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("read stats: %w", err)
	}

	snap := StatsSnapshot{
		ByWindow: groupCounters(window.Val()),
		ByRoute:  groupCounters(route.Val()),
	}
	for field, v := range total.Val() {
		setOutcome(&snap.Total, field, v)
	}
	return snap, nil
}

// groupCounters folds "<name>:allowed" / "<name>:denied" hash fields into
// per-name counters. Names may contain ':'.
func groupCounters(fields map[string]string) map[string]Counters {
	out := make(map[string]Counters)
	for field, v := range fields {
		i := strings.LastIndexByte(field, ':')
		if i <= 0 {
			continue
		}
		c := out[field[:i]]
		setOutcome(&c, field[i+1:], v)
		out[field[:i]] = c
	}
	return out
}

func setOutcome(c *Counters, field, v string) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return
	}
	switch field {
	case "allowed":
		c.Allowed = n
	case "denied":
		c.Denied = n
	}
}
