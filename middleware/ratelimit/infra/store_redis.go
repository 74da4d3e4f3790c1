package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"summary-relay/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// incrementScript bumps the counter and starts its TTL on the first hit of a
// window, returning {hits, pttl}. Running it as a script keeps both steps
// atomic across every instance sharing the Redis.
var incrementScript = redis.NewScript(`
local hits = redis.call('INCR', KEYS[1])
if hits == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {hits, ttl}
`)

// RedisStore keeps fixed-window counters in Redis so several relay instances
// enforce one shared quota. The Redis TTL is the window.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
}

var _ domain.CounterStore = (*RedisStore)(nil)

type RedisStoreOption func(*RedisStore)

func WithStorePrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisStore(rdb redis.Cmdable, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "ratelimit:counter",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) redisKey(key domain.Key) string {
	return s.prefix + ":" + string(key)
}

// Increment implements domain.CounterStore.
func (s *RedisStore) Increment(ctx context.Context, key domain.Key, window time.Duration, now time.Time) (domain.Counter, error) {
	res, err := incrementScript.Run(ctx, s.rdb, []string{s.redisKey(key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return domain.Counter{}, err
	}
	if len(res) != 2 {
		return domain.Counter{}, fmt.Errorf("unexpected script reply length %d", len(res))
	}

	resetAt := now.Add(time.Duration(res[1]) * time.Millisecond)
	return domain.Counter{
		Hits:        int(res[0]),
		WindowStart: resetAt.Add(-window),
		ResetAt:     resetAt,
	}, nil
}

// Get implements domain.CounterStore. WindowStart is unknown without the
// window length and is left zero.
func (s *RedisStore) Get(ctx context.Context, key domain.Key, now time.Time) (domain.Counter, bool, error) {
	rk := s.redisKey(key)

	pipe := s.rdb.Pipeline()
	getCmd := pipe.Get(ctx, rk)
	ttlCmd := pipe.PTTL(ctx, rk)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.Counter{}, false, err
	}

	hits, err := getCmd.Int()
	if errors.Is(err, redis.Nil) {
		return domain.Counter{}, false, nil
	}
	if err != nil {
		return domain.Counter{}, false, err
	}

	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return domain.Counter{}, false, nil
	}
	return domain.Counter{Hits: hits, ResetAt: now.Add(ttl)}, true, nil
}

// Reset implements domain.CounterStore.
func (s *RedisStore) Reset(ctx context.Context, key domain.Key) error {
	return s.rdb.Del(ctx, s.redisKey(key)).Err()
}
