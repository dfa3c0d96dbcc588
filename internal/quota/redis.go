package quota

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisStore keeps one counter per provider per UTC day and reserves with an
// atomic Lua compare-and-increment, so concurrent requests can never pass the
// limit together. Day rollover is implicit: each day uses fresh keys and stale
// keys expire on their own.
type RedisStore struct {
	client    goredis.Cmdable
	limits    map[string]int
	keyPrefix string
	now       func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisClock overrides the time source.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) { s.now = now }
}

// WithKeyPrefix sets the Redis key prefix (default "artmorph:quota:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.keyPrefix = prefix }
}

// NewRedisStore creates a Redis-backed Store with the given daily limits.
func NewRedisStore(client goredis.Cmdable, limits map[string]int, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		limits:    limits,
		keyPrefix: "artmorph:quota:",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// reserveScript atomically increments the counter unless the limit is reached.
// KEYS[1] = per-provider per-day counter
// ARGV[1] = daily limit
// Returns 1 when reserved, 0 when the limit is reached.
var reserveScript = goredis.NewScript(`
local count = tonumber(redis.call("GET", KEYS[1]) or "0")
local limit = tonumber(ARGV[1])
if count >= limit then
    return 0
end
redis.call("INCR", KEYS[1])
redis.call("EXPIRE", KEYS[1], 172800)
return 1
`)

func (s *RedisStore) key(day, provider string) string {
	return s.keyPrefix + day + ":" + provider
}

// Load assembles today's snapshot from the per-provider counters. Redis
// errors degrade to zero counts, never to a caller-visible failure.
func (s *RedisStore) Load(ctx context.Context) State {
	today := day(s.now)
	st := defaultState(s.limits, today)
	for name := range s.limits {
		n, err := s.client.Get(ctx, s.key(today, name)).Int()
		if err != nil && err != goredis.Nil {
			log.Warn().Err(err).Str("provider", name).Msg("quota read failed, assuming zero")
			continue
		}
		st.Counts[name] = n
	}
	return st
}

// Reserve consumes one request for the provider today, atomically.
func (s *RedisStore) Reserve(ctx context.Context, provider string) bool {
	today := day(s.now)
	res, err := reserveScript.Run(ctx, s.client,
		[]string{s.key(today, provider)},
		limitFor(s.limits, provider),
	).Int64()
	if err != nil {
		// Fail open: an unreachable Redis must not take the service down with it.
		log.Warn().Err(err).Str("provider", provider).Msg("quota reserve failed, allowing")
		return true
	}
	return res == 1
}

func (s *RedisStore) Close() error {
	if c, ok := s.client.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close redis client: %w", err)
		}
	}
	return nil
}
