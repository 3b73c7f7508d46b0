package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"clearance/internal/ratelimit"
)

// slidingWindowScript trims the window, admits the request when it fits,
// and returns {allowed, count, oldest_ms}. Running it as one script keeps the
// check and the insert atomic across replicas.
var slidingWindowScript = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestMs = now
if oldest[2] ~= nil then
  oldestMs = tonumber(oldest[2])
end
return {allowed, count, oldestMs}
`)

// Redis is a sliding window store shared by every replica.
type Redis struct {
	client redis.Scripter
	now    func() time.Time
}

// NewRedis creates a Redis-backed store.
func NewRedis(client redis.Scripter) *Redis {
	return &Redis{client: client, now: time.Now}
}

// Allow records one request for key if it fits in the window.
func (s *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (*ratelimit.Result, error) {
	now := s.now()
	nowMs := now.UnixMilli()
	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())

	vals, err := slidingWindowScript.Run(ctx, s.client, []string{key},
		nowMs, window.Milliseconds(), limit, member,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 3 {
		return nil, fmt.Errorf("rate limit script: unexpected reply %v", vals)
	}

	resetAt := time.UnixMilli(vals[2]).Add(window)
	if vals[0] == 0 {
		return ratelimit.Denied(limit, now, resetAt), nil
	}
	return &ratelimit.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - int(vals[1]),
		ResetAt:   resetAt,
	}, nil
}

// Fallback uses primary and switches to secondary while primary errors.
type Fallback struct {
	primary   ratelimit.BucketStore
	secondary ratelimit.BucketStore
	onError   func(ctx context.Context, err error)
}

// NewFallback creates a store that degrades from primary to secondary.
// onError may be nil.
func NewFallback(primary, secondary ratelimit.BucketStore, onError func(ctx context.Context, err error)) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, onError: onError}
}

// Allow implements ratelimit.BucketStore.
func (f *Fallback) Allow(ctx context.Context, key string, limit int, window time.Duration) (*ratelimit.Result, error) {
	res, err := f.primary.Allow(ctx, key, limit, window)
	if err == nil {
		return res, nil
	}
	if f.onError != nil {
		f.onError(ctx, err)
	}
	return f.secondary.Allow(ctx, key, limit, window)
}
