package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = 100 * time.Millisecond

// fixedWindowScript implements fixed-window admission atomically: the count
// is read and incremented in one round trip, and the window TTL is set only
// when the key is created. Returns [allowed (0/1), remaining, resetMillis].
var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local current = redis.call('GET', key)
if current == false then
    current = 0
else
    current = tonumber(current)
end

local reset_time = now + window

if current < limit then
    local new_count = redis.call('INCR', key)
    if new_count == 1 then
        redis.call('PEXPIRE', key, window)
    end
    return {1, limit - new_count, reset_time}
else
    return {0, 0, reset_time}
end
`)

// RedisStore is the distributed counter backend. Every call is bounded by a
// short timeout so a slow Redis cannot stall the request path.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr runs the fixed-window script for the key.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration, limit int) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	res, err := fixedWindowScript.Run(ctx, s.client,
		[]string{key},
		window.Milliseconds(),
		limit,
		time.Now().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return Result{}, err
	}

	return Result{
		Allowed:   res[0] == 1,
		Remaining: int(res[1]),
		ResetTime: time.UnixMilli(res[2]),
	}, nil
}
