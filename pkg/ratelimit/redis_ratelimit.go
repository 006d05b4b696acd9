package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 키 하나에 토큰 수와 마지막 리필 시각(ms)을 해시로 둔다
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	local state = redis.call('HMGET', key, 'tokens', 'ts')
	local tokens = tonumber(state[1])
	local last = tonumber(state[2])

	if tokens == nil then
		tokens = limit
		last = now
	end

	local elapsed = math.max(0, now - last)
	tokens = math.min(limit, tokens + elapsed * limit / window_ms)

	local allowed = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	end

	redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', now)
	redis.call('PEXPIRE', key, window_ms * 2)

	local reset_ms = math.ceil((limit - tokens) * window_ms / limit)
	return {allowed, math.floor(tokens), now + reset_ms}
`)

// RedisRateLimiter 인스턴스 간 공유되는 Redis 토큰 버킷
type RedisRateLimiter struct {
	client    *redis.Client
	keyPrefix string
	limit     int
	window    time.Duration
}

// NewRedisRateLimiter window 당 limit 요청
func NewRedisRateLimiter(client *redis.Client, keyPrefix string, limit int, window time.Duration) *RedisRateLimiter {
	if keyPrefix == "" {
		keyPrefix = "ratelimit:"
	}
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisRateLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		limit:     limit,
		window:    window,
	}
}

// Allow 요청 허용 여부와 헤더 정보
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UnixMilli()

	values, err := tokenBucketScript.Run(ctx, r.client,
		[]string{r.keyPrefix + key},
		r.limit, r.window.Milliseconds(), now,
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("redis script execution failed: %w", err)
	}
	if len(values) < 3 {
		return Result{}, fmt.Errorf("invalid script result")
	}

	return Result{
		Allowed:   values[0] == 1,
		Limit:     r.limit,
		Remaining: int(values[1]),
		ResetAt:   time.UnixMilli(values[2]),
	}, nil
}

// Reset 특정 키의 Rate Limit 초기화
func (r *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", err)
	}
	return nil
}
