package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result 요청 판정 결과 (응답 헤더용)
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter 키별 요청 제한
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// TokenBucket implements the token bucket algorithm for rate limiting
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64       // Maximum number of tokens
	tokens     float64       // Current number of tokens
	perToken   time.Duration // Time to refill one token
	lastRefill time.Time     // Last refill timestamp
}

// NewTokenBucket limit개를 window 동안 고르게 채운다
func NewTokenBucket(limit int, window time.Duration, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(limit),
		tokens:     float64(limit),
		perToken:   window / time.Duration(limit),
		lastRefill: now,
	}
}

// take 토큰 하나 소비 시도
func (tb *TokenBucket) take(now time.Time) (bool, int, time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(now)

	allowed := tb.tokens >= 1
	if allowed {
		tb.tokens--
	}

	missing := tb.capacity - tb.tokens
	resetAt := now.Add(time.Duration(missing * float64(tb.perToken)))
	return allowed, int(tb.tokens), resetAt
}

// refill adds tokens based on elapsed time
func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}

	tb.tokens += float64(elapsed) / float64(tb.perToken)
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// full 다시 가득 찼으면 새 버킷과 구분되지 않는다
func (tb *TokenBucket) full(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(now)
	return tb.tokens >= tb.capacity
}

// RateLimiter 프로세스 내 키별 토큰 버킷 (단일 인스턴스용)
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*TokenBucket
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewRateLimiter window 당 limit 요청
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow checks if a request from the given key is allowed
func (rl *RateLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := rl.now()
	allowed, remaining, resetAt := rl.getBucket(key, now).take(now)
	return Result{
		Allowed:   allowed,
		Limit:     rl.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// getBucket gets or creates a token bucket for the given key
func (rl *RateLimiter) getBucket(key string, now time.Time) *TokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.buckets) > 1024 {
		rl.cleanupLocked(now)
	}

	bucket, exists := rl.buckets[key]
	if !exists {
		bucket = NewTokenBucket(rl.limit, rl.window, now)
		rl.buckets[key] = bucket
	}
	return bucket
}

// cleanupLocked 가득 찬 버킷 제거
func (rl *RateLimiter) cleanupLocked(now time.Time) {
	for key, bucket := range rl.buckets {
		if bucket.full(now) {
			delete(rl.buckets, key)
		}
	}
}

// Reset resets the rate limit for a given key
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
}
