// Package ratelimit throttles callers with a sliding window per key.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// Limit is a request budget per window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// BucketStore records requests against a key and reports whether another
// fits in the window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// SanitizeKeySegment escapes the key delimiter so a caller-controlled
// segment cannot address another bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// UserKey is the bucket key for one user on one endpoint class.
func UserKey(class, userID string) string {
	return "rl:" + SanitizeKeySegment(class) + ":user:" + SanitizeKeySegment(userID)
}

// Denied builds a rejection result.
func Denied(limit int, now, resetAt time.Time) *Result {
	return &Result{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retryAfter(now, resetAt),
	}
}

// retryAfter rounds the wait until resetAt up to whole seconds.
func retryAfter(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 1
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
