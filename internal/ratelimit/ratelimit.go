// Package ratelimit enforces a per-(user, route) budget using a fixed-window
// counter stored in the shared document backend, so every dispatcher
// worker sees the same budget regardless of which process handles a given
// request.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/modular-api/core/internal/pkg/metrics"
	"github.com/modular-api/core/internal/repository"
)

// ErrRateLimited is returned when a (user, route) pair exceeds its ceiling
// within the current window. RetryAfter is a hint for how long the client
// should wait before the window resets.
type ErrRateLimited struct {
	Username   string
	Route      string
	RetryAfter time.Duration
}

func (e ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s on %s, retry after %s", e.Username, e.Route, e.RetryAfter)
}

// Limiter enforces a global requests-per-window ceiling per (username,
// route); a non-zero override passed to Allow replaces it for that call.
type Limiter struct {
	repo       repository.UsageCounterRepository
	windowSize time.Duration
	ceiling    int64
}

// New builds a Limiter with a fixed window of windowSize seconds and a
// default ceiling of ceiling calls per window.
func New(repo repository.UsageCounterRepository, windowSize time.Duration, ceiling int64) *Limiter {
	return &Limiter{repo: repo, windowSize: windowSize, ceiling: ceiling}
}

// Allow increments the counter for (username, route) in the current window
// and reports ErrRateLimited if the post-increment count exceeds the
// ceiling (or override, when non-zero, overrides the default ceiling for
// this call).
func (l *Limiter) Allow(ctx context.Context, username, route string, override int64) error {
	ceiling := l.ceiling
	if override > 0 {
		ceiling = override
	}
	windowStart := l.currentWindowStart()
	count, err := l.repo.Increment(ctx, username, route, windowStart)
	if err != nil {
		return err
	}
	if count > ceiling {
		retryAfter := time.Until(time.Unix(windowStart, 0).Add(l.windowSize))
		if retryAfter < 0 {
			retryAfter = 0
		}
		metrics.RateLimitRejectionsTotal.WithLabelValues(route).Inc()
		return ErrRateLimited{Username: username, Route: route, RetryAfter: retryAfter}
	}
	return nil
}

func (l *Limiter) currentWindowStart() int64 {
	seconds := int64(l.windowSize.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	now := time.Now().Unix()
	return now - (now % seconds)
}
