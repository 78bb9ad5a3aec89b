package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/modular-api/core/internal/repository"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) repository.UsageCounterRepository {
	t.Helper()
	sqliteRepo, err := repository.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqliteRepo.Close() })
	return sqliteRepo.Repository().UsageCounters
}

func TestLimiter_AllowsWithinCeiling(t *testing.T) {
	repo := newTestRepo(t)
	limiter := New(repo, time.Minute, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Allow(ctx, "alice", "files.upload", 0))
	}
}

func TestLimiter_RejectsOverCeiling(t *testing.T) {
	repo := newTestRepo(t)
	limiter := New(repo, time.Minute, 2)
	ctx := context.Background()

	require.NoError(t, limiter.Allow(ctx, "alice", "files.upload", 0))
	require.NoError(t, limiter.Allow(ctx, "alice", "files.upload", 0))
	err := limiter.Allow(ctx, "alice", "files.upload", 0)
	require.Error(t, err)
	var rateErr ErrRateLimited
	require.ErrorAs(t, err, &rateErr)
	require.GreaterOrEqual(t, rateErr.RetryAfter, time.Duration(0))
}

func TestLimiter_OverrideCeiling(t *testing.T) {
	repo := newTestRepo(t)
	limiter := New(repo, time.Minute, 1)
	ctx := context.Background()

	require.NoError(t, limiter.Allow(ctx, "alice", "files.upload", 5))
	require.NoError(t, limiter.Allow(ctx, "alice", "files.upload", 5))
}

func TestLimiter_IndependentPerUserAndRoute(t *testing.T) {
	repo := newTestRepo(t)
	limiter := New(repo, time.Minute, 1)
	ctx := context.Background()

	require.NoError(t, limiter.Allow(ctx, "alice", "files.upload", 0))
	require.NoError(t, limiter.Allow(ctx, "bob", "files.upload", 0))
	require.NoError(t, limiter.Allow(ctx, "alice", "files.delete", 0))
}
