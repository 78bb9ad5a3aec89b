package repository

import (
	"context"
	"time"

	"github.com/modular-api/core/internal/models"
)

// PolicyRepository stores Policy documents.
type PolicyRepository interface {
	Create(ctx context.Context, p *models.Policy) error
	Get(ctx context.Context, policyName string) (*models.Policy, error)
	List(ctx context.Context) ([]*models.Policy, error)
	Update(ctx context.Context, p *models.Policy) error
	Delete(ctx context.Context, policyName string) error
}

// GroupRepository stores Group documents.
type GroupRepository interface {
	Create(ctx context.Context, g *models.Group) error
	Get(ctx context.Context, groupName string) (*models.Group, error)
	List(ctx context.Context) ([]*models.Group, error)
	Update(ctx context.Context, g *models.Group) error
	Delete(ctx context.Context, groupName string) error
	// ListByPolicy returns every group whose policy set contains policyName.
	ListByPolicy(ctx context.Context, policyName string) ([]*models.Group, error)
}

// UserRepository stores User documents.
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, username string) error
	// ListByGroup returns every user whose group set contains groupName.
	ListByGroup(ctx context.Context, groupName string) ([]*models.User, error)
}

// AuditRepository is the append-only store for AuditRecord documents.
type AuditRepository interface {
	Create(ctx context.Context, rec *models.AuditRecord) error
	Get(ctx context.Context, id string) (*models.AuditRecord, error)
	// Query returns audit records filtered by the non-zero fields of filter,
	// most recent first, capped at limit (0 = backend default cap).
	Query(ctx context.Context, filter AuditFilter, limit int) ([]*models.AuditRecord, error)
}

// AuditFilter narrows an audit query; zero-valued fields are not applied.
type AuditFilter struct {
	Username string
	Group    string
	Command  string
	Since    time.Time
	Until    time.Time
	ResultIs string // "ok" | "error" | "" for both
}

// TokenRepository is the server-side allowlist backing issued JWTs.
type TokenRepository interface {
	Allow(ctx context.Context, t *models.Token) error
	Get(ctx context.Context, id string) (*models.Token, error)
	Revoke(ctx context.Context, id string) error
	// RevokeAllForUser invalidates every outstanding token for username, used
	// by change_password / block.
	RevokeAllForUser(ctx context.Context, username string) error
	// DeleteExpired removes allowlist rows past their ExpiresAt and returns
	// how many were removed, for the periodic cleanup job.
	DeleteExpired(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// UsageCounterRepository backs the fixed-window rate limiter.
type UsageCounterRepository interface {
	// Increment atomically bumps the counter for (username, route,
	// windowStart) and returns the post-increment count, creating the row
	// if absent. windowStart is the window's start time, floored to the
	// configured window size.
	Increment(ctx context.Context, username, route string, windowStart int64) (int64, error)
	// DeleteOlderThan removes windows that have fully elapsed, bounding
	// table growth.
	DeleteOlderThan(ctx context.Context, windowStart int64) (int64, error)
}

// ModuleRepository persists the installed-module catalog across restarts.
type ModuleRepository interface {
	Install(ctx context.Context, m *models.Module) error
	Get(ctx context.Context, moduleName string) (*models.Module, error)
	List(ctx context.Context) ([]*models.Module, error)
	Uninstall(ctx context.Context, moduleName string) error
}

// Repository aggregates every collection behind the backend currently
// configured (Postgres for hosted, SQLite for self-hosted).
type Repository struct {
	Policies      PolicyRepository
	Groups        GroupRepository
	Users         UserRepository
	Audit         AuditRepository
	Tokens        TokenRepository
	UsageCounters UsageCounterRepository
	Modules       ModuleRepository
}

// Backend is implemented by both PostgresRepository and SQLiteRepository.
type Backend interface {
	Close() error
	Ping(ctx context.Context) error
	Repository() *Repository
}
