package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/modular-api/core/internal/models"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS policies (
	policy_name TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	statements_json TEXT NOT NULL,
	creation_date DATETIME NOT NULL,
	last_modification_date DATETIME NOT NULL,
	hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS groups (
	group_name TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	policies_json TEXT NOT NULL,
	creation_date DATETIME NOT NULL,
	last_modification_date DATETIME NOT NULL,
	hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS users (
	username TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	state TEXT NOT NULL,
	state_reason TEXT NOT NULL DEFAULT '',
	groups_json TEXT NOT NULL,
	meta_json TEXT NOT NULL,
	creation_date DATETIME NOT NULL,
	last_modification_date DATETIME NOT NULL,
	hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS audit_records (
	id TEXT PRIMARY KEY,
	ts DATETIME NOT NULL,
	username TEXT NOT NULL,
	group_name TEXT NOT NULL,
	command TEXT NOT NULL,
	parameters_json TEXT NOT NULL,
	result TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	warnings_json TEXT NOT NULL,
	hash TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_username ON audit_records (username);
CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_records (ts);
CREATE TABLE IF NOT EXISTS tokens (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	subject TEXT NOT NULL,
	issued_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tokens_username ON tokens (username);
CREATE TABLE IF NOT EXISTS usage_counters (
	username TEXT NOT NULL,
	route TEXT NOT NULL,
	window_start INTEGER NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (username, route, window_start)
);
CREATE TABLE IF NOT EXISTS modules (
	module_name TEXT PRIMARY KEY,
	cli_path TEXT NOT NULL,
	mount_point TEXT NOT NULL,
	version TEXT NOT NULL,
	dependencies_json TEXT NOT NULL
);
`

// SQLiteRepository backs the "self-hosted" deployment mode using the
// pure-Go modernc.org/sqlite driver, avoiding a cgo dependency.
type SQLiteRepository struct {
	db   *sqlx.DB
	repo *Repository
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	// The pool is held to one connection, so every query, read or write,
	// runs on it in turn; WAL journal mode is set through the DSN.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	r := &SQLiteRepository{db: db}
	r.repo = &Repository{
		Policies:      sqlitePolicies{db},
		Groups:        sqliteGroups{db},
		Users:         sqliteUsers{db},
		Audit:         sqliteAudit{db},
		Tokens:        sqliteTokens{db},
		UsageCounters: sqliteUsageCounters{db},
		Modules:       sqliteModules{db},
	}
	return r, nil
}

func (r *SQLiteRepository) Close() error                 { return r.db.Close() }
func (r *SQLiteRepository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }
func (r *SQLiteRepository) Repository() *Repository       { return r.repo }

// --- policies ---

type sqlitePolicies struct{ db *sqlx.DB }

func (p sqlitePolicies) Create(ctx context.Context, pol *models.Policy) error {
	row, err := fromPolicy(pol)
	if err != nil {
		return err
	}
	return instrumentQuery("insert_policy", func() error {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO policies (policy_name, state, statements_json, creation_date, last_modification_date, hash)
			VALUES (?, ?, ?, ?, ?, ?)`,
			row.PolicyName, row.State, row.Statements, row.CreationDate, row.LastModDate, row.Hash)
		return err
	})
}

func (p sqlitePolicies) Get(ctx context.Context, policyName string) (*models.Policy, error) {
	var row policyRow
	err := instrumentQuery("select_policy", func() error {
		return p.db.GetContext(ctx, &row, `SELECT * FROM policies WHERE policy_name = ?`, policyName)
	})
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (p sqlitePolicies) List(ctx context.Context) ([]*models.Policy, error) {
	var rows []policyRow
	err := instrumentQuery("list_policies", func() error {
		return p.db.SelectContext(ctx, &rows, `SELECT * FROM policies ORDER BY policy_name`)
	})
	if err != nil {
		return nil, err
	}
	out := make([]*models.Policy, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (p sqlitePolicies) Update(ctx context.Context, pol *models.Policy) error {
	row, err := fromPolicy(pol)
	if err != nil {
		return err
	}
	var affected int64
	err = instrumentQuery("update_policy", func() error {
		res, err := p.db.ExecContext(ctx, `
			UPDATE policies SET state=?, statements_json=?, last_modification_date=?, hash=?
			WHERE policy_name=?`,
			row.State, row.Statements, row.LastModDate, row.Hash, row.PolicyName)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (p sqlitePolicies) Delete(ctx context.Context, policyName string) error {
	var affected int64
	err := instrumentQuery("delete_policy", func() error {
		res, err := p.db.ExecContext(ctx, `DELETE FROM policies WHERE policy_name=?`, policyName)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// --- groups ---

type sqliteGroups struct{ db *sqlx.DB }

func (p sqliteGroups) Create(ctx context.Context, g *models.Group) error {
	row, err := fromGroup(g)
	if err != nil {
		return err
	}
	return instrumentQuery("insert_group", func() error {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO groups (group_name, state, policies_json, creation_date, last_modification_date, hash)
			VALUES (?, ?, ?, ?, ?, ?)`,
			row.GroupName, row.State, row.Policies, row.CreationDate, row.LastModDate, row.Hash)
		return err
	})
}

func (p sqliteGroups) Get(ctx context.Context, groupName string) (*models.Group, error) {
	var row groupRow
	err := instrumentQuery("select_group", func() error {
		return p.db.GetContext(ctx, &row, `SELECT * FROM groups WHERE group_name = ?`, groupName)
	})
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (p sqliteGroups) List(ctx context.Context) ([]*models.Group, error) {
	var rows []groupRow
	err := instrumentQuery("list_groups", func() error {
		return p.db.SelectContext(ctx, &rows, `SELECT * FROM groups ORDER BY group_name`)
	})
	if err != nil {
		return nil, err
	}
	out := make([]*models.Group, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (p sqliteGroups) Update(ctx context.Context, g *models.Group) error {
	row, err := fromGroup(g)
	if err != nil {
		return err
	}
	var affected int64
	err = instrumentQuery("update_group", func() error {
		res, err := p.db.ExecContext(ctx, `
			UPDATE groups SET state=?, policies_json=?, last_modification_date=?, hash=?
			WHERE group_name=?`,
			row.State, row.Policies, row.LastModDate, row.Hash, row.GroupName)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (p sqliteGroups) Delete(ctx context.Context, groupName string) error {
	var affected int64
	err := instrumentQuery("delete_group", func() error {
		res, err := p.db.ExecContext(ctx, `DELETE FROM groups WHERE group_name=?`, groupName)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (p sqliteGroups) ListByPolicy(ctx context.Context, policyName string) ([]*models.Group, error) {
	all, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Group, 0)
	for _, g := range all {
		if g.HasPolicy(policyName) {
			out = append(out, g)
		}
	}
	return out, nil
}

// --- users ---

type sqliteUsers struct{ db *sqlx.DB }

func (p sqliteUsers) Create(ctx context.Context, u *models.User) error {
	row, err := fromUser(u)
	if err != nil {
		return err
	}
	return instrumentQuery("insert_user", func() error {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO users (username, password_hash, state, state_reason, groups_json, meta_json, creation_date, last_modification_date, hash)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.Username, row.PasswordHash, row.State, row.StateReason, row.Groups, row.Meta, row.CreationDate, row.LastModDate, row.Hash)
		return err
	})
}

func (p sqliteUsers) Get(ctx context.Context, username string) (*models.User, error) {
	var row userRow
	err := instrumentQuery("select_user", func() error {
		return p.db.GetContext(ctx, &row, `SELECT * FROM users WHERE username = ?`, username)
	})
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (p sqliteUsers) List(ctx context.Context) ([]*models.User, error) {
	var rows []userRow
	err := instrumentQuery("list_users", func() error {
		return p.db.SelectContext(ctx, &rows, `SELECT * FROM users ORDER BY username`)
	})
	if err != nil {
		return nil, err
	}
	out := make([]*models.User, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (p sqliteUsers) Update(ctx context.Context, u *models.User) error {
	row, err := fromUser(u)
	if err != nil {
		return err
	}
	var affected int64
	err = instrumentQuery("update_user", func() error {
		res, err := p.db.ExecContext(ctx, `
			UPDATE users SET password_hash=?, state=?, state_reason=?, groups_json=?, meta_json=?, last_modification_date=?, hash=?
			WHERE username=?`,
			row.PasswordHash, row.State, row.StateReason, row.Groups, row.Meta, row.LastModDate, row.Hash, row.Username)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (p sqliteUsers) Delete(ctx context.Context, username string) error {
	var affected int64
	err := instrumentQuery("delete_user", func() error {
		res, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE username=?`, username)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (p sqliteUsers) ListByGroup(ctx context.Context, groupName string) ([]*models.User, error) {
	all, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.User, 0)
	for _, u := range all {
		if u.InGroup(groupName) {
			out = append(out, u)
		}
	}
	return out, nil
}

// --- audit ---

type sqliteAudit struct{ db *sqlx.DB }

func (p sqliteAudit) Create(ctx context.Context, rec *models.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	params, err := json.Marshal(rec.Parameters)
	if err != nil {
		return err
	}
	warnings, err := json.Marshal(rec.Warnings)
	if err != nil {
		return err
	}
	return instrumentQuery("insert_audit", func() error {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO audit_records (id, ts, username, group_name, command, parameters_json, result, summary, warnings_json, hash)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Timestamp, rec.Username, rec.Group, rec.Command, string(params), rec.Result, rec.Summary, string(warnings), rec.Hash)
		return err
	})
}

func (p sqliteAudit) Get(ctx context.Context, id string) (*models.AuditRecord, error) {
	var row auditRow
	err := instrumentQuery("select_audit", func() error {
		return p.db.GetContext(ctx, &row, `SELECT * FROM audit_records WHERE id = ?`, id)
	})
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (p sqliteAudit) Query(ctx context.Context, filter AuditFilter, limit int) ([]*models.AuditRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT * FROM audit_records WHERE 1=1`
	args := []interface{}{}
	if filter.Username != "" {
		query += " AND username = ?"
		args = append(args, filter.Username)
	}
	if filter.Group != "" {
		query += " AND group_name = ?"
		args = append(args, filter.Group)
	}
	if filter.Command != "" {
		query += " AND command = ?"
		args = append(args, filter.Command)
	}
	if !filter.Since.IsZero() {
		query += " AND ts >= ?"
		args = append(args, filter.Since)
	}
	if !filter.Until.IsZero() {
		query += " AND ts <= ?"
		args = append(args, filter.Until)
	}
	if filter.ResultIs != "" {
		query += " AND result = ?"
		args = append(args, filter.ResultIs)
	}
	query += " ORDER BY ts DESC LIMIT ?"
	args = append(args, limit)

	var rows []auditRow
	err := instrumentQuery("query_audit", func() error {
		return p.db.SelectContext(ctx, &rows, query, args...)
	})
	if err != nil {
		return nil, err
	}
	out := make([]*models.AuditRecord, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// --- tokens ---

type sqliteTokens struct{ db *sqlx.DB }

func (p sqliteTokens) Allow(ctx context.Context, t *models.Token) error {
	return instrumentQuery("insert_token", func() error {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO tokens (id, username, subject, issued_at, expires_at)
			VALUES (?, ?, ?, ?, ?)`,
			t.ID, t.Username, t.Subject, t.IssuedAt, t.ExpiresAt)
		return err
	})
}

func (p sqliteTokens) Get(ctx context.Context, id string) (*models.Token, error) {
	var t models.Token
	err := instrumentQuery("select_token", func() error {
		return p.db.GetContext(ctx, &t, `SELECT id, username, subject, issued_at, expires_at FROM tokens WHERE id = ?`, id)
	})
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	return &t, err
}

func (p sqliteTokens) Revoke(ctx context.Context, id string) error {
	return instrumentQuery("delete_token", func() error {
		_, err := p.db.ExecContext(ctx, `DELETE FROM tokens WHERE id = ?`, id)
		return err
	})
}

func (p sqliteTokens) RevokeAllForUser(ctx context.Context, username string) error {
	return instrumentQuery("delete_tokens_for_user", func() error {
		_, err := p.db.ExecContext(ctx, `DELETE FROM tokens WHERE username = ?`, username)
		return err
	})
}

func (p sqliteTokens) DeleteExpired(ctx context.Context) (int64, error) {
	var affected int64
	err := instrumentQuery("delete_expired_tokens", func() error {
		res, err := p.db.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at < ?`, time.Now())
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

func (p sqliteTokens) Count(ctx context.Context) (int64, error) {
	var n int64
	err := instrumentQuery("count_tokens", func() error {
		return p.db.GetContext(ctx, &n, `SELECT count(*) FROM tokens`)
	})
	return n, err
}

// --- usage counters ---

type sqliteUsageCounters struct{ db *sqlx.DB }

func (p sqliteUsageCounters) Increment(ctx context.Context, username, route string, windowStart int64) (int64, error) {
	var count int64
	err := instrumentQuery("increment_usage_counter", func() error {
		return p.db.GetContext(ctx, &count, `
			INSERT INTO usage_counters (username, route, window_start, count)
			VALUES (?, ?, ?, 1)
			ON CONFLICT (username, route, window_start)
			DO UPDATE SET count = usage_counters.count + 1
			RETURNING count`,
			username, route, windowStart)
	})
	return count, err
}

func (p sqliteUsageCounters) DeleteOlderThan(ctx context.Context, windowStart int64) (int64, error) {
	var affected int64
	err := instrumentQuery("delete_old_usage_counters", func() error {
		res, err := p.db.ExecContext(ctx, `DELETE FROM usage_counters WHERE window_start < ?`, windowStart)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// --- modules ---

type sqliteModules struct{ db *sqlx.DB }

func (p sqliteModules) Install(ctx context.Context, m *models.Module) error {
	deps, err := json.Marshal(m.Dependencies)
	if err != nil {
		return err
	}
	return instrumentQuery("insert_module", func() error {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO modules (module_name, cli_path, mount_point, version, dependencies_json)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (module_name) DO UPDATE SET cli_path=excluded.cli_path, mount_point=excluded.mount_point, version=excluded.version, dependencies_json=excluded.dependencies_json`,
			m.ModuleName, m.CLIPath, m.MountPoint, m.Version, string(deps))
		return err
	})
}

func (p sqliteModules) Get(ctx context.Context, moduleName string) (*models.Module, error) {
	var row moduleRow
	err := instrumentQuery("select_module", func() error {
		return p.db.GetContext(ctx, &row, `SELECT * FROM modules WHERE module_name = ?`, moduleName)
	})
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (p sqliteModules) List(ctx context.Context) ([]*models.Module, error) {
	var rows []moduleRow
	err := instrumentQuery("list_modules", func() error {
		return p.db.SelectContext(ctx, &rows, `SELECT * FROM modules ORDER BY module_name`)
	})
	if err != nil {
		return nil, err
	}
	out := make([]*models.Module, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (p sqliteModules) Uninstall(ctx context.Context, moduleName string) error {
	var affected int64
	err := instrumentQuery("delete_module", func() error {
		res, err := p.db.ExecContext(ctx, `DELETE FROM modules WHERE module_name=?`, moduleName)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}
