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
	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS policies (
	policy_name TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	statements_json TEXT NOT NULL,
	creation_date TIMESTAMPTZ NOT NULL,
	last_modification_date TIMESTAMPTZ NOT NULL,
	hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS groups (
	group_name TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	policies_json TEXT NOT NULL,
	creation_date TIMESTAMPTZ NOT NULL,
	last_modification_date TIMESTAMPTZ NOT NULL,
	hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS users (
	username TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	state TEXT NOT NULL,
	state_reason TEXT NOT NULL DEFAULT '',
	groups_json TEXT NOT NULL,
	meta_json TEXT NOT NULL,
	creation_date TIMESTAMPTZ NOT NULL,
	last_modification_date TIMESTAMPTZ NOT NULL,
	hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS audit_records (
	id TEXT PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL,
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
	issued_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tokens_username ON tokens (username);
CREATE TABLE IF NOT EXISTS usage_counters (
	username TEXT NOT NULL,
	route TEXT NOT NULL,
	window_start BIGINT NOT NULL,
	count BIGINT NOT NULL DEFAULT 0,
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

// PostgresRepository backs the "hosted" deployment mode.
type PostgresRepository struct {
	db   *sqlx.DB
	repo *Repository
}

func NewPostgresRepository(connectionString string) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to apply postgres schema: %w", err)
	}

	r := &PostgresRepository{db: db}
	r.repo = &Repository{
		Policies:      postgresPolicies{db},
		Groups:        postgresGroups{db},
		Users:         postgresUsers{db},
		Audit:         postgresAudit{db},
		Tokens:        postgresTokens{db},
		UsageCounters: postgresUsageCounters{db},
		Modules:       postgresModules{db},
	}
	return r, nil
}

func (r *PostgresRepository) Close() error                 { return r.db.Close() }
func (r *PostgresRepository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }
func (r *PostgresRepository) Repository() *Repository       { return r.repo }

// --- policies ---

type postgresPolicies struct{ db *sqlx.DB }

type policyRow struct {
	PolicyName   string    `db:"policy_name"`
	State        string    `db:"state"`
	Statements   string    `db:"statements_json"`
	CreationDate time.Time `db:"creation_date"`
	LastModDate  time.Time `db:"last_modification_date"`
	Hash         string    `db:"hash"`
}

func (row *policyRow) toModel() (*models.Policy, error) {
	var statements []models.Statement
	if err := json.Unmarshal([]byte(row.Statements), &statements); err != nil {
		return nil, fmt.Errorf("decode statements: %w", err)
	}
	return &models.Policy{
		PolicyName:           row.PolicyName,
		Statements:           statements,
		State:                row.State,
		CreationDate:         row.CreationDate,
		LastModificationDate: row.LastModDate,
		Hash:                 row.Hash,
	}, nil
}

func fromPolicy(p *models.Policy) (*policyRow, error) {
	b, err := json.Marshal(p.Statements)
	if err != nil {
		return nil, err
	}
	return &policyRow{
		PolicyName:   p.PolicyName,
		State:        p.State,
		Statements:   string(b),
		CreationDate: p.CreationDate,
		LastModDate:  p.LastModificationDate,
		Hash:         p.Hash,
	}, nil
}

func (p postgresPolicies) Create(ctx context.Context, pol *models.Policy) error {
	row, err := fromPolicy(pol)
	if err != nil {
		return err
	}
	return instrumentQuery("insert_policy", func() error {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO policies (policy_name, state, statements_json, creation_date, last_modification_date, hash)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			row.PolicyName, row.State, row.Statements, row.CreationDate, row.LastModDate, row.Hash)
		return err
	})
}

func (p postgresPolicies) Get(ctx context.Context, policyName string) (*models.Policy, error) {
	var row policyRow
	err := instrumentQuery("select_policy", func() error {
		return p.db.GetContext(ctx, &row, `SELECT * FROM policies WHERE policy_name = $1`, policyName)
	})
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (p postgresPolicies) List(ctx context.Context) ([]*models.Policy, error) {
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

func (p postgresPolicies) Update(ctx context.Context, pol *models.Policy) error {
	row, err := fromPolicy(pol)
	if err != nil {
		return err
	}
	var affected int64
	err = instrumentQuery("update_policy", func() error {
		res, err := p.db.ExecContext(ctx, `
			UPDATE policies SET state=$2, statements_json=$3, last_modification_date=$4, hash=$5
			WHERE policy_name=$1`,
			row.PolicyName, row.State, row.Statements, row.LastModDate, row.Hash)
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

func (p postgresPolicies) Delete(ctx context.Context, policyName string) error {
	var affected int64
	err := instrumentQuery("delete_policy", func() error {
		res, err := p.db.ExecContext(ctx, `DELETE FROM policies WHERE policy_name=$1`, policyName)
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

type postgresGroups struct{ db *sqlx.DB }

type groupRow struct {
	GroupName    string    `db:"group_name"`
	State        string    `db:"state"`
	Policies     string    `db:"policies_json"`
	CreationDate time.Time `db:"creation_date"`
	LastModDate  time.Time `db:"last_modification_date"`
	Hash         string    `db:"hash"`
}

func (row *groupRow) toModel() (*models.Group, error) {
	var policies []string
	if err := json.Unmarshal([]byte(row.Policies), &policies); err != nil {
		return nil, fmt.Errorf("decode policies: %w", err)
	}
	return &models.Group{
		GroupName:            row.GroupName,
		Policies:             policies,
		State:                row.State,
		CreationDate:         row.CreationDate,
		LastModificationDate: row.LastModDate,
		Hash:                 row.Hash,
	}, nil
}

func fromGroup(g *models.Group) (*groupRow, error) {
	b, err := json.Marshal(g.Policies)
	if err != nil {
		return nil, err
	}
	return &groupRow{
		GroupName:    g.GroupName,
		State:        g.State,
		Policies:     string(b),
		CreationDate: g.CreationDate,
		LastModDate:  g.LastModificationDate,
		Hash:         g.Hash,
	}, nil
}

func (p postgresGroups) Create(ctx context.Context, g *models.Group) error {
	row, err := fromGroup(g)
	if err != nil {
		return err
	}
	return instrumentQuery("insert_group", func() error {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO groups (group_name, state, policies_json, creation_date, last_modification_date, hash)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			row.GroupName, row.State, row.Policies, row.CreationDate, row.LastModDate, row.Hash)
		return err
	})
}

func (p postgresGroups) Get(ctx context.Context, groupName string) (*models.Group, error) {
	var row groupRow
	err := instrumentQuery("select_group", func() error {
		return p.db.GetContext(ctx, &row, `SELECT * FROM groups WHERE group_name = $1`, groupName)
	})
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (p postgresGroups) List(ctx context.Context) ([]*models.Group, error) {
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

func (p postgresGroups) Update(ctx context.Context, g *models.Group) error {
	row, err := fromGroup(g)
	if err != nil {
		return err
	}
	var affected int64
	err = instrumentQuery("update_group", func() error {
		res, err := p.db.ExecContext(ctx, `
			UPDATE groups SET state=$2, policies_json=$3, last_modification_date=$4, hash=$5
			WHERE group_name=$1`,
			row.GroupName, row.State, row.Policies, row.LastModDate, row.Hash)
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

func (p postgresGroups) Delete(ctx context.Context, groupName string) error {
	var affected int64
	err := instrumentQuery("delete_group", func() error {
		res, err := p.db.ExecContext(ctx, `DELETE FROM groups WHERE group_name=$1`, groupName)
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

func (p postgresGroups) ListByPolicy(ctx context.Context, policyName string) ([]*models.Group, error) {
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

type postgresUsers struct{ db *sqlx.DB }

type userRow struct {
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	State        string    `db:"state"`
	StateReason  string    `db:"state_reason"`
	Groups       string    `db:"groups_json"`
	Meta         string    `db:"meta_json"`
	CreationDate time.Time `db:"creation_date"`
	LastModDate  time.Time `db:"last_modification_date"`
	Hash         string    `db:"hash"`
}

func (row *userRow) toModel() (*models.User, error) {
	var groups []string
	if err := json.Unmarshal([]byte(row.Groups), &groups); err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}
	var meta models.Meta
	if err := json.Unmarshal([]byte(row.Meta), &meta); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	return &models.User{
		Username:             row.Username,
		PasswordHash:         row.PasswordHash,
		Groups:               groups,
		State:                row.State,
		StateReason:          row.StateReason,
		Meta:                 meta,
		CreationDate:         row.CreationDate,
		LastModificationDate: row.LastModDate,
		Hash:                 row.Hash,
	}, nil
}

func fromUser(u *models.User) (*userRow, error) {
	groups, err := json.Marshal(u.Groups)
	if err != nil {
		return nil, err
	}
	meta, err := json.Marshal(u.Meta)
	if err != nil {
		return nil, err
	}
	return &userRow{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		State:        u.State,
		StateReason:  u.StateReason,
		Groups:       string(groups),
		Meta:         string(meta),
		CreationDate: u.CreationDate,
		LastModDate:  u.LastModificationDate,
		Hash:         u.Hash,
	}, nil
}

func (p postgresUsers) Create(ctx context.Context, u *models.User) error {
	row, err := fromUser(u)
	if err != nil {
		return err
	}
	return instrumentQuery("insert_user", func() error {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO users (username, password_hash, state, state_reason, groups_json, meta_json, creation_date, last_modification_date, hash)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			row.Username, row.PasswordHash, row.State, row.StateReason, row.Groups, row.Meta, row.CreationDate, row.LastModDate, row.Hash)
		return err
	})
}

func (p postgresUsers) Get(ctx context.Context, username string) (*models.User, error) {
	var row userRow
	err := instrumentQuery("select_user", func() error {
		return p.db.GetContext(ctx, &row, `SELECT * FROM users WHERE username = $1`, username)
	})
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (p postgresUsers) List(ctx context.Context) ([]*models.User, error) {
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

func (p postgresUsers) Update(ctx context.Context, u *models.User) error {
	row, err := fromUser(u)
	if err != nil {
		return err
	}
	var affected int64
	err = instrumentQuery("update_user", func() error {
		res, err := p.db.ExecContext(ctx, `
			UPDATE users SET password_hash=$2, state=$3, state_reason=$4, groups_json=$5, meta_json=$6, last_modification_date=$7, hash=$8
			WHERE username=$1`,
			row.Username, row.PasswordHash, row.State, row.StateReason, row.Groups, row.Meta, row.LastModDate, row.Hash)
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

func (p postgresUsers) Delete(ctx context.Context, username string) error {
	var affected int64
	err := instrumentQuery("delete_user", func() error {
		res, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE username=$1`, username)
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

func (p postgresUsers) ListByGroup(ctx context.Context, groupName string) ([]*models.User, error) {
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

type postgresAudit struct{ db *sqlx.DB }

type auditRow struct {
	ID         string    `db:"id"`
	Timestamp  time.Time `db:"ts"`
	Username   string    `db:"username"`
	Group      string    `db:"group_name"`
	Command    string    `db:"command"`
	Parameters string    `db:"parameters_json"`
	Result     string    `db:"result"`
	Summary    string    `db:"summary"`
	Warnings   string    `db:"warnings_json"`
	Hash       string    `db:"hash"`
}

func (row *auditRow) toModel() (*models.AuditRecord, error) {
	var params map[string]interface{}
	if err := json.Unmarshal([]byte(row.Parameters), &params); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	var warnings []string
	if err := json.Unmarshal([]byte(row.Warnings), &warnings); err != nil {
		return nil, fmt.Errorf("decode warnings: %w", err)
	}
	return &models.AuditRecord{
		ID:         row.ID,
		Timestamp:  row.Timestamp,
		Username:   row.Username,
		Group:      row.Group,
		Command:    row.Command,
		Parameters: params,
		Result:     row.Result,
		Summary:    row.Summary,
		Warnings:   warnings,
		Hash:       row.Hash,
	}, nil
}

func (p postgresAudit) Create(ctx context.Context, rec *models.AuditRecord) error {
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
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			rec.ID, rec.Timestamp, rec.Username, rec.Group, rec.Command, string(params), rec.Result, rec.Summary, string(warnings), rec.Hash)
		return err
	})
}

func (p postgresAudit) Get(ctx context.Context, id string) (*models.AuditRecord, error) {
	var row auditRow
	err := instrumentQuery("select_audit", func() error {
		return p.db.GetContext(ctx, &row, `SELECT * FROM audit_records WHERE id = $1`, id)
	})
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (p postgresAudit) Query(ctx context.Context, filter AuditFilter, limit int) ([]*models.AuditRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT * FROM audit_records WHERE 1=1`
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Username != "" {
		query += " AND username = " + arg(filter.Username)
	}
	if filter.Group != "" {
		query += " AND group_name = " + arg(filter.Group)
	}
	if filter.Command != "" {
		query += " AND command = " + arg(filter.Command)
	}
	if !filter.Since.IsZero() {
		query += " AND ts >= " + arg(filter.Since)
	}
	if !filter.Until.IsZero() {
		query += " AND ts <= " + arg(filter.Until)
	}
	if filter.ResultIs != "" {
		query += " AND result = " + arg(filter.ResultIs)
	}
	query += " ORDER BY ts DESC LIMIT " + arg(limit)

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

type postgresTokens struct{ db *sqlx.DB }

func (p postgresTokens) Allow(ctx context.Context, t *models.Token) error {
	return instrumentQuery("insert_token", func() error {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO tokens (id, username, subject, issued_at, expires_at)
			VALUES ($1, $2, $3, $4, $5)`,
			t.ID, t.Username, t.Subject, t.IssuedAt, t.ExpiresAt)
		return err
	})
}

func (p postgresTokens) Get(ctx context.Context, id string) (*models.Token, error) {
	var t models.Token
	err := instrumentQuery("select_token", func() error {
		return p.db.GetContext(ctx, &t, `SELECT id, username, subject, issued_at, expires_at FROM tokens WHERE id = $1`, id)
	})
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	return &t, err
}

func (p postgresTokens) Revoke(ctx context.Context, id string) error {
	return instrumentQuery("delete_token", func() error {
		_, err := p.db.ExecContext(ctx, `DELETE FROM tokens WHERE id = $1`, id)
		return err
	})
}

func (p postgresTokens) RevokeAllForUser(ctx context.Context, username string) error {
	return instrumentQuery("delete_tokens_for_user", func() error {
		_, err := p.db.ExecContext(ctx, `DELETE FROM tokens WHERE username = $1`, username)
		return err
	})
}

func (p postgresTokens) DeleteExpired(ctx context.Context) (int64, error) {
	var affected int64
	err := instrumentQuery("delete_expired_tokens", func() error {
		res, err := p.db.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at < now()`)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

func (p postgresTokens) Count(ctx context.Context) (int64, error) {
	var n int64
	err := instrumentQuery("count_tokens", func() error {
		return p.db.GetContext(ctx, &n, `SELECT count(*) FROM tokens`)
	})
	return n, err
}

// --- usage counters ---

type postgresUsageCounters struct{ db *sqlx.DB }

func (p postgresUsageCounters) Increment(ctx context.Context, username, route string, windowStart int64) (int64, error) {
	var count int64
	err := instrumentQuery("increment_usage_counter", func() error {
		return p.db.GetContext(ctx, &count, `
			INSERT INTO usage_counters (username, route, window_start, count)
			VALUES ($1, $2, $3, 1)
			ON CONFLICT (username, route, window_start)
			DO UPDATE SET count = usage_counters.count + 1
			RETURNING count`,
			username, route, windowStart)
	})
	return count, err
}

func (p postgresUsageCounters) DeleteOlderThan(ctx context.Context, windowStart int64) (int64, error) {
	var affected int64
	err := instrumentQuery("delete_old_usage_counters", func() error {
		res, err := p.db.ExecContext(ctx, `DELETE FROM usage_counters WHERE window_start < $1`, windowStart)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// --- modules ---

type postgresModules struct{ db *sqlx.DB }

type moduleRow struct {
	ModuleName   string `db:"module_name"`
	CLIPath      string `db:"cli_path"`
	MountPoint   string `db:"mount_point"`
	Version      string `db:"version"`
	Dependencies string `db:"dependencies_json"`
}

func (row *moduleRow) toModel() (*models.Module, error) {
	var deps []models.Dependency
	if err := json.Unmarshal([]byte(row.Dependencies), &deps); err != nil {
		return nil, fmt.Errorf("decode dependencies: %w", err)
	}
	return &models.Module{
		ModuleName:   row.ModuleName,
		CLIPath:      row.CLIPath,
		MountPoint:   row.MountPoint,
		Version:      row.Version,
		Dependencies: deps,
	}, nil
}

func (p postgresModules) Install(ctx context.Context, m *models.Module) error {
	deps, err := json.Marshal(m.Dependencies)
	if err != nil {
		return err
	}
	return instrumentQuery("insert_module", func() error {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO modules (module_name, cli_path, mount_point, version, dependencies_json)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (module_name) DO UPDATE SET cli_path=$2, mount_point=$3, version=$4, dependencies_json=$5`,
			m.ModuleName, m.CLIPath, m.MountPoint, m.Version, string(deps))
		return err
	})
}

func (p postgresModules) Get(ctx context.Context, moduleName string) (*models.Module, error) {
	var row moduleRow
	err := instrumentQuery("select_module", func() error {
		return p.db.GetContext(ctx, &row, `SELECT * FROM modules WHERE module_name = $1`, moduleName)
	})
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (p postgresModules) List(ctx context.Context) ([]*models.Module, error) {
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

func (p postgresModules) Uninstall(ctx context.Context, moduleName string) error {
	var affected int64
	err := instrumentQuery("delete_module", func() error {
		res, err := p.db.ExecContext(ctx, `DELETE FROM modules WHERE module_name=$1`, moduleName)
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
