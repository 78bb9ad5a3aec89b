package dispatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modular-api/core/internal/audit"
	"github.com/modular-api/core/internal/auth"
	"github.com/modular-api/core/internal/identity"
	"github.com/modular-api/core/internal/integrity"
	"github.com/modular-api/core/internal/models"
	"github.com/modular-api/core/internal/ratelimit"
	"github.com/modular-api/core/internal/registry"
	"github.com/modular-api/core/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvoker struct {
	response *BackendResponse
	err      error
	calls    int
}

func (f *fakeInvoker) Invoke(ctx context.Context, req BackendRequest) (*BackendResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

type testEnv struct {
	repo       *repository.Repository
	registry   *registry.Registry
	dispatcher *Dispatcher
	invoker    *fakeInvoker
}

func newTestEnv(t *testing.T, ceiling int64) *testEnv {
	t.Helper()
	sqliteRepo, err := repository.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqliteRepo.Close() })
	repo := sqliteRepo.Repository()

	integritySvc := integrity.New([]byte("test-integrity-key"))
	reg, err := registry.New(context.Background(), repo.Modules)
	require.NoError(t, err)

	invoker := &fakeInvoker{response: &BackendResponse{StatusCode: 200, Body: []byte(`{"ok":true}`)}}

	d := New(Config{
		MinVersion: "1.0.0",
		SecretKey:  "test-secret",
		TokenTTL:   time.Hour,
		Users:      identity.NewUserService(repo.Users, repo.Groups, repo.Tokens, integritySvc, auth.DefaultPasswordPolicy()),
		Groups:     identity.NewGroupService(repo.Groups, repo.Policies, integritySvc),
		Policies:   identity.NewPolicyService(repo.Policies, integritySvc),
		Tokens:     repo.Tokens,
		Registry:   reg,
		Limiter:    ratelimit.New(repo.UsageCounters, time.Minute, ceiling),
		Audit:      audit.New(repo.Audit, integritySvc),
		Invoker:    invoker,
	})

	return &testEnv{repo: repo, registry: reg, dispatcher: d, invoker: invoker}
}

const filesDescriptor = `
module_name: files
cli_path: /usr/local/bin/files
mount_point: /files
version: 1.0.0
commands:
  - name: list
    kind: command
    route:
      method: GET
      path: /files/list
  - name: describe
    kind: command
    describe: true
    route:
      method: GET
      path: /files/describe
`

func installFiles(t *testing.T, reg *registry.Registry) {
	t.Helper()
	path := writeDescriptorFile(t, filesDescriptor)
	require.NoError(t, reg.Install(context.Background(), path))
}

func writeDescriptorFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "module.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func setupUserWithPolicy(t *testing.T, env *testEnv, effect models.Effect, resources []string) (*models.User, string) {
	t.Helper()
	ctx := context.Background()
	p := &models.Policy{
		PolicyName: "files-policy",
		Statements: []models.Statement{{Effect: effect, Module: "files", Resources: resources}},
	}
	require.NoError(t, env.dispatcher.policies.Create(ctx, p))
	require.NoError(t, env.dispatcher.groups.Create(ctx, &models.Group{GroupName: "files-group"}))
	require.NoError(t, env.dispatcher.groups.AddPolicy(ctx, "files-group", "files-policy"))

	u := &models.User{Username: "alice"}
	_, err := env.dispatcher.users.Create(ctx, u, "Str0ng!Passw0rd")
	require.NoError(t, err)
	require.NoError(t, env.dispatcher.users.AddGroup(ctx, "alice", "files-group"))
	return u, "Str0ng!Passw0rd"
}

func TestDispatch_AllowedCommandReachesBackend(t *testing.T) {
	env := newTestEnv(t, 100)
	installFiles(t, env.registry)
	_, password := setupUserWithPolicy(t, env, models.EffectAllow, []string{"*"})

	res, err := env.dispatcher.Dispatch(context.Background(), Request{
		ClientVersion: "1.0.0",
		BasicUsername: "alice",
		BasicPassword: password,
		Method:        "GET",
		Path:          "/files/list",
	})
	require.NoError(t, err)
	assert.Equal(t, 200, res.Response.StatusCode)
	assert.Equal(t, 1, env.invoker.calls)
}

func TestDispatch_DenyPolicyWinsOverAllow(t *testing.T) {
	env := newTestEnv(t, 100)
	installFiles(t, env.registry)
	ctx := context.Background()
	allow := &models.Policy{PolicyName: "allow-all", Statements: []models.Statement{{Effect: models.EffectAllow, Module: "files", Resources: []string{"*"}}}}
	deny := &models.Policy{PolicyName: "deny-list", Statements: []models.Statement{{Effect: models.EffectDeny, Module: "files", Resources: []string{"list"}}}}
	require.NoError(t, env.dispatcher.policies.Create(ctx, allow))
	require.NoError(t, env.dispatcher.policies.Create(ctx, deny))
	require.NoError(t, env.dispatcher.groups.Create(ctx, &models.Group{GroupName: "g"}))
	require.NoError(t, env.dispatcher.groups.AddPolicy(ctx, "g", "allow-all"))
	require.NoError(t, env.dispatcher.groups.AddPolicy(ctx, "g", "deny-list"))
	u := &models.User{Username: "bob"}
	_, err := env.dispatcher.users.Create(ctx, u, "Str0ng!Passw0rd")
	require.NoError(t, err)
	require.NoError(t, env.dispatcher.users.AddGroup(ctx, "bob", "g"))

	_, err = env.dispatcher.Dispatch(ctx, Request{
		ClientVersion: "1.0.0",
		BasicUsername: "bob",
		BasicPassword: "Str0ng!Passw0rd",
		Method:        "GET",
		Path:          "/files/list",
	})
	var denied ErrDenied
	require.ErrorAs(t, err, &denied)
}

func TestDispatch_NoMatchingPolicyIsDeniedByDefault(t *testing.T) {
	env := newTestEnv(t, 100)
	installFiles(t, env.registry)
	ctx := context.Background()
	require.NoError(t, env.dispatcher.groups.Create(ctx, &models.Group{GroupName: "empty"}))
	u := &models.User{Username: "carol"}
	_, err := env.dispatcher.users.Create(ctx, u, "Str0ng!Passw0rd")
	require.NoError(t, err)
	require.NoError(t, env.dispatcher.users.AddGroup(ctx, "carol", "empty"))

	_, err = env.dispatcher.Dispatch(ctx, Request{
		ClientVersion: "1.0.0",
		BasicUsername: "carol",
		BasicPassword: "Str0ng!Passw0rd",
		Method:        "GET",
		Path:          "/files/list",
	})
	var denied ErrDenied
	require.ErrorAs(t, err, &denied)
}

func TestDispatch_UnknownRouteReturnsNoSuchRoute(t *testing.T) {
	env := newTestEnv(t, 100)
	installFiles(t, env.registry)
	_, password := setupUserWithPolicy(t, env, models.EffectAllow, []string{"*"})

	_, err := env.dispatcher.Dispatch(context.Background(), Request{
		ClientVersion: "1.0.0",
		BasicUsername: "alice",
		BasicPassword: password,
		Method:        "GET",
		Path:          "/files/nonexistent",
	})
	var notFound registry.ErrNoSuchRoute
	require.ErrorAs(t, err, &notFound)
}

func TestDispatch_BlockedUserIsRejected(t *testing.T) {
	env := newTestEnv(t, 100)
	installFiles(t, env.registry)
	_, password := setupUserWithPolicy(t, env, models.EffectAllow, []string{"*"})
	require.NoError(t, env.dispatcher.users.Block(context.Background(), "alice", "suspicious activity"))

	_, err := env.dispatcher.Dispatch(context.Background(), Request{
		ClientVersion: "1.0.0",
		BasicUsername: "alice",
		BasicPassword: password,
		Method:        "GET",
		Path:          "/files/list",
	})
	var blocked ErrBlockedUser
	require.ErrorAs(t, err, &blocked)
}

func TestDispatch_RateLimitIsEnforced(t *testing.T) {
	env := newTestEnv(t, 1)
	installFiles(t, env.registry)
	_, password := setupUserWithPolicy(t, env, models.EffectAllow, []string{"*"})

	req := Request{
		ClientVersion: "1.0.0",
		BasicUsername: "alice",
		BasicPassword: password,
		Method:        "GET",
		Path:          "/files/list",
	}
	_, err := env.dispatcher.Dispatch(context.Background(), req)
	require.NoError(t, err)

	_, err = env.dispatcher.Dispatch(context.Background(), req)
	var rateLimited ratelimit.ErrRateLimited
	require.ErrorAs(t, err, &rateLimited)
}

func TestDispatch_VersionBelowMinimumIsRejected(t *testing.T) {
	env := newTestEnv(t, 100)
	installFiles(t, env.registry)
	_, password := setupUserWithPolicy(t, env, models.EffectAllow, []string{"*"})

	_, err := env.dispatcher.Dispatch(context.Background(), Request{
		ClientVersion: "0.9.0",
		BasicUsername: "alice",
		BasicPassword: password,
		Method:        "GET",
		Path:          "/files/list",
	})
	var mismatch ErrVersionMismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestDispatch_DescribeCommandSkipsAuditButStillDispatches(t *testing.T) {
	env := newTestEnv(t, 100)
	installFiles(t, env.registry)
	_, password := setupUserWithPolicy(t, env, models.EffectAllow, []string{"*"})

	res, err := env.dispatcher.Dispatch(context.Background(), Request{
		ClientVersion: "1.0.0",
		BasicUsername: "alice",
		BasicPassword: password,
		Method:        "GET",
		Path:          "/files/describe",
	})
	require.NoError(t, err)
	assert.Equal(t, 200, res.Response.StatusCode)

	records, err := env.dispatcher.auditSvc.Query(context.Background(), repository.AuditFilter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
