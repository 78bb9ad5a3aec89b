package rest

import (
	"context"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/modular-api/core/internal/audit"
	"github.com/modular-api/core/internal/auth"
	"github.com/modular-api/core/internal/config"
	"github.com/modular-api/core/internal/dispatcher"
	"github.com/modular-api/core/internal/identity"
	"github.com/modular-api/core/internal/integrity"
	"github.com/modular-api/core/internal/models"
	"github.com/modular-api/core/internal/ratelimit"
	"github.com/modular-api/core/internal/registry"
	"github.com/modular-api/core/internal/repository"
)

// fakeInvoker stands in for the module backend gateway: the HTTP surface's
// own tests only need to exercise credential handling and response
// translation, not a real upstream call.
type fakeInvoker struct {
	response *dispatcher.BackendResponse
	err      error
}

func (f *fakeInvoker) Invoke(ctx context.Context, req dispatcher.BackendRequest) (*dispatcher.BackendResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
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
`

type testEnv struct {
	cfg      *config.Config
	repo     *repository.Repository
	registry *registry.Registry
	users    identity.UserService
	groups   identity.GroupService
	policies identity.PolicyService
	handler  *Handler
	router   *mux.Router
	invoker  *fakeInvoker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sqliteRepo, err := repository.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqliteRepo.Close() })
	repo := sqliteRepo.Repository()

	integritySvc := integrity.New([]byte("test-integrity-key"))
	reg, err := registry.New(context.Background(), repo.Modules)
	require.NoError(t, err)

	dir := t.TempDir()
	path := dir + "/files.yaml"
	require.NoError(t, os.WriteFile(path, []byte(filesDescriptor), 0o600))
	require.NoError(t, reg.Install(context.Background(), path))

	users := identity.NewUserService(repo.Users, repo.Groups, repo.Tokens, integritySvc, auth.DefaultPasswordPolicy())
	groups := identity.NewGroupService(repo.Groups, repo.Policies, integritySvc)
	policies := identity.NewPolicyService(repo.Policies, integritySvc)
	auditSvc := audit.New(repo.Audit, integritySvc)

	invoker := &fakeInvoker{response: &dispatcher.BackendResponse{StatusCode: 200, Body: []byte(`{"ok":true}`)}}

	cfg := &config.Config{
		SecretKey:     "test-secret",
		TokenTTLSec:   3600,
		APIVersion:    "1.0.0",
		MinCLIVersion: "1.0.0",
	}

	d := dispatcher.New(dispatcher.Config{
		MinVersion: cfg.MinCLIVersion,
		SecretKey:  cfg.SecretKey,
		TokenTTL:   time.Hour,
		Users:      users,
		Groups:     groups,
		Policies:   policies,
		Tokens:     repo.Tokens,
		Registry:   reg,
		Limiter:    ratelimit.New(repo.UsageCounters, time.Minute, 1000),
		Audit:      auditSvc,
		Invoker:    invoker,
	})

	h := NewHandler(d, reg, users, groups, policies, repo.Tokens, cfg)
	router := mux.NewRouter()
	SetupRoutes(router, h)

	return &testEnv{
		cfg:      cfg,
		repo:     repo,
		registry: reg,
		users:    users,
		groups:   groups,
		policies: policies,
		handler:  h,
		router:   router,
		invoker:  invoker,
	}
}

func (e *testEnv) createUser(t *testing.T, username, password string) *models.User {
	t.Helper()
	u := &models.User{Username: username}
	_, err := e.users.Create(context.Background(), u, password)
	require.NoError(t, err)
	return u
}

func (e *testEnv) grantAllow(t *testing.T, username, module string, resources []string) {
	t.Helper()
	ctx := context.Background()
	policyName := username + "-policy"
	groupName := username + "-group"
	require.NoError(t, e.policies.Create(ctx, &models.Policy{
		PolicyName: policyName,
		Statements: []models.Statement{{Effect: models.EffectAllow, Module: module, Resources: resources}},
	}))
	require.NoError(t, e.groups.Create(ctx, &models.Group{GroupName: groupName}))
	require.NoError(t, e.groups.AddPolicy(ctx, groupName, policyName))
	require.NoError(t, e.users.AddGroup(ctx, username, groupName))
}

func newRequestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
