package main

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/modular-api/core/internal/audit"
	"github.com/modular-api/core/internal/auth"
	"github.com/modular-api/core/internal/config"
	"github.com/modular-api/core/internal/dispatcher"
	"github.com/modular-api/core/internal/identity"
	"github.com/modular-api/core/internal/integrity"
	"github.com/modular-api/core/internal/ratelimit"
	"github.com/modular-api/core/internal/registry"
	"github.com/modular-api/core/internal/repository"
)

// testCLI wires an *app against a throwaway in-memory SQLite repository,
// the same real-collaborators-over-mocks approach dispatcher_test.go and
// internal/api/rest's tests use, bypassing newApp's config.Load/openBackend
// (there is no config file or real database in a unit test).
type testCLI struct {
	a   *app
	out *bytes.Buffer
	err *bytes.Buffer
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	sqliteRepo, err := repository.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqliteRepo.Close() })
	repo := sqliteRepo.Repository()

	integritySvc := integrity.New([]byte("test-integrity-key"))
	users := identity.NewUserService(repo.Users, repo.Groups, repo.Tokens, integritySvc, auth.DefaultPasswordPolicy())
	groups := identity.NewGroupService(repo.Groups, repo.Policies, integritySvc)
	policies := identity.NewPolicyService(repo.Policies, integritySvc)
	reg, err := registry.New(context.Background(), repo.Modules)
	require.NoError(t, err)
	auditSvc := audit.New(repo.Audit, integritySvc)
	limiter := ratelimit.New(repo.UsageCounters, time.Minute, 1000)
	invoker := &fakeInvoker{response: &dispatcher.BackendResponse{StatusCode: 200, Body: []byte(`{"ok":true}`)}}

	d := dispatcher.New(dispatcher.Config{
		MinVersion: "1.0.0",
		SecretKey:  "test-secret",
		TokenTTL:   time.Hour,
		Users:      users,
		Groups:     groups,
		Policies:   policies,
		Tokens:     repo.Tokens,
		Registry:   reg,
		Limiter:    limiter,
		Audit:      auditSvc,
		Invoker:    invoker,
	})

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	a := &app{
		cfg:        &config.Config{SecretKey: "test-secret", MinCLIVersion: "1.0.0"},
		backend:    sqliteRepo,
		users:      users,
		groups:     groups,
		policies:   policies,
		registry:   reg,
		auditSvc:   auditSvc,
		dispatcher: d,
		runLimiter: rate.NewLimiter(rate.Limit(100), 100),
		out:        out,
		errOut:     errOut,
	}
	return &testCLI{a: a, out: out, err: errOut}
}

// fakeInvoker mirrors internal/api/rest's test double: the CLI's `run`
// command dispatches through the same pipeline the HTTP surface uses, and
// neither test package needs a real module backend to verify it.
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

// run executes newCmd(cli.a) with args, returning the command's error.
// Output lands in cli.out/cli.err.
func (cli *testCLI) run(t *testing.T, newCmd func(*app) *cobra.Command, args []string) error {
	t.Helper()
	cmd := newCmd(cli.a)
	cmd.SetArgs(args)
	cmd.SetOut(cli.out)
	cmd.SetErr(cli.err)
	return cmd.ExecuteContext(context.Background())
}

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "mapi-test-*.json")
	require.NoError(t, err)
	_, err = f.WriteString(contents)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}
