package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
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

// app bundles the collaborators every subcommand needs. mapi talks to the
// document store directly rather than over HTTP: administration was never
// part of the HTTP surface (spec's external interfaces are login, logout,
// health_check, a dispatched module route, and an optional swagger
// document), so the CLI wires the same services cmd/server does and calls
// them in-process.
type app struct {
	cfg        *config.Config
	backend    repository.Backend
	users      identity.UserService
	groups     identity.GroupService
	policies   identity.PolicyService
	registry   *registry.Registry
	auditSvc   *audit.Service
	dispatcher *dispatcher.Dispatcher

	// runLimiter is a best-effort local hint against hammering the module
	// backend gateway from a single CLI invocation loop (e.g. a shell
	// script calling `mapi run` in a tight loop); it does not replace the
	// shared fixed-window limiter the dispatcher enforces server-side.
	runLimiter *rate.Limiter

	jsonOutput bool
	out        io.Writer
	errOut     io.Writer
}

func newApp(out, errOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	backend, err := openBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("open repository backend: %w", err)
	}
	repo := backend.Repository()

	integritySvc := integrity.New([]byte(cfg.SecretKey))
	passwordPolicy := auth.PasswordPolicy{
		MinLength:        cfg.PasswordMinLength,
		RequireUppercase: cfg.PasswordRequireUppercase,
		RequireLowercase: cfg.PasswordRequireLowercase,
		RequireNumbers:   cfg.PasswordRequireNumbers,
		RequireSpecial:   cfg.PasswordRequireSpecial,
	}

	users := identity.NewUserService(repo.Users, repo.Groups, repo.Tokens, integritySvc, passwordPolicy)
	groups := identity.NewGroupService(repo.Groups, repo.Policies, integritySvc)
	policies := identity.NewPolicyService(repo.Policies, integritySvc)

	reg, err := registry.New(context.Background(), repo.Modules)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("load module registry: %w", err)
	}

	limiter := ratelimit.New(repo.UsageCounters, time.Duration(cfg.RateLimitWindowSec)*time.Second, int64(cfg.RateLimitDefaultCeiling))
	auditSvc := audit.New(repo.Audit, integritySvc)
	invoker := dispatcher.NewHTTPInvoker(cfg.ModuleBackendBaseURL, 30*time.Second)

	d := dispatcher.New(dispatcher.Config{
		MinVersion: cfg.MinCLIVersion,
		SecretKey:  cfg.SecretKey,
		TokenTTL:   time.Duration(cfg.TokenTTLSec) * time.Second,
		Users:      users,
		Groups:     groups,
		Policies:   policies,
		Tokens:     repo.Tokens,
		Registry:   reg,
		Limiter:    limiter,
		Audit:      auditSvc,
		Invoker:    invoker,
	})

	return &app{
		cfg:        cfg,
		backend:    backend,
		users:      users,
		groups:     groups,
		policies:   policies,
		registry:   reg,
		auditSvc:   auditSvc,
		dispatcher: d,
		runLimiter: rate.NewLimiter(rate.Limit(5), 10),
		out:        out,
		errOut:     errOut,
	}, nil
}

func openBackend(cfg *config.Config) (repository.Backend, error) {
	switch cfg.Mode {
	case config.ModeHosted:
		return repository.NewPostgresRepository(cfg.PostgresDSN)
	case config.ModeSelfHosted:
		return repository.NewSQLiteRepository(cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

// newRootCommand builds the mapi root command. Dependency wiring happens
// lazily in PersistentPreRunE so `mapi --help` and `mapi version` never
// need a reachable database.
func newRootCommand() *cobra.Command {
	a := &app{out: os.Stdout, errOut: os.Stderr}

	cmd := &cobra.Command{
		Use:           "mapi",
		Short:         "Administer modular-api policies, groups, users, modules, and audit history",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			wired, err := newApp(a.out, a.errOut)
			if err != nil {
				return err
			}
			wired.jsonOutput = a.jsonOutput
			*a = *wired
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.backend != nil {
				return a.backend.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "emit structured JSON instead of a table")

	cmd.AddCommand(
		newPolicyCmd(a),
		newGroupCmd(a),
		newUserCmd(a),
		newAuditCmd(a),
		newPolicySimulatorCmd(a),
		newInstallCmd(a),
		newUninstallCmd(a),
		newDescribeCmd(a),
		newRunCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// Execute is mapi's entry point, called from main().
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
