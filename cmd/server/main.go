package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/modular-api/core/internal/api/middleware"
	"github.com/modular-api/core/internal/api/rest"
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

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := openBackend(cfg)
	if err != nil {
		logger.Error("failed to open repository backend", "mode", cfg.Mode, "error", err)
		os.Exit(1)
	}
	defer backend.Close()
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

	if err := bootstrapAdmin(ctx, cfg, users); err != nil {
		logger.Error("failed to bootstrap admin user", "error", err)
		os.Exit(1)
	}

	reg, err := registry.New(ctx, repo.Modules)
	if err != nil {
		logger.Error("failed to load module registry", "error", err)
		os.Exit(1)
	}

	limiter := ratelimit.New(repo.UsageCounters, time.Duration(cfg.RateLimitWindowSec)*time.Second, int64(cfg.RateLimitDefaultCeiling))
	auditSvc := audit.New(repo.Audit, integritySvc)
	invoker := dispatcher.NewHTTPInvoker(cfg.ModuleBackendBaseURL, requestTimeout(cfg))

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

	handler := rest.NewHandler(d, reg, users, groups, policies, repo.Tokens, cfg)
	router := mux.NewRouter()
	rest.SetupRoutes(router, handler)

	router.Use(middleware.SecureHeaders)
	router.Use(middleware.RequestID)
	router.Use(middleware.StructuredLog)
	router.Use(middleware.Recover)
	router.Use(middleware.MaxBodySize(middleware.DefaultMaxBodyBytes))

	handlerWithCORS := middleware.CORS(cfg, logger)(router)

	srv := &http.Server{
		Handler:      handlerWithCORS,
		ReadTimeout:  requestTimeout(cfg),
		WriteTimeout: requestTimeout(cfg),
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		logger.Error("failed to bind listener", "port", cfg.Port, "error", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("modular-api listening", "port", cfg.Port, "mode", cfg.Mode)
		if cfg.TLSEnabled {
			err = srv.ServeTLS(listener, cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = srv.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server exited", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", "error", err)
	}
	logger.Info("shutdown complete")
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

func requestTimeout(cfg *config.Config) time.Duration {
	if cfg.RequestTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.RequestTimeoutSec) * time.Second
}

// bootstrapAdmin creates the configured admin user on a fresh deployment so
// there is always one credential that can log in and start issuing policy
// and group CRUD through cmd/mapi. It is a no-op once that user exists.
func bootstrapAdmin(ctx context.Context, cfg *config.Config, users identity.UserService) error {
	if cfg.AdminBootstrapUser == "" {
		return nil
	}
	if _, err := users.Get(ctx, cfg.AdminBootstrapUser); err == nil {
		return nil
	}
	_, err := users.Create(ctx, &models.User{Username: cfg.AdminBootstrapUser}, cfg.AdminBootstrapPass)
	return err
}
