// Package rest exposes the dispatcher, login/logout, and health check over
// HTTP. Administration (policy/group/user CRUD, audit queries, install) is
// a CLI-only surface (cmd/mapi) per the command-line surface in the module
// layout; this package only carries the client-facing request path.
package rest

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/modular-api/core/internal/config"
	"github.com/modular-api/core/internal/dispatcher"
	"github.com/modular-api/core/internal/identity"
	"github.com/modular-api/core/internal/registry"
	"github.com/modular-api/core/internal/repository"
)

// Handler wires the HTTP surface to the dispatcher and the pieces of it
// the login/logout endpoints need directly (issuing and revoking tokens
// without going through a module call).
type Handler struct {
	dispatcher *dispatcher.Dispatcher
	registry   *registry.Registry
	users      identity.UserService
	groups     identity.GroupService
	policies   identity.PolicyService
	tokens     repository.TokenRepository
	cfg        *config.Config
}

func NewHandler(d *dispatcher.Dispatcher, reg *registry.Registry, users identity.UserService, groups identity.GroupService, policies identity.PolicyService, tokens repository.TokenRepository, cfg *config.Config) *Handler {
	return &Handler{
		dispatcher: d,
		registry:   reg,
		users:      users,
		groups:     groups,
		policies:   policies,
		tokens:     tokens,
		cfg:        cfg,
	}
}

// SetupRoutes mounts the fixed endpoints and installs the dispatcher as the
// catch-all for every other path: module routes are registered in the
// registry's catalog, not in mux, and the registry does its own exact
// (method, path) lookup, so anything mux can't otherwise match is a
// candidate module route.
func SetupRoutes(router *mux.Router, h *Handler) {
	router.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	router.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)
	router.HandleFunc("/health_check", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/swagger", h.Swagger).Methods(http.MethodGet)
	router.NotFoundHandler = http.HandlerFunc(h.Dispatch)
}

func newCorrelationID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func tokenTTL(cfg *config.Config) time.Duration {
	if cfg.TokenTTLSec <= 0 {
		return time.Hour
	}
	return time.Duration(cfg.TokenTTLSec) * time.Second
}
