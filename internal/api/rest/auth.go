package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modular-api/core/internal/api/middleware"
	"github.com/modular-api/core/internal/auth"
	"github.com/modular-api/core/internal/dispatcher"
	"github.com/modular-api/core/internal/identity"
	"github.com/modular-api/core/internal/models"
	"github.com/modular-api/core/internal/registry"
)

type loginResponse struct {
	Token   string                  `json:"token"`
	Catalog registry.ModuleCatalog  `json:"catalog,omitempty"`
}

// Login authenticates a basic-auth request, issues a bearer token recorded
// in the allowlist, and optionally returns the caller's filtered command
// catalog when the request includes ?meta=true.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	creds := middleware.ExtractCredentials(r)
	if creds.Username == "" {
		writeError(w, dispatcher.ErrAuthenticationFailed{Reason: "missing credentials"})
		return
	}

	user, err := h.users.Authenticate(r.Context(), creds.Username, creds.Password)
	if err != nil {
		writeError(w, dispatcher.ErrAuthenticationFailed{Reason: "invalid credentials"})
		return
	}

	jti := newCorrelationID()
	ttl := tokenTTL(h.cfg)
	signed, claims, err := auth.IssueToken(h.cfg.SecretKey, user.Username, ttl, jti)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.tokens.Allow(r.Context(), &models.Token{
		ID:        jti,
		Username:  user.Username,
		Subject:   claims.Subject,
		IssuedAt:  time.Now().UTC(),
		ExpiresAt: claims.ExpiresAt.Time,
	}); err != nil {
		writeError(w, err)
		return
	}

	resp := loginResponse{Token: signed}
	if r.URL.Query().Get("meta") == "true" {
		effective, err := identity.EffectivePolicies(r.Context(), h.groups, h.policies, user)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Catalog = h.registry.Meta(effective)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout revokes the presented bearer token so it can no longer pass the
// dispatcher's allowlist check, regardless of how long it has left to live.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	creds := middleware.ExtractCredentials(r)
	if creds.Bearer == "" {
		writeError(w, dispatcher.ErrAuthenticationFailed{Reason: "missing bearer token"})
		return
	}
	claims, err := auth.ParseToken(h.cfg.SecretKey, creds.Bearer)
	if err != nil {
		writeError(w, dispatcher.ErrAuthenticationFailed{Reason: "invalid token"})
		return
	}
	if err := h.tokens.Revoke(r.Context(), claims.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authenticateBearer validates a bearer token against the allowlist and
// resolves it to the user it names, the same check the dispatcher's own
// authenticate step performs, for the surfaces (swagger) that need an
// authenticated identity without going through Dispatch.
func (h *Handler) authenticateBearer(ctx context.Context, token string) (*models.User, error) {
	claims, err := auth.ValidateToken(ctx, h.cfg.SecretKey, token, func(ctx context.Context, jti string) (bool, error) {
		tok, err := h.tokens.Get(ctx, jti)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return false, auth.ErrTokenNotAllowed
			}
			return false, err
		}
		return tok.IsExpired(), nil
	})
	if err != nil {
		return nil, err
	}
	user, err := h.users.Get(ctx, claims.Username)
	if err != nil {
		return nil, err
	}
	if user.IsBlocked() {
		return nil, dispatcher.ErrBlockedUser{Username: user.Username, Reason: user.StateReason}
	}
	return user, nil
}
