package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/modular-api/core/internal/dispatcher"
	"github.com/modular-api/core/internal/meta"
	"github.com/modular-api/core/internal/models"
	"github.com/modular-api/core/internal/ratelimit"
	"github.com/modular-api/core/internal/registry"
)

// apiError is the JSON body every error response shares, matching the
// error-kind table: a stable kind string, a human message, and whatever
// extra detail that kind carries (retry-after, matched policy, offending
// field).
type apiError struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError classifies err against the dispatcher/registry/meta error
// kinds and writes the one HTTP response the error-kind table assigns it.
// This is the single place translation happens, per the propagation rule
// that every typed error is caught once at the dispatcher boundary.
func writeError(w http.ResponseWriter, err error) {
	var (
		versionMismatch dispatcher.ErrVersionMismatch
		authFailed      dispatcher.ErrAuthenticationFailed
		blocked         dispatcher.ErrBlockedUser
		revoked         dispatcher.ErrTokenRevoked
		rateLimited     ratelimit.ErrRateLimited
		noRoute         registry.ErrNoSuchRoute
		denied          dispatcher.ErrDenied
		invalidPayload  models.ErrInvalidPayload
		restricted      *meta.RestrictedValue
		upstreamErr     dispatcher.ErrUpstreamError
		upstreamTimeout dispatcher.ErrUpstreamTimeout
		internal        dispatcher.ErrInternal
	)

	switch {
	case errors.As(err, &versionMismatch):
		writeJSON(w, http.StatusBadRequest, apiError{Kind: "VersionMismatch", Message: err.Error()})
	case errors.As(err, &authFailed):
		writeJSON(w, http.StatusUnauthorized, apiError{Kind: "AuthenticationFailed", Message: err.Error()})
	case errors.As(err, &blocked):
		writeJSON(w, http.StatusForbidden, apiError{Kind: "BlockedUser", Message: err.Error(), Details: map[string]string{"reason": blocked.Reason}})
	case errors.As(err, &revoked):
		writeJSON(w, http.StatusUnauthorized, apiError{Kind: "TokenRevoked", Message: err.Error()})
	case errors.As(err, &rateLimited):
		w.Header().Set("Retry-After", strconv.Itoa(int(rateLimited.RetryAfter.Seconds())))
		writeJSON(w, http.StatusTooManyRequests, apiError{Kind: "RateLimited", Message: err.Error()})
	case errors.As(err, &noRoute):
		writeJSON(w, http.StatusNotFound, apiError{Kind: "NoSuchRoute", Message: err.Error()})
	case errors.As(err, &denied):
		writeJSON(w, http.StatusForbidden, apiError{Kind: "Denied", Message: err.Error(), Details: map[string]string{"matched_by": denied.MatchedBy}})
	case errors.As(err, &invalidPayload):
		writeJSON(w, http.StatusBadRequest, apiError{Kind: "InvalidPayload", Message: err.Error()})
	case errors.As(err, &restricted):
		writeJSON(w, http.StatusForbidden, apiError{Kind: "RestrictedValue", Message: err.Error(), Details: map[string]string{"option": restricted.Option, "value": fmt.Sprint(restricted.Value)}})
	case errors.As(err, &upstreamErr):
		writeJSON(w, http.StatusBadGateway, apiError{Kind: "UpstreamError", Message: err.Error()})
	case errors.As(err, &upstreamTimeout):
		writeJSON(w, http.StatusGatewayTimeout, apiError{Kind: "UpstreamTimeout", Message: err.Error()})
	case errors.As(err, &internal):
		writeJSON(w, http.StatusInternalServerError, apiError{Kind: "InternalError", Message: "internal error", Details: map[string]string{"correlation_id": internal.CorrelationID}})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, apiError{Kind: "NotFound", Message: err.Error()})
	case errors.Is(err, models.ErrInvalidState):
		writeJSON(w, http.StatusForbidden, apiError{Kind: "InvalidState", Message: err.Error()})
	default:
		id := newCorrelationID()
		writeJSON(w, http.StatusInternalServerError, apiError{Kind: "InternalError", Message: "internal error", Details: map[string]string{"correlation_id": id}})
	}
}
