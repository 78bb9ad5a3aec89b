// Package dispatcher implements the ordered request pipeline that ties
// authentication, rate limiting, routing, authorization, parameter
// validation, backend invocation, and audit together into one call.
package dispatcher

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/modular-api/core/internal/audit"
	"github.com/modular-api/core/internal/auth"
	"github.com/modular-api/core/internal/identity"
	"github.com/modular-api/core/internal/meta"
	"github.com/modular-api/core/internal/models"
	"github.com/modular-api/core/internal/policyengine"
	"github.com/modular-api/core/internal/ratelimit"
	"github.com/modular-api/core/internal/registry"
	"github.com/modular-api/core/internal/repository"
)

// Request is the normalized inbound call the pipeline processes. Exactly
// one of BearerToken or (BasicUsername, BasicPassword) should be set.
type Request struct {
	ClientVersion string
	BearerToken   string
	BasicUsername string
	BasicPassword string
	Method        string
	Path          string
	Parameters    map[string]interface{}
}

// Result carries the backend's response plus the identity that produced
// it, for the caller's own logging/response-header purposes.
type Result struct {
	Response *BackendResponse
	Username string
}

// Dispatcher wires every subsystem the pipeline's nine steps depend on.
type Dispatcher struct {
	minVersion string
	secretKey  string
	tokenTTL   time.Duration

	users    identity.UserService
	groups   identity.GroupService
	policies identity.PolicyService
	tokens   repository.TokenRepository
	registry *registry.Registry
	limiter  *ratelimit.Limiter
	auditSvc *audit.Service
	invoker  BackendInvoker
}

// Config bundles the collaborators a Dispatcher needs.
type Config struct {
	MinVersion string
	SecretKey  string
	TokenTTL   time.Duration
	Users      identity.UserService
	Groups     identity.GroupService
	Policies   identity.PolicyService
	Tokens     repository.TokenRepository
	Registry   *registry.Registry
	Limiter    *ratelimit.Limiter
	Audit      *audit.Service
	Invoker    BackendInvoker
}

func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		minVersion: cfg.MinVersion,
		secretKey:  cfg.SecretKey,
		tokenTTL:   cfg.TokenTTL,
		users:      cfg.Users,
		groups:     cfg.Groups,
		policies:   cfg.Policies,
		tokens:     cfg.Tokens,
		registry:   cfg.Registry,
		limiter:    cfg.Limiter,
		auditSvc:   cfg.Audit,
		invoker:    cfg.Invoker,
	}
}

// Dispatch runs the nine-step pipeline. Every short-circuit returns one of
// the typed errors in errors.go; the caller (internal/api/rest) translates
// each to its HTTP status exactly once.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	// 1. Version gate.
	if req.ClientVersion != "" && d.minVersion != "" && versionLess(req.ClientVersion, d.minVersion) {
		return nil, ErrVersionMismatch{ClientVersion: req.ClientVersion, MinVersion: d.minVersion}
	}

	// 2. Authentication.
	user, err := d.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}

	// 4. Route lookup (done before rate check so the limiter key is the
	// canonical command path, not the raw inbound path).
	cmd, err := d.registry.Lookup(req.Method, req.Path)
	if err != nil {
		return nil, err
	}

	// 3. Rate check.
	if err := d.limiter.Allow(ctx, user.Username, cmd.FullPath(), 0); err != nil {
		return nil, err
	}

	// 5. Authorization.
	effective, err := identity.EffectivePolicies(ctx, d.groups, d.policies, user)
	if err != nil {
		return nil, err
	}
	decision := policyengine.Evaluate(effective, policyengine.Request{
		Module:   cmd.ModuleName,
		Resource: joinPath(cmd.Path),
	})
	if !decision.Allowed() {
		return nil, ErrDenied{Module: cmd.ModuleName, Resource: joinPath(cmd.Path), MatchedBy: decision.MatchedBy}
	}

	// 6. Parameter validation.
	params, err := d.validateParameters(cmd, req.Parameters)
	if err != nil {
		return nil, err
	}
	params, err = meta.Apply(user.Meta, params)
	if err != nil {
		return nil, err
	}

	// 7. Backend invocation.
	interServiceToken, _, err := auth.IssueToken(d.secretKey, user.Username, time.Minute, newJTI())
	if err != nil {
		return nil, ErrInternal{CorrelationID: newJTI(), Cause: err}
	}
	resp, err := d.invoker.Invoke(ctx, BackendRequest{
		Method:          cmd.Route.Method,
		Path:            cmd.Route.Path,
		Parameters:      params,
		InterServiceJWT: interServiceToken,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrUpstreamTimeout{Cause: err}
		}
		return nil, ErrUpstreamError{Cause: err}
	}

	// 8. Audit (describe-class commands and failed invocations are exempt
	// from the success-only audit step, never from steps 1-7).
	if !cmd.Describe {
		result := "ok"
		if resp.StatusCode >= 400 {
			result = "error"
		}
		_ = d.auditSvc.Record(ctx, audit.Entry{
			Username:   user.Username,
			Group:      cmd.ModuleName,
			Command:    cmd.FullPath(),
			Parameters: params,
			Result:     result,
			Summary:    fmt.Sprintf("%s %s -> %d", cmd.Route.Method, cmd.Route.Path, resp.StatusCode),
		})
	}

	// 9. Response.
	return &Result{Response: resp, Username: user.Username}, nil
}

func (d *Dispatcher) authenticate(ctx context.Context, req Request) (*models.User, error) {
	if req.BearerToken != "" {
		claims, err := auth.ValidateToken(ctx, d.secretKey, req.BearerToken, d.allowlistLookup)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrTokenNotAllowed) {
				return nil, ErrTokenRevoked{}
			}
			return nil, ErrAuthenticationFailed{Reason: err.Error()}
		}
		user, err := d.users.Get(ctx, claims.Username)
		if err != nil {
			return nil, ErrAuthenticationFailed{Reason: "unknown subject"}
		}
		if user.IsBlocked() {
			return nil, ErrBlockedUser{Username: user.Username, Reason: user.StateReason}
		}
		return user, nil
	}
	if req.BasicUsername != "" {
		user, err := d.users.Authenticate(ctx, req.BasicUsername, req.BasicPassword)
		if err != nil {
			if errors.Is(err, models.ErrInvalidState) {
				return nil, ErrBlockedUser{Username: req.BasicUsername}
			}
			return nil, ErrAuthenticationFailed{Reason: "invalid credentials"}
		}
		return user, nil
	}
	return nil, ErrAuthenticationFailed{Reason: "no credentials presented"}
}

func (d *Dispatcher) allowlistLookup(ctx context.Context, jti string) (bool, error) {
	tok, err := d.tokens.Get(ctx, jti)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, auth.ErrTokenNotAllowed
		}
		return false, err
	}
	return tok.IsExpired(), nil
}

func (d *Dispatcher) validateParameters(cmd *models.CommandMeta, supplied map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(supplied))
	for k, v := range supplied {
		out[k] = v
	}
	for _, p := range cmd.Parameters {
		v, present := out[p.Name]
		if !present {
			if p.Required && p.Default == nil {
				return nil, models.ErrInvalidPayload(fmt.Sprintf("missing required parameter %q", p.Name))
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}
		if !typeMatches(p.Type, v) {
			return nil, models.ErrInvalidPayload(fmt.Sprintf("parameter %q must be of type %s", p.Name, p.Type))
		}
	}
	return out, nil
}

func typeMatches(kind models.ParameterKind, v interface{}) bool {
	switch kind {
	case models.ParamString:
		_, ok := v.(string)
		return ok
	case models.ParamInteger:
		switch v.(type) {
		case int, int32, int64, float64:
			return true
		default:
			return false
		}
	case models.ParamBoolean:
		_, ok := v.(bool)
		return ok
	case models.ParamListOfString:
		switch list := v.(type) {
		case []string:
			return true
		case []interface{}:
			for _, item := range list {
				if _, ok := item.(string); !ok {
					return false
				}
			}
			return true
		default:
			return false
		}
	default:
		return true
	}
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

func newJTI() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// versionLess reports whether client is a strictly lower dotted version
// than min, comparing component by component: a component missing from
// client counts as "0", and a non-numeric pair compares lexicographically.
func versionLess(client, min string) bool {
	clientParts := strings.Split(client, ".")
	minParts := strings.Split(min, ".")
	for i := 0; i < len(minParts); i++ {
		c := "0"
		if i < len(clientParts) {
			c = clientParts[i]
		}
		m := minParts[i]
		cn, cErr := strconv.Atoi(c)
		mn, mErr := strconv.Atoi(m)
		if cErr == nil && mErr == nil {
			if cn != mn {
				return cn < mn
			}
			continue
		}
		if c != m {
			return c < m
		}
	}
	return false
}
