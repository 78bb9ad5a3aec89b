package rest

import (
	"net/http"

	"github.com/modular-api/core/internal/api/middleware"
	"github.com/modular-api/core/internal/dispatcher"
	"github.com/modular-api/core/internal/identity"
	"github.com/modular-api/core/internal/models"
)

type openAPIDocument struct {
	OpenAPI string                 `json:"openapi"`
	Info    openAPIInfo            `json:"info"`
	Paths   map[string]interface{} `json:"paths"`
}

type openAPIInfo struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

// Swagger transforms the caller's filtered command catalog into a minimal
// OpenAPI v3 document. Like every other authenticated surface it requires
// valid credentials, so the document it returns never names a route the
// caller could not otherwise reach.
func (h *Handler) Swagger(w http.ResponseWriter, r *http.Request) {
	creds := middleware.ExtractCredentials(r)
	if creds.Bearer == "" && creds.Username == "" {
		writeError(w, dispatcher.ErrAuthenticationFailed{Reason: "missing credentials"})
		return
	}

	var user *models.User
	var err error
	if creds.Bearer != "" {
		user, err = h.authenticateBearer(r.Context(), creds.Bearer)
	} else {
		user, err = h.users.Authenticate(r.Context(), creds.Username, creds.Password)
	}
	if err != nil {
		writeError(w, dispatcher.ErrAuthenticationFailed{Reason: "invalid credentials"})
		return
	}

	effective, err := identity.EffectivePolicies(r.Context(), h.groups, h.policies, user)
	if err != nil {
		writeError(w, err)
		return
	}

	catalog := h.registry.Meta(effective)
	doc := openAPIDocument{
		OpenAPI: "3.0.3",
		Info:    openAPIInfo{Title: "modular-api", Version: h.cfg.APIVersion},
		Paths:   make(map[string]interface{}),
	}
	for _, commands := range catalog {
		for _, cmd := range commands {
			if !cmd.IsCommand() || cmd.Route == nil {
				continue
			}
			entry, ok := doc.Paths[cmd.Route.Path].(map[string]interface{})
			if !ok {
				entry = make(map[string]interface{})
				doc.Paths[cmd.Route.Path] = entry
			}
			entry[httpMethodLower(cmd.Route.Method)] = map[string]interface{}{
				"operationId": cmd.FullPath(),
				"parameters":  swaggerParameters(cmd.Parameters),
			}
		}
	}
	writeJSON(w, http.StatusOK, doc)
}

func swaggerParameters(params []models.Parameter) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(params))
	for _, p := range params {
		out = append(out, map[string]interface{}{
			"name":     p.Name,
			"required": p.Required,
			"schema":   map[string]string{"type": swaggerType(p.Type)},
		})
	}
	return out
}

func swaggerType(kind models.ParameterKind) string {
	switch kind {
	case models.ParamInteger:
		return "integer"
	case models.ParamBoolean:
		return "boolean"
	case models.ParamListOfString:
		return "array"
	default:
		return "string"
	}
}

func httpMethodLower(method string) string {
	out := make([]byte, len(method))
	for i := 0; i < len(method); i++ {
		c := method[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
