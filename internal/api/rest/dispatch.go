package rest

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/modular-api/core/internal/api/middleware"
	"github.com/modular-api/core/internal/dispatcher"
	"github.com/modular-api/core/internal/models"
)

// ClientVersionHeader carries the caller's CLI/client version for the
// dispatcher's version gate; a request without it skips the gate (treated
// as an unversioned internal caller).
const ClientVersionHeader = "X-Client-Version"

// Dispatch is the catch-all for every module route: it collects
// credentials and parameters off the request, hands them to the
// dispatcher, and writes back whatever the dispatcher decided, translating
// any typed error to its HTTP status exactly once.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	creds := middleware.ExtractCredentials(r)
	params, err := collectParameters(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), dispatcher.Request{
		ClientVersion: r.Header.Get(ClientVersionHeader),
		BearerToken:   creds.Bearer,
		BasicUsername: creds.Username,
		BasicPassword: creds.Password,
		Method:        r.Method,
		Path:          r.URL.Path,
		Parameters:    params,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.SetUsername(r, result.Username)
	for k, v := range result.Response.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(result.Response.StatusCode)
	_, _ = w.Write(result.Response.Body)
}

// collectParameters merges query-string values with a JSON object body, if
// present. Body fields take precedence over same-named query values since
// the body is the more deliberate of the two.
func collectParameters(r *http.Request) (map[string]interface{}, error) {
	params := make(map[string]interface{})
	for key, values := range r.URL.Query() {
		if len(values) == 1 {
			params[key] = values[0]
			continue
		}
		list := make([]interface{}, len(values))
		for i, v := range values {
			list[i] = v
		}
		params[key] = list
	}

	if r.Body == nil {
		return params, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return params, nil
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, models.ErrInvalidPayload("request body must be a JSON object")
	}
	for k, v := range decoded {
		params[k] = v
	}
	return params, nil
}
