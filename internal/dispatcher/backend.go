package dispatcher

import "context"

// BackendRequest is what the dispatcher forwards to a module's declared
// route after authentication, authorization and parameter validation have
// all passed.
type BackendRequest struct {
	Method          string
	Path            string
	Parameters      map[string]interface{}
	InterServiceJWT string // short-lived token identifying the calling user
}

// BackendResponse is the unmodified reply the dispatcher returns to the
// client, plus its own server-added headers.
type BackendResponse struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
}

// BackendInvoker is the narrow interface through which the dispatcher calls
// out to a module's backend. The HTTP client itself, retries, and
// connection pooling are a collaborator's concern, not the dispatcher's.
type BackendInvoker interface {
	Invoke(ctx context.Context, req BackendRequest) (*BackendResponse, error)
}
