package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPInvoker forwards a validated call to the gateway fronting every
// installed module's backend process. Where that process physically runs
// and how it is load-balanced is out of scope here; this type only owns
// the one HTTP round trip per dispatched command.
type HTTPInvoker struct {
	client  *http.Client
	baseURL string
}

// NewHTTPInvoker builds an HTTPInvoker that resolves every BackendRequest
// against baseURL + req.Path.
func NewHTTPInvoker(baseURL string, timeout time.Duration) *HTTPInvoker {
	return &HTTPInvoker{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

func (inv *HTTPInvoker) Invoke(ctx context.Context, req BackendRequest) (*BackendResponse, error) {
	body, err := json.Marshal(req.Parameters)
	if err != nil {
		return nil, fmt.Errorf("encode backend request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, inv.baseURL+req.Path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.InterServiceJWT)

	resp, err := inv.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return &BackendResponse{StatusCode: resp.StatusCode, Body: respBody, Headers: headers}, nil
}
