// Package middleware provides HTTP middleware for request correlation,
// structured logging, and recovery, shared by every route the server mounts.
package middleware

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/modular-api/core/internal/pkg/logger"
	"github.com/modular-api/core/internal/pkg/metrics"
)

const ResponseRequestIDHeader = "X-Request-ID"

var requestLogOut = os.Stderr

// RequestID adds a unique request ID to the context and response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(ResponseRequestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), logger.RequestIDKey, reqID)
		w.Header().Set(ResponseRequestIDHeader, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// responseWriter captures the status code for logging and metrics.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, fmt.Errorf("http.ResponseWriter does not support hijacking")
}

type usernameKeyType struct{}

var usernameKey usernameKeyType

// usernameSlot is a mutable box placed in the request context before the
// handler runs. The REST handler fills it in once Dispatch has
// authenticated, and StructuredLog reads it back after next.ServeHTTP
// returns — a context value set further down the chain is invisible to an
// outer middleware's own copy of the context, so passing a pointer is what
// lets the write travel back up.
type usernameSlot struct{ value string }

func withUsernameSlot(ctx context.Context) (context.Context, *usernameSlot) {
	slot := &usernameSlot{}
	return context.WithValue(ctx, usernameKey, slot), slot
}

// SetUsername records the authenticated caller on the request for
// StructuredLog to attribute the access line to, once Dispatch succeeds.
func SetUsername(r *http.Request, username string) {
	if slot, ok := r.Context().Value(usernameKey).(*usernameSlot); ok {
		slot.value = username
	}
}

// StructuredLog logs each request as a single JSON line (request_id,
// username, route template, method, path, status, duration) and records the
// request in the RED (rate/errors/duration) Prometheus metrics.
func StructuredLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, slot := withUsernameSlot(r.Context())
		r = r.WithContext(ctx)
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)

		pathLabel := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil && tpl != "" {
				pathLabel = tpl
			}
		}

		errMsg := ""
		if rw.status >= 400 {
			errMsg = http.StatusText(rw.status)
		}
		logger.RequestLog(requestLogOut, logger.FromContext(r.Context()), slot.value, pathLabel, r.Method, r.URL.Path, rw.status, duration, errMsg)

		statusStr := strconv.Itoa(rw.status)
		metrics.HTTPRequestTotal.WithLabelValues(r.Method, pathLabel, statusStr).Inc()
		metrics.HTTPRequestDurationSeconds.WithLabelValues(r.Method, pathLabel).Observe(duration.Seconds())
	})
}

// Recover converts a panic in a downstream handler into a 500 response
// instead of taking the server down, logging the recovered value.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.StdLogger().Error("panic recovered", "error", fmt.Sprint(rec), "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
