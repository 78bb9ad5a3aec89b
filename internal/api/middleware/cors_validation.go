package middleware

import (
	"log/slog"
	"net/http"

	"github.com/rs/cors"

	"github.com/modular-api/core/internal/config"
)

// CORS builds the cross-origin handler from the server's allowed-origin
// list, warning once at startup if a wildcard origin is configured without
// TLS — a misconfiguration that lets any site's script call the API using
// a caller's own browser credentials.
func CORS(cfg *config.Config, log *slog.Logger) func(http.Handler) http.Handler {
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			if !cfg.TLSEnabled {
				log.Warn("CORS wildcard origin configured without TLS",
					"risk", "any origin can call the API",
					"recommendation", "list explicit origins or enable TLS")
			} else {
				log.Warn("CORS wildcard origin configured", "recommendation", "list explicit origins in production")
			}
		}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{ResponseRequestIDHeader, "Retry-After"},
		AllowCredentials: true,
	})
	return c.Handler
}
