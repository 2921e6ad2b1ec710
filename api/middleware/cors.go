package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS lets the configured dashboard origins call the billing API. Export
// downloads and replays need their response headers visible to the browser.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", IdempotencyKeyHeader, RequestIDHeader},
		ExposedHeaders: []string{
			"Content-Disposition",
			"Retry-After",
			IdempotentReplayHeader,
			RequestIDHeader,
		},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
