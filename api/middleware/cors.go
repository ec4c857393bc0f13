package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the configured browser origins. Credentials are only allowed
// for an explicit origin list, never for "*".
func CORS(origins []string) func(http.Handler) http.Handler {
	wildcard := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyKeyHeader, RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, IdempotentReplayedHeader},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	})
}
