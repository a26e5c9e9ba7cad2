package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS applies the allowed origin policy for dashboards reading the ops API.
// An empty origin list disables cross-origin access.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", AdminTokenHeader, requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}).Handler
}
