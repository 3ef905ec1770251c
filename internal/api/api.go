package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// AddHealthRoutes serves the root banner and the health probe used by
// deployment checks. Neither requires authentication.
func AddHealthRoutes(r chi.Router) {
	r.Get("/", RestHandler(func(r *http.Request) (any, error) {
		return map[string]string{"message": "MediX API is running!"}, nil
	}))

	r.Get("/health", RestHandler(func(r *http.Request) (any, error) {
		return map[string]string{"status": "healthy", "service": "MediX API"}, nil
	}))
}
