package auth

import (
	"context"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"medix-backend/internal/database"
)

type contextKey int

const userKey contextKey = 0

// Middleware authenticates the Authorization bearer token and loads the
// matching user row into the request context. Requests without a valid token
// are rejected with 401.
func (t *TokenIssuer) Middleware(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			email, err := t.VerifyToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			var user database.User
			if err := db.WithContext(r.Context()).Where("email = ?", email).First(&user).Error; err != nil {
				http.Error(w, "user not found", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, &user)))
		})
	}
}

// UserFromContext returns the authenticated user stored by Middleware.
func UserFromContext(ctx context.Context) (*database.User, bool) {
	user, ok := ctx.Value(userKey).(*database.User)
	return user, ok
}
