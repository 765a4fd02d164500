package api

import (
	"net/http"
	"strings"

	"github.com/terra-clan/sqlgym/internal/auth"
	"github.com/terra-clan/sqlgym/internal/storage"
)

// AuthMiddleware resolves bearer tokens into users.
type AuthMiddleware struct {
	auth *auth.Auth
	repo storage.Repository
}

// NewAuthMiddleware creates auth middleware backed by the given token
// service and user repository.
func NewAuthMiddleware(a *auth.Auth, repo storage.Repository) *AuthMiddleware {
	return &AuthMiddleware{auth: a, repo: repo}
}

// Authenticate verifies the Authorization header and loads the user
// into the request context. Requests without a valid token get 401.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			respondError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization header")
			return
		}

		username, err := m.auth.VerifyToken(parts[1])
		if err != nil {
			respondError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}

		user, err := m.repo.GetUserByUsername(r.Context(), username)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to load user")
			return
		}
		if user == nil {
			respondError(w, http.StatusUnauthorized, "unauthorized", "unknown user")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}

// RequireAdmin rejects requests from non-admin users with 403. It must
// run after Authenticate.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || !user.IsAdmin {
			respondError(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
