package client

import (
	"log/slog"
	"net/http"
)

// RequireRole returns a middleware that checks if the authenticated user has any of the specified roles.
// Returns 401 Unauthorized if not authenticated.
// Returns 403 Forbidden if authenticated but missing required role.
// Must be used after AuthUserMiddleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authUser := GetAuthUser(r)
			if authUser == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			for _, have := range authUser.Roles {
				for _, want := range roles {
					if have == want {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			slog.Warn("User lacks required role", "userId", authUser.UserID, "requiredRoles", roles)
			http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
		})
	}
}
