package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/jwtauth/v5"
)

// AuthUser is the caller identity taken from a verified access token
type AuthUser struct {
	UserID int64
	Roles  []string
}

func (i AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("user", i.UserID),
		slog.Any("roles", i.Roles),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "gate context value " + k.name
}

const (
	ACCESS_TOKEN_NAME = "access_token"
	UserIDClaim       = "user_id"
	RolesClaim        = "roles"
)

var (
	AuthUserKey = &contextKey{"AuthUser"}
)

// ParseUserID normalizes a user id claim to int64. Tokens minted by different
// issuers carry the id as a JSON number, a numeric string or an integer.
func ParseUserID(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, fmt.Errorf("user id %v is not an integer", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("user id %q is not an integer: %w", v, err)
		}
		return id, nil
	case nil:
		return 0, fmt.Errorf("missing user id")
	default:
		return 0, fmt.Errorf("unsupported user id type %T", raw)
	}
}

func parseRoles(raw interface{}) []string {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	roles := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			roles = append(roles, s)
		}
	}
	return roles
}

// AuthUserMiddleware reads the verified token from the context and stores the
// caller as an *AuthUser. Requests without a valid token get 401.
func AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			slog.Debug("Rejected request without valid token", "err", err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		raw, ok := claims[UserIDClaim]
		if !ok {
			raw = claims["sub"]
		}
		userID, err := ParseUserID(raw)
		if err != nil {
			slog.Warn("Invalid user id claim", "err", err)
			http.Error(w, "invalid user id in token", http.StatusUnauthorized)
			return
		}

		authUser := &AuthUser{
			UserID: userID,
			Roles:  parseRoles(claims[RolesClaim]),
		}
		slog.Debug("authenticated user", "user", authUser)

		ctx := context.WithValue(r.Context(), AuthUserKey, authUser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthUser returns the caller stored by AuthUserMiddleware, or nil
func GetAuthUser(r *http.Request) *AuthUser {
	authUser, _ := r.Context().Value(AuthUserKey).(*AuthUser)
	return authUser
}

func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verify(ja, jwtauth.TokenFromHeader, TokenFromCookie)(next)
	}
}

func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(ACCESS_TOKEN_NAME)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// IsAdmin checks if the user has the "admin" role
func IsAdmin(user *AuthUser) bool {
	if user == nil {
		return false
	}
	for _, role := range user.Roles {
		if role == "admin" {
			return true
		}
	}
	return false
}
