package middleware

import (
	"net/http"

	"treasury/internal/authority"
)

// RequireAdmin lets through only callers holding the admin role.
func RequireAdmin() func(http.Handler) http.Handler {
	return requireActor(func(actor authority.Actor) bool {
		return actor.IsAdmin()
	}, "admin privileges required")
}

// RequireAuthority lets through callers whose roles reach level.
func RequireAuthority(level authority.Level) func(http.Handler) http.Handler {
	return requireActor(func(actor authority.Actor) bool {
		return authority.IsAuthorized(actor.Roles, level)
	}, "missing required role")
}

func requireActor(allowed func(authority.Actor) bool, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !allowed(actor) {
				http.Error(w, message, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
