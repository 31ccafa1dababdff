package middleware

import (
	"context"
	"net/http"
	"strings"

	"treasury/internal/auth"
	"treasury/internal/authority"
	"treasury/internal/models"
)

type contextKey string

const actorKey contextKey = "actor"

func ActorFromContext(ctx context.Context) (authority.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(authority.Actor)
	return actor, ok
}

func WithActor(ctx context.Context, actor authority.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromClaims maps verified token claims onto the caller of a command.
// An unknown creator type is treated as standard.
func ActorFromClaims(claims *auth.Claims) authority.Actor {
	creatorType := models.CreatorType(strings.ToLower(claims.CreatorType))
	if !creatorType.Valid() {
		creatorType = models.CreatorStandard
	}
	return authority.Actor{
		UserID:         claims.UserID,
		OrganizationID: claims.OrganizationID,
		Roles:          claims.Roles,
		CreatorType:    creatorType,
	}
}

// BearerToken returns the token from the Authorization header, or from the
// token query parameter when allowQuery is set (browsers cannot set headers
// on websocket upgrades).
func BearerToken(r *http.Request, allowQuery bool) (string, bool) {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if allowQuery {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, true
		}
	}
	return "", false
}

func Auth(secret string) func(http.Handler) http.Handler {
	return authenticate(secret, false)
}

// AuthWS is Auth that also accepts ?token= for websocket handshakes.
func AuthWS(secret string) func(http.Handler) http.Handler {
	return authenticate(secret, true)
}

func authenticate(secret string, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" && (!allowQuery || r.URL.Query().Get("token") == "") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			token, ok := BearerToken(r, allowQuery)
			if !ok {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := auth.ParseToken(secret, token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := WithActor(r.Context(), ActorFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
