package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roster-app/roster/internal/platform/httpx"
	"github.com/roster-app/roster/internal/rbac"
	"github.com/roster-app/roster/internal/shared"
)

type userContextKey struct{}

// ContextWithUser stores the authenticated user in context.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey{}).(*User)
	return user
}

// ActorFromContext returns the guard actor for the request, nil when
// unauthenticated.
func ActorFromContext(ctx context.Context) *rbac.Actor {
	return UserFromContext(ctx).Actor()
}

// Authenticate resolves the request session to its live user. Requests
// without one pass through anonymously and are turned away by the guard.
func Authenticate(sessions *Sessions, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}
			user, err := sessions.UserForSession(r.Context(), sess)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
			case errors.Is(err, rbac.ErrUnauthenticated):
				next.ServeHTTP(w, r)
			default:
				logger.Error("resolve session user", slog.Any("error", err))
				httpx.RespondError(w, err)
			}
		})
	}
}
