package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/clipstream/backend/internal/models"
)

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the authenticated user stored by RequireAuth.
func CurrentUser(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(currentUserKey).(models.User)
	return user, ok
}

func withCurrentUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, currentUserKey, user)
}

// RequireAuth verifies the access token from the accessToken cookie or the
// Authorization header and stores the resolved user on the request context.
func RequireAuth(sessions SessionManager) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := bearerToken(r)
			if token == "" {
				if cookie, err := r.Cookie(accessCookieName); err == nil {
					token = cookie.Value
				}
			}

			if token == "" {
				respondError(ctx, w, Unauthorized("authentication required"))
				return
			}

			user, err := sessions.Authenticate(ctx, token)
			if err != nil {
				respondError(ctx, w, err)
				return
			}

			next(w, r.WithContext(withCurrentUser(ctx, user)))
		}
	}
}

// OptionalAuth resolves the current user when a valid access token is
// present but lets anonymous requests through untouched.
func OptionalAuth(sessions SessionManager) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := bearerToken(r)
			if token == "" {
				if cookie, err := r.Cookie(accessCookieName); err == nil {
					token = cookie.Value
				}
			}

			if token != "" {
				if user, err := sessions.Authenticate(ctx, token); err == nil {
					r = r.WithContext(withCurrentUser(ctx, user))
				}
			}

			next(w, r)
		}
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
