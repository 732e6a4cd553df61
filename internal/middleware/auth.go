package middleware

import (
	"context"
	"net/http"

	"github.com/avelez/gametracker/backend/internal/auth"
)

// RequireAuth validates the session cookie and injects the user's id and
// email into the request context. Missing, unknown, and expired sessions
// all produce the same response.
func RequireAuth(sessions auth.Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.SessionCookie)
			if err != nil {
				http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
				return
			}

			ident, err := sessions.Get(r.Context(), cookie.Value)
			if err != nil || ident == nil {
				http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), "user_id", ident.UserID)
			ctx = context.WithValue(ctx, "user_email", ident.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
