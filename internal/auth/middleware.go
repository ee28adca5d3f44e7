package auth

import (
	"context"
	"net/http"
)

// contextKey is unexported so no other package can read or shadow our
// context values.
type contextKey string

const userSessionKey contextKey = "userSession"

// LoadSession validates the session cookie on every request and stores the
// result in the request context. Anonymous requests continue untouched;
// use RequireSession on routes that need a user.
func LoadSession(m *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			us := m.Validate(r.Context(), w, r)
			if us.Authenticated() {
				r = r.WithContext(WithUserSession(r.Context(), us))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession rejects requests that LoadSession did not authenticate.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserSessionFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized","message":"Unauthorized"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUserSession returns a copy of ctx carrying us.
func WithUserSession(ctx context.Context, us UserSession) context.Context {
	return context.WithValue(ctx, userSessionKey, us)
}

// UserSessionFromContext returns the authenticated user and session, or
// (UserSession{}, false) for an anonymous request.
func UserSessionFromContext(ctx context.Context) (UserSession, bool) {
	us, ok := ctx.Value(userSessionKey).(UserSession)
	return us, ok && us.Authenticated()
}
