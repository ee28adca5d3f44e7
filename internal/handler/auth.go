package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/typing-flair/internal/apperror"
	"github.com/sakif/typing-flair/internal/auth"
	"github.com/sakif/typing-flair/internal/reddit"
	"github.com/sakif/typing-flair/internal/service"
)

const (
	stateCookieName = "oauth_state"
	stateCookieAge  = 600 // 10 minutes
)

// AuthHandler manages the reddit OAuth login flow and logout.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin    → redirect the browser to reddit's authorization page
//   - HandleCallback → check state, exchange the code, load the profile, start a session
//   - HandleLogout   → end the session and drop the cookie
//
// DEPENDENCY CHAIN:
//   - reddit   *reddit.Provider      → authorization URL, code exchange, /api/v1/me
//   - users    *service.AuthService  → find-or-create the local user, issue the session
//   - sessions *auth.SessionManager  → session cookies, invalidation
type AuthHandler struct {
	reddit   *reddit.Provider
	users    *service.AuthService
	sessions *auth.SessionManager
	secure   bool
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secure sets the Secure attribute
// on the state cookie and should be true in production.
func NewAuthHandler(
	provider *reddit.Provider,
	users *service.AuthService,
	sessions *auth.SessionManager,
	secure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		reddit:   provider,
		users:    users,
		sessions: sessions,
		secure:   secure,
		logger:   logger,
	}
}

// HandleLogin redirects the user to reddit's authorization page.
//
// HTTP: GET /login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When reddit calls back, HandleCallback verifies the state matches.
// Nothing is stored on the server for this step.
//
// The state cookie is:
//   - HttpOnly: JavaScript can't read it
//   - SameSite=Lax: sent on the top-level redirect back from reddit
//   - 10-minute expiry: long enough for the user to approve
//   - Secure in production
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := auth.NewRandomToken()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   stateCookieAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.reddit.AuthURL(state), http.StatusFound)
}

// HandleCallback completes the OAuth login flow.
//
// HTTP: GET /callback?code=xxx&state=yyy
//
// FLOW (strictly in order, no retries):
//  1. Validate code, query state and cookie state        → 400 on any problem
//  2. Exchange the code for a token                      → 400 if reddit refuses
//  3. Fetch the reddit profile                           → 400 on non-2xx, 500 on a bad body
//  4. Find or create the local user                      → 500 "Failed to look up user" / "Failed to create new user"
//  5. Start a session, set its cookie, redirect to /     → 500 "Failed to create session"
//
// A failure in step 1 has no side effects at all.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	queryState := q.Get("state")

	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || queryState == "" || queryState != stateCookie.Value {
		h.logger.Warn("auth callback: missing or mismatched state")
		writeError(w, apperror.ValidationFailed("state", "Invalid OAuth state"))
		return
	}

	// A declined consent page comes back as error=access_denied with no
	// code, which lands here too.
	code := q.Get("code")
	if code == "" {
		h.logger.Warn("auth callback: missing code", slog.String("error", q.Get("error")))
		writeError(w, apperror.ValidationFailed("code", "Missing OAuth code"))
		return
	}

	// The state is single-use.
	h.clearStateCookie(w)

	// --- Step 2: Exchange code for a token ---
	tok, err := h.reddit.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: code exchange failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	// --- Step 3: Fetch the reddit profile ---
	profile, err := h.reddit.FetchProfile(r.Context(), tok)
	if err != nil {
		h.logger.Error("auth callback: profile fetch failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	// --- Step 4 and 5: Find or create the user, start a session ---
	result, err := h.users.LoginOrRegisterReddit(r.Context(), profile)
	if err != nil {
		h.logger.Error("auth callback: login failed",
			slog.String("username", profile.Name),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	http.SetCookie(w, h.sessions.SessionCookie(result.Session.ID))
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleLogout ends the current session.
//
// HTTP: POST /logout
// Auth: a session is required; without one the answer is
// 401 {"error":"unauthorized","message":"Unauthorized"}.
//
// The session row is deleted server-side, so the old cookie value is
// useless even if the browser keeps it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	us, ok := auth.UserSessionFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	if err := h.sessions.Invalidate(r.Context(), us.Session.ID); err != nil {
		h.logger.Error("logout: invalidating session failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	http.SetCookie(w, h.sessions.BlankSessionCookie())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
