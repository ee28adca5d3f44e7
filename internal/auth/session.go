package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/typing-flair/internal/apperror"
	"github.com/sakif/typing-flair/internal/model"
	"github.com/sakif/typing-flair/internal/repository"
)

const (
	// SessionCookieName is the cookie that carries the session id.
	SessionCookieName = "auth_session"

	// sessionCookieMaxAge keeps the cookie for as long as browsers allow
	// (400 days). The cookie does not decide when a session ends; the
	// server-side expiry does.
	sessionCookieMaxAge = 400 * 24 * 60 * 60
)

// UserSession is the result of validating a session cookie. Both fields are
// nil for an anonymous request.
type UserSession struct {
	User    *model.User
	Session *model.Session
}

// Authenticated reports whether the request carried a valid session.
func (us UserSession) Authenticated() bool {
	return us.User != nil && us.Session != nil
}

// SessionManager creates, validates and invalidates server-side sessions
// and issues the matching cookies.
//
// SLIDING EXPIRY:
// A session lives for ttl. When validation finds that less than half of ttl
// remains, the expiry is pushed back to now+ttl and the session is marked
// Fresh, which tells the HTTP layer to re-send the cookie.
type SessionManager struct {
	sessions repository.SessionRepository
	ttl      time.Duration
	secure   bool
	now      func() time.Time
	logger   *slog.Logger
}

// NewSessionManager creates a SessionManager. secure controls the cookie's
// Secure attribute and should be true in production.
func NewSessionManager(sessions repository.SessionRepository, ttl time.Duration, secure bool, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		sessions: sessions,
		ttl:      ttl,
		secure:   secure,
		now:      time.Now,
		logger:   logger,
	}
}

// CreateSession starts a new session for userID. The returned session is Fresh.
func (m *SessionManager) CreateSession(ctx context.Context, userID string) (*model.Session, error) {
	s := &model.Session{
		ID:        NewRandomToken(),
		UserID:    userID,
		ExpiresAt: m.now().Add(m.ttl).UTC(),
		Fresh:     true,
	}
	if err := m.sessions.CreateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("auth: creating session: %w", err)
	}
	return s, nil
}

// ValidateSession looks up sessionID. It returns an anonymous UserSession
// (and no error) when the id is unknown or expired; expired rows are
// deleted on the way.
func (m *SessionManager) ValidateSession(ctx context.Context, sessionID string) (UserSession, error) {
	if sessionID == "" {
		return UserSession{}, nil
	}

	s, u, err := m.sessions.GetSessionAndUser(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return UserSession{}, nil
		}
		return UserSession{}, fmt.Errorf("auth: validating session: %w", err)
	}

	now := m.now()
	if s.Expired(now) {
		if err := m.sessions.DeleteSession(ctx, s.ID); err != nil {
			m.logger.Warn("failed to delete expired session", slog.String("error", err.Error()))
		}
		return UserSession{}, nil
	}

	if s.ExpiresAt.Sub(now) < m.ttl/2 {
		newExpiry := now.Add(m.ttl).UTC()
		if err := m.sessions.UpdateSessionExpiry(ctx, s.ID, newExpiry); err != nil {
			return UserSession{}, fmt.Errorf("auth: extending session: %w", err)
		}
		s.ExpiresAt = newExpiry
		s.Fresh = true
	}

	return UserSession{User: u, Session: s}, nil
}

// Validate reads the session cookie from r, validates it, and keeps the
// cookie in step with the outcome:
//
//   - no cookie           → anonymous, no database call, no cookie change
//   - valid and fresh     → cookie re-sent with the same id
//   - invalid or expired  → blank cookie, so the browser drops it
//   - valid and not fresh → no cookie change
//
// Cookie writes never affect the result: w may be nil, and a cookie that
// cannot be written is logged and skipped. A storage error is logged and
// treated as anonymous without clearing the cookie.
func (m *SessionManager) Validate(ctx context.Context, w http.ResponseWriter, r *http.Request) UserSession {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return UserSession{}
	}

	us, err := m.ValidateSession(ctx, cookie.Value)
	if err != nil {
		m.logger.Error("session validation failed", slog.String("error", err.Error()))
		return UserSession{}
	}

	switch {
	case !us.Authenticated():
		m.writeCookie(w, m.BlankSessionCookie())
	case us.Session.Fresh:
		m.writeCookie(w, m.SessionCookie(us.Session.ID))
	}
	return us
}

// Invalidate ends a session. An empty id means there is no session to end.
func (m *SessionManager) Invalidate(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return apperror.Unauthorized()
	}
	if err := m.sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("auth: invalidating session: %w", err)
	}
	return nil
}

// DeleteExpired removes every expired session.
func (m *SessionManager) DeleteExpired(ctx context.Context) (int64, error) {
	n, err := m.sessions.DeleteExpiredSessions(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("auth: sweeping expired sessions: %w", err)
	}
	return n, nil
}

// SessionCookie returns the cookie that carries sessionID.
func (m *SessionManager) SessionCookie(sessionID string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   sessionCookieMaxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// BlankSessionCookie returns a cookie that deletes the session cookie.
func (m *SessionManager) BlankSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *SessionManager) writeCookie(w http.ResponseWriter, c *http.Cookie) {
	if w == nil {
		return
	}
	if err := c.Valid(); err != nil {
		m.logger.Warn("skipping session cookie write", slog.String("error", err.Error()))
		return
	}
	http.SetCookie(w, c)
}
