package model

import "time"

// Session is a server-side login session.
//
// The ID is the opaque value stored in the session cookie. Fresh is not
// persisted: it is set by the session manager when a session was just
// created or just had its expiry extended, and tells the caller to re-send
// the cookie.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Fresh     bool      `json:"fresh"`
}

// Expired reports whether the session is past its expiry at instant now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// CachedToken is a bot access token as kept in the shared token cache.
//
// Expiration is a pointer because the cache may hold a value without
// expiry metadata; such an entry must be treated as already expired.
type CachedToken struct {
	Value      string
	Expiration *time.Time
}
