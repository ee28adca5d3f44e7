// Package repository declares the storage interfaces the services depend on.
//
// Implementations live in sub-packages: sqlite (users, sessions, and a
// token-cache fallback) and redis (the shared token cache).
package repository

import (
	"context"
	"time"

	"github.com/sakif/typing-flair/internal/model"
)

// UserRepository persists reddit-linked user records.
type UserRepository interface {
	// Create inserts a new user and fills in ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// GetByRedditUsername is an exact-match lookup. Returns apperror.ErrNotFound
	// when no row matches.
	GetByRedditUsername(ctx context.Context, username string) (*model.User, error)
	UpdateSnoovatar(ctx context.Context, id, snoovatar string) error
	// SetApeKey stores key for the user; a nil key clears the column.
	SetApeKey(ctx context.Context, id string, key *string) error
}

// SessionRepository persists login sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session) error
	// GetSessionAndUser returns apperror.ErrNotFound when the session id is unknown.
	GetSessionAndUser(ctx context.Context, sessionID string) (*model.Session, *model.User, error)
	UpdateSessionExpiry(ctx context.Context, sessionID string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// TokenCache is a key-value store shared by every request (and every
// process) that holds short-lived credentials.
type TokenCache interface {
	// GetToken returns (nil, nil) when the key is absent.
	GetToken(ctx context.Context, key string) (*model.CachedToken, error)
	PutToken(ctx context.Context, key string, token model.CachedToken) error
}
