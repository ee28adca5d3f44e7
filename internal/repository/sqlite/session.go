package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/typing-flair/internal/apperror"
	"github.com/sakif/typing-flair/internal/model"
	"github.com/sakif/typing-flair/internal/repository"
)

var _ repository.SessionRepository = (*DB)(nil)

// CreateSession inserts a session row. The caller generates the ID.
func (db *DB) CreateSession(ctx context.Context, session *model.Session) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)`,
		session.ID,
		session.UserID,
		session.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting session for user %s: %w", session.UserID, err)
	}
	return nil
}

// GetSessionAndUser loads a session together with its owner in one query.
func (db *DB) GetSessionAndUser(ctx context.Context, sessionID string) (*model.Session, *model.User, error) {
	var (
		s         model.Session
		expiresAt int64
		u         model.User
		apeKey    sql.NullString
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT s.id, s.user_id, s.expires_at,
		        u.id, u.reddit_username, u.reddit_snoovatar, u.monkeytype_apekey, u.created_at, u.updated_at
		 FROM sessions s
		 INNER JOIN users u ON u.id = s.user_id
		 WHERE s.id = ?`,
		sessionID,
	).Scan(
		&s.ID, &s.UserID, &expiresAt,
		&u.ID, &u.RedditUsername, &u.RedditSnoovatar, &apeKey, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, apperror.NotFound("session", "(redacted)")
		}
		return nil, nil, fmt.Errorf("sqlite: getting session: %w", err)
	}

	s.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	if apeKey.Valid {
		u.ApeKey = &apeKey.String
	}
	return &s, &u, nil
}

// UpdateSessionExpiry moves a session's expiry.
func (db *DB) UpdateSessionExpiry(ctx context.Context, sessionID string, expiresAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ? WHERE id = ?`,
		expiresAt.UnixMilli(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating session expiry: %w", err)
	}
	return nil
}

// DeleteSession removes a session. Deleting an unknown id is not an error.
func (db *DB) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes every session that expired at or before now
// and returns how many were removed.
func (db *DB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting expired sessions: %w", err)
	}
	return res.RowsAffected()
}
