package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/typing-flair/internal/apperror"
	"github.com/sakif/typing-flair/internal/model"
	"github.com/sakif/typing-flair/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, reddit_username, reddit_snoovatar, monkeytype_apekey, created_at, updated_at`

// Create inserts a new user. The ID is always generated here, so a new
// user can never inherit the id of an existing row.
//
// A second insert with the same reddit_username violates the UNIQUE
// constraint and returns an error.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, reddit_username, reddit_snoovatar, monkeytype_apekey, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.RedditUsername,
		user.RedditSnoovatar,
		nullString(user.ApeKey),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user %q: %w", user.RedditUsername, err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetByRedditUsername looks a user up by exact reddit username.
func (db *DB) GetByRedditUsername(ctx context.Context, username string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE reddit_username = ?`, username)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user by reddit username %q: %w", username, err)
	}
	return u, nil
}

// UpdateSnoovatar refreshes the avatar URL reddit reported on the latest login.
func (db *DB) UpdateSnoovatar(ctx context.Context, id, snoovatar string) error {
	return db.updateUser(ctx, id,
		`UPDATE users SET reddit_snoovatar = ?, updated_at = ? WHERE id = ?`,
		snoovatar)
}

// SetApeKey stores (or, with a nil key, removes) the user's MonkeyType Ape Key.
func (db *DB) SetApeKey(ctx context.Context, id string, key *string) error {
	return db.updateUser(ctx, id,
		`UPDATE users SET monkeytype_apekey = ?, updated_at = ? WHERE id = ?`,
		nullString(key))
}

// updateUser runs a single-column UPDATE and reports ErrNotFound when no
// row matched.
func (db *DB) updateUser(ctx context.Context, id, query string, value any) error {
	res, err := db.conn.ExecContext(ctx, query, value, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u      model.User
		apeKey sql.NullString
	)
	if err := row.Scan(
		&u.ID,
		&u.RedditUsername,
		&u.RedditSnoovatar,
		&apeKey,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if apeKey.Valid {
		u.ApeKey = &apeKey.String
	}
	return &u, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
