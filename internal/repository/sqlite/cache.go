package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/typing-flair/internal/model"
	"github.com/sakif/typing-flair/internal/repository"
)

var _ repository.TokenCache = (*DB)(nil)

// GetToken reads a cached token. A NULL expiration comes back as a nil
// Expiration so the caller can treat it as expired.
func (db *DB) GetToken(ctx context.Context, key string) (*model.CachedToken, error) {
	var (
		value      string
		expiration sql.NullInt64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT value, expiration FROM token_cache WHERE key = ?`, key,
	).Scan(&value, &expiration)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: reading cached token %q: %w", key, err)
	}

	tok := &model.CachedToken{Value: value}
	if expiration.Valid {
		exp := time.UnixMilli(expiration.Int64).UTC()
		tok.Expiration = &exp
	}
	return tok, nil
}

// PutToken stores or replaces a cached token. Last writer wins.
func (db *DB) PutToken(ctx context.Context, key string, token model.CachedToken) error {
	var expiration sql.NullInt64
	if token.Expiration != nil {
		expiration = sql.NullInt64{Int64: token.Expiration.UnixMilli(), Valid: true}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO token_cache (key, value, expiration) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expiration = excluded.expiration`,
		key, token.Value, expiration,
	)
	if err != nil {
		return fmt.Errorf("sqlite: writing cached token %q: %w", key, err)
	}
	return nil
}
