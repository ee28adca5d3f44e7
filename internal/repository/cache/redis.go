// Package cache implements repository.TokenCache on Redis so a cached bot
// token is shared by every server instance.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/typing-flair/internal/model"
	"github.com/sakif/typing-flair/internal/repository"
)

// RedisTokenCache stores tokens as JSON documents:
//
//	{"value": "<token>", "metadata": {"expiration": <epoch millis>}}
type RedisTokenCache struct {
	client redis.UniversalClient
	prefix string
}

var _ repository.TokenCache = (*RedisTokenCache)(nil)

type entry struct {
	Value    string         `json:"value"`
	Metadata *entryMetadata `json:"metadata,omitempty"`
}

type entryMetadata struct {
	Expiration *int64 `json:"expiration,omitempty"`
}

// NewRedisTokenCache constructs a Redis-backed token cache. Keys are stored
// under prefix (e.g. "typing-flair:") so the database can be shared.
func NewRedisTokenCache(client redis.UniversalClient, prefix string) *RedisTokenCache {
	return &RedisTokenCache{client: client, prefix: prefix}
}

// GetToken loads and decodes the entry stored under key.
func (c *RedisTokenCache) GetToken(ctx context.Context, key string) (*model.CachedToken, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache: load %q: %w", key, err)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("cache: decode %q: %w", key, err)
	}
	if e.Value == "" {
		return nil, nil
	}

	tok := &model.CachedToken{Value: e.Value}
	if e.Metadata != nil && e.Metadata.Expiration != nil {
		exp := time.UnixMilli(*e.Metadata.Expiration).UTC()
		tok.Expiration = &exp
	}
	return tok, nil
}

// PutToken stores the entry. When the token carries an expiration the key
// also gets a redis TTL, so dead tokens do not linger.
func (c *RedisTokenCache) PutToken(ctx context.Context, key string, token model.CachedToken) error {
	e := entry{Value: token.Value}
	var ttl time.Duration
	if token.Expiration != nil {
		ms := token.Expiration.UnixMilli()
		e.Metadata = &entryMetadata{Expiration: &ms}
		ttl = time.Until(*token.Expiration)
		if ttl <= 0 {
			// Already expired; keep it briefly rather than passing a
			// negative TTL, which redis would reject.
			ttl = time.Second
		}
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}
	if err := c.client.Set(ctx, c.prefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache: persist %q: %w", key, err)
	}
	return nil
}
