package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sakif/typing-flair/internal/apperror"
	"github.com/sakif/typing-flair/internal/metrics"
	"github.com/sakif/typing-flair/internal/model"
	"github.com/sakif/typing-flair/internal/reddit"
	"github.com/sakif/typing-flair/internal/repository"
)

const (
	// BotTokenKey is the cache key the bot access token lives under.
	BotTokenKey = "bot_token"

	// refreshThreshold is how close to expiry a cached token may get before
	// we stop handing it out.
	refreshThreshold = 10 * time.Minute

	// refreshTimeout bounds one password grant. The refresh is shared by
	// every waiting caller, so it does not inherit any one caller's
	// cancellation.
	refreshTimeout = 15 * time.Second

	unavailableMessage = "Failed to contact Reddit for authentication token. Please try again later."
)

// BotTokenFetcher issues new bot access tokens. *reddit.BotClient
// implements it.
type BotTokenFetcher interface {
	FetchToken(ctx context.Context) (*reddit.BotToken, error)
}

// BotTokenService hands out a bot access token that is valid for at least
// the next ten minutes.
//
// CACHE RULES:
//
//	entry absent                  → refresh
//	entry without an expiration   → refresh (treated as expired)
//	expiration - now < 10 minutes → refresh
//	otherwise                     → cached value
//
// Refreshes inside one process are collapsed with singleflight, so a burst
// of flair requests against a cold cache makes one password grant. Across
// processes the last writer wins; any of the tokens is valid.
type BotTokenService struct {
	cache   repository.TokenCache
	fetcher BotTokenFetcher
	group   singleflight.Group
	now     func() time.Time
	logger  *slog.Logger
}

// NewBotTokenService creates a BotTokenService.
func NewBotTokenService(cache repository.TokenCache, fetcher BotTokenFetcher, logger *slog.Logger) *BotTokenService {
	return &BotTokenService{
		cache:   cache,
		fetcher: fetcher,
		now:     time.Now,
		logger:  logger,
	}
}

// GetValidToken returns a usable bot token. When a refresh fails it returns
// an apperror.ErrUnavailable error and never the stale token.
func (s *BotTokenService) GetValidToken(ctx context.Context) (string, error) {
	cached, err := s.cache.GetToken(ctx, BotTokenKey)
	if err != nil {
		// A broken cache should not block flair updates; fall through to a refresh.
		s.logger.Warn("bot token cache read failed", slog.String("error", err.Error()))
		cached = nil
	}

	if s.usable(cached) {
		metrics.BotToken("hit")
		return cached.Value, nil
	}

	ch := s.group.DoChan(BotTokenKey, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refresh(rctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			metrics.BotToken("unavailable")
			return "", res.Err
		}
		metrics.BotToken("refreshed")
		return res.Val.(string), nil
	case <-ctx.Done():
		metrics.BotToken("unavailable")
		return "", apperror.Unavailable(unavailableMessage, ctx.Err())
	}
}

func (s *BotTokenService) usable(t *model.CachedToken) bool {
	if t == nil || t.Value == "" || t.Expiration == nil {
		return false
	}
	return t.Expiration.Sub(s.now()) >= refreshThreshold
}

func (s *BotTokenService) refresh(ctx context.Context) (string, error) {
	tok, err := s.fetcher.FetchToken(ctx)
	if err != nil {
		s.logger.Error("bot token refresh failed", slog.String("error", err.Error()))
		return "", apperror.Unavailable(unavailableMessage, err)
	}

	expiration := s.now().Add(tok.ExpiresIn)
	if err := s.cache.PutToken(ctx, BotTokenKey, model.CachedToken{
		Value:      tok.AccessToken,
		Expiration: &expiration,
	}); err != nil {
		// The token itself is good; the next request will simply refresh again.
		s.logger.Warn("bot token cache write failed", slog.String("error", err.Error()))
	}

	s.logger.Info("bot token refreshed", slog.Time("expires_at", expiration))
	return tok.AccessToken, nil
}
