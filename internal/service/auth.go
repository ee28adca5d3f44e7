// Package service holds the business logic of the flair site.
//
// Each service sits between the HTTP handlers and the storage / upstream
// clients:
//
//	AuthHandler    → AuthService    → UserRepository, SessionManager
//	AccountHandler → AccountService → UserRepository, Sealer
//	               → StatsService   → monkeytype.Client
//	               → FlairService   → BotTokenService → TokenCache, reddit.BotClient
//
// Services know nothing about HTTP. They return apperror values (or, for
// stats and flair, result structs carrying user-facing messages) and the
// handlers decide status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/typing-flair/internal/apperror"
	"github.com/sakif/typing-flair/internal/metrics"
	"github.com/sakif/typing-flair/internal/model"
	"github.com/sakif/typing-flair/internal/reddit"
	"github.com/sakif/typing-flair/internal/repository"
)

// SessionCreator starts login sessions. *auth.SessionManager implements it.
type SessionCreator interface {
	CreateSession(ctx context.Context, userID string) (*model.Session, error)
}

// AuthService handles the user side of the reddit OAuth callback.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users     repository.UserRepository → read/write user records
//   - sessions  SessionCreator            → issue server-side sessions
//   - logger    *slog.Logger              → structured logging
type AuthService struct {
	users    repository.UserRepository
	sessions SessionCreator
	logger   *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(users repository.UserRepository, sessions SessionCreator, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		logger:   logger,
	}
}

// AuthResult is returned by LoginOrRegisterReddit. It bundles the user and
// the new session so the handler can set the cookie and redirect in one step.
type AuthResult struct {
	User    *model.User
	Session *model.Session
	Created bool // true when this login created the user row
}

// LoginOrRegisterReddit runs steps 4 and 5 of the callback: find or create
// the local user for a reddit profile, then start a session.
//
// LOOKUP, NOT UPSERT:
// reddit_username is matched exactly. A miss inserts a new row with an xid
// id. A hit refreshes the snoovatar when reddit reports a different one;
// that refresh is best-effort and only logged on failure.
//
// Persistence failures come back as apperror.Internal with a message
// naming the step: "Failed to look up user", "Failed to create new user"
// or "Failed to create session". The handler reports them as 500.
func (s *AuthService) LoginOrRegisterReddit(ctx context.Context, ru *reddit.User) (*AuthResult, error) {
	if ru == nil || ru.Name == "" {
		return nil, apperror.UpstreamData("Failed to retrieve your Reddit profile. Please try again.", nil)
	}

	avatar := ru.Avatar()
	created := false

	user, err := s.users.GetByRedditUsername(ctx, ru.Name)
	switch {
	case err == nil:
		if user.RedditSnoovatar != avatar {
			if err := s.users.UpdateSnoovatar(ctx, user.ID, avatar); err != nil {
				s.logger.Warn("failed to refresh snoovatar",
					slog.String("userID", user.ID),
					slog.String("error", err.Error()),
				)
			} else {
				user.RedditSnoovatar = avatar
			}
		}

	case errors.Is(err, apperror.ErrNotFound):
		user = &model.User{RedditUsername: ru.Name, RedditSnoovatar: avatar}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, apperror.Internal("Failed to create new user", err)
		}
		created = true

	default:
		return nil, apperror.Internal("Failed to look up user", err)
	}

	session, err := s.sessions.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, apperror.Internal("Failed to create session", err)
	}

	metrics.Login(created)
	s.logger.Info("user authenticated via reddit",
		slog.String("userID", user.ID),
		slog.String("username", user.RedditUsername),
		slog.Bool("created", created),
	)

	return &AuthResult{User: user, Session: session, Created: created}, nil
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized()
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}
