package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/typing-flair/internal/apperror"
	"github.com/sakif/typing-flair/internal/repository"
)

// KeySealer encrypts secrets before they reach the database.
// *auth.Sealer implements it.
type KeySealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// AccountService manages the MonkeyType Ape Key linked to a user.
type AccountService struct {
	users  repository.UserRepository
	sealer KeySealer
	logger *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(users repository.UserRepository, sealer KeySealer, logger *slog.Logger) *AccountService {
	return &AccountService{users: users, sealer: sealer, logger: logger}
}

// SetApeKey stores key for the user, replacing any previous key. The key is
// sealed before it is written.
func (s *AccountService) SetApeKey(ctx context.Context, userID, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return apperror.ValidationFailed("ape_key", "Ape Key not specified")
	}

	sealed, err := s.sealer.Seal(key)
	if err != nil {
		return apperror.Internal("Failed to store your Ape Key", err)
	}
	if err := s.users.SetApeKey(ctx, userID, &sealed); err != nil {
		return fmt.Errorf("service/account: setting ape key for %s: %w", userID, err)
	}

	s.logger.Info("ape key updated", slog.String("user_id", userID))
	return nil
}

// ClearApeKey removes the user's key.
func (s *AccountService) ClearApeKey(ctx context.Context, userID string) error {
	if err := s.users.SetApeKey(ctx, userID, nil); err != nil {
		return fmt.Errorf("service/account: clearing ape key for %s: %w", userID, err)
	}
	s.logger.Info("ape key removed", slog.String("user_id", userID))
	return nil
}

// ApeKey returns the user's key in plain text, or "" when none is stored.
func (s *AccountService) ApeKey(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("service/account: loading ape key for %s: %w", userID, err)
	}
	if !user.HasApeKey() {
		return "", nil
	}

	key, err := s.sealer.Open(*user.ApeKey)
	if err != nil {
		// Sealed under a different APEKEY_SECRET; the user has to enter it again.
		s.logger.Warn("stored ape key could not be opened",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return "", nil
	}
	return key, nil
}
