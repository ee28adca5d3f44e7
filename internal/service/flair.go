package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/typing-flair/internal/apperror"
	"github.com/sakif/typing-flair/internal/metrics"
	"github.com/sakif/typing-flair/internal/reddit"
)

// User-facing flair messages.
const (
	msgFlairMissing   = "Flair not specified"
	msgBotTokenFailed = "Failed to contact Reddit for authentication token. Please try again later."
	msgFlairFailed    = "Failed to update your flair via Reddit. Please try again later."
	msgFlairSucceeded = "Successfully updated your flair! Feel free to go check."
)

// FlairResult is what the flair page shows. Exactly one field is set.
type FlairResult struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failed reports whether the flair change did not go through.
func (r FlairResult) Failed() bool { return r.Error != "" }

// FlairSetter is the reddit call FlairService needs. *reddit.BotClient
// implements it.
type FlairSetter interface {
	SetFlair(ctx context.Context, accessToken, username, text string) error
}

// FlairService sets a user's subreddit flair through the bot account.
type FlairService struct {
	tokens *BotTokenService
	setter FlairSetter
	logger *slog.Logger
}

// NewFlairService creates a FlairService.
func NewFlairService(tokens *BotTokenService, setter FlairSetter, logger *slog.Logger) *FlairService {
	return &FlairService{tokens: tokens, setter: setter, logger: logger}
}

// SetFlair sets username's flair to flair. Failures are reported in the
// result, never as a Go error; the caller renders the result as-is.
func (s *FlairService) SetFlair(ctx context.Context, username, flair string) FlairResult {
	flair = strings.TrimSpace(flair)
	if err := validateFlair(flair); err != nil {
		return FlairResult{Error: err.Message}
	}

	token, err := s.tokens.GetValidToken(ctx)
	if err != nil {
		return FlairResult{Error: msgBotTokenFailed}
	}

	if err := s.setter.SetFlair(ctx, token, username, flair); err != nil {
		metrics.Upstream("set_flair", "error")
		s.logger.Error("setting flair failed",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return FlairResult{Error: msgFlairFailed}
	}

	metrics.Upstream("set_flair", "ok")
	s.logger.Info("flair updated", slog.String("username", username))
	return FlairResult{Message: msgFlairSucceeded}
}

func validateFlair(flair string) *apperror.AppError {
	if flair == "" {
		return apperror.ValidationFailed("flair", msgFlairMissing)
	}
	if utf8.RuneCountInString(flair) > reddit.MaxFlairLength {
		return apperror.ValidationFailed("flair",
			fmt.Sprintf("Flair must be at most %d characters", reddit.MaxFlairLength))
	}
	return nil
}
