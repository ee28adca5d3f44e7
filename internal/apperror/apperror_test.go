package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("user", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("flair", "Flair not specified"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized(),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "UpstreamAuth wraps ErrUpstreamAuth",
			err:       UpstreamAuth("code rejected", cause),
			target:    ErrUpstreamAuth,
			wantMatch: true,
		},
		{
			name:      "UpstreamAuth also exposes its cause",
			err:       UpstreamAuth("code rejected", cause),
			target:    cause,
			wantMatch: true,
		},
		{
			name:      "Unavailable survives fmt.Errorf wrapping",
			err:       fmt.Errorf("service/flair: %w", Unavailable("no token", nil)),
			target:    ErrUnavailable,
			wantMatch: true,
		},
		{
			name:      "UpstreamData does NOT match ErrUpstreamAuth",
			err:       UpstreamData("bad json", nil),
			target:    ErrUpstreamAuth,
			wantMatch: false,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("user", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("user", "abc123"),
			wantMessage: "user not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("ape_key", "Ape Key not specified"),
			wantMessage: "Ape Key not specified",
		},
		{
			name:        "Unauthorized has a fixed message",
			err:         Unauthorized(),
			wantMessage: "Unauthorized",
		},
		{
			name:        "cause is not part of the user-facing message",
			err:         UpstreamData("Failed to retrieve your Reddit profile.", errors.New("unexpected EOF")),
			wantMessage: "Failed to retrieve your Reddit profile.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", ValidationFailed("flair", "Flair not specified"))

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As() did not find *AppError in chain")
	}
	if appErr.Field != "flair" {
		t.Errorf("Field = %q, want %q", appErr.Field, "flair")
	}
}
