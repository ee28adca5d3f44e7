package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/sakif/typing-flair/internal/model"
)

func TestTokenCache_Missing(t *testing.T) {
	db := newTestDB(t)

	tok, err := db.GetToken(context.Background(), "bot_token")
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if tok != nil {
		t.Errorf("GetToken() = %+v, want nil for a missing key", tok)
	}
}

func TestTokenCache_PutOverwrites(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := time.Now().Add(time.Hour).Truncate(time.Millisecond).UTC()
	second := first.Add(time.Hour)

	if err := db.PutToken(ctx, "bot_token", model.CachedToken{Value: "one", Expiration: &first}); err != nil {
		t.Fatalf("PutToken() error = %v", err)
	}
	if err := db.PutToken(ctx, "bot_token", model.CachedToken{Value: "two", Expiration: &second}); err != nil {
		t.Fatalf("PutToken() error = %v", err)
	}

	tok, err := db.GetToken(ctx, "bot_token")
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if tok.Value != "two" {
		t.Errorf("Value = %q, want %q", tok.Value, "two")
	}
	if tok.Expiration == nil || !tok.Expiration.Equal(second) {
		t.Errorf("Expiration = %v, want %v", tok.Expiration, second)
	}
}

func TestTokenCache_NoExpiration(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.PutToken(ctx, "bot_token", model.CachedToken{Value: "bare"}); err != nil {
		t.Fatalf("PutToken() error = %v", err)
	}

	tok, err := db.GetToken(ctx, "bot_token")
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if tok.Expiration != nil {
		t.Errorf("Expiration = %v, want nil", tok.Expiration)
	}
}
