// Package monkeytype is a small client for the MonkeyType public API.
//
// Requests are authenticated with a user-supplied Ape Key sent as
// "Authorization: ApeKey <key>". MonkeyType uses two non-standard status
// codes for key problems: 470 (invalid key) and 471 (inactive key).
package monkeytype

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sakif/typing-flair/internal/model"
)

const (
	StatusInvalidKey  = 470
	StatusInactiveKey = 471
)

var (
	ErrInvalidKey  = errors.New("monkeytype: ape key invalid")
	ErrInactiveKey = errors.New("monkeytype: ape key inactive")
)

// APIError is any other non-2xx answer. Message is MonkeyType's own
// "message" field when present, else the HTTP status text.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("monkeytype: status %d: %s", e.StatusCode, e.Message)
}

// envelope is the shape of every MonkeyType response.
type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client calls the MonkeyType API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for baseURL (e.g. https://api.monkeytype.com).
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// PersonalBests returns the user's time-mode personal bests keyed by test
// duration in seconds.
func (c *Client) PersonalBests(ctx context.Context, apeKey string) (model.StatsBundle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/users/personalBests?mode=time", nil)
	if err != nil {
		return nil, fmt.Errorf("monkeytype: building request: %w", err)
	}
	req.Header.Set("Authorization", "ApeKey "+apeKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("monkeytype: calling personalBests: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("monkeytype: reading response: %w", err)
	}

	switch {
	case resp.StatusCode == StatusInvalidKey:
		return nil, ErrInvalidKey
	case resp.StatusCode == StatusInactiveKey:
		return nil, ErrInactiveKey
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg := http.StatusText(resp.StatusCode)
		var env envelope
		if json.Unmarshal(body, &env) == nil && env.Message != "" {
			msg = env.Message
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("monkeytype: decoding response: %w", err)
	}

	// A user with no results gets "data": null.
	bundle := model.StatsBundle{}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &bundle); err != nil {
			return nil, fmt.Errorf("monkeytype: decoding personal bests: %w", err)
		}
	}
	return bundle, nil
}
