// Package reddit talks to reddit's OAuth and API endpoints.
//
// Two identities are involved:
//   - Provider runs the authorization code flow for end users logging in.
//   - BotClient authenticates as a "script" app on the bot account and sets
//     flairs on the subreddit.
//
// reddit rejects requests without a descriptive User-Agent, so every call
// (including the oauth2 token requests) goes through an *http.Client whose
// transport sets one.
package reddit

import (
	"net/http"
	"time"
)

type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}

// NewHTTPClient returns an *http.Client that stamps userAgent on every
// request. base may be nil, in which case http.DefaultTransport is used.
func NewHTTPClient(userAgent string, timeout time.Duration, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{userAgent: userAgent, base: base},
	}
}
