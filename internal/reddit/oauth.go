package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/sakif/typing-flair/internal/apperror"
)

// profileErrorMessage is shown when reddit's /api/v1/me answer cannot be used.
const profileErrorMessage = "Failed to retrieve your Reddit profile. Please try again."

// User is the portion of reddit's /api/v1/me response we care about.
type User struct {
	Name         string `json:"name"`
	IconImg      string `json:"icon_img"`
	SnoovatarImg string `json:"snoovatar_img"`
}

// Avatar returns the snoovatar when the user has one, else the profile icon.
// reddit HTML-escapes the query string of icon_img ("&amp;").
func (u *User) Avatar() string {
	if u.SnoovatarImg != "" {
		return u.SnoovatarImg
	}
	return html.UnescapeString(u.IconImg)
}

// ProviderConfig configures the end-user login flow.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	APIURL       string // e.g. https://oauth.reddit.com
	HTTPClient   *http.Client
}

// Provider wraps golang.org/x/oauth2 for reddit's Authorization Code flow.
//
// FLOW:
//  1. AuthURL builds the authorize URL the browser is redirected to.
//  2. reddit redirects back to RedirectURI with ?code&state.
//  3. Exchange trades the code for an access token (server to server,
//     authenticated with HTTP Basic client credentials).
//  4. FetchProfile calls /api/v1/me with that token.
type Provider struct {
	config *oauth2.Config
	apiURL string
	client *http.Client
}

// NewProvider creates a Provider. Scopes requested:
//   - "identity" to read /api/v1/me
//   - "flair" so the grant covers flair selection
func NewProvider(cfg ProviderConfig) *Provider {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"identity", "flair"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		client: client,
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
// duration=permanent asks reddit for a long-lived grant.
func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("duration", "permanent"))
}

// Exchange trades an authorization code for an access token.
//
// Every failure here (reddit rejecting the code, or reddit being
// unreachable) is an upstream auth error.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.UpstreamAuth("Reddit rejected the login attempt. Please try again.",
			fmt.Errorf("reddit: exchanging OAuth code: %w", err))
	}
	return tok, nil
}

// FetchProfile calls /api/v1/me with the user's bearer token.
//
// A non-2xx answer is reddit refusing our token: upstream auth error.
// A 2xx answer we cannot decode (or without a name) is upstream data error.
func (p *Provider) FetchProfile(ctx context.Context, tok *oauth2.Token) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"/api/v1/me", nil)
	if err != nil {
		return nil, fmt.Errorf("reddit: building /api/v1/me request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	// oauth2.Config.Client adds "Authorization: Bearer <token>" to every
	// request. Its transport wraps the one found under oauth2.HTTPClient,
	// so the User-Agent stays on.
	client := p.config.Client(context.WithValue(ctx, oauth2.HTTPClient, p.client), tok)

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperror.UpstreamAuth(profileErrorMessage,
			fmt.Errorf("reddit: calling /api/v1/me: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperror.UpstreamAuth(profileErrorMessage,
			fmt.Errorf("reddit: /api/v1/me returned status %d", resp.StatusCode))
	}

	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, apperror.UpstreamData(profileErrorMessage,
			fmt.Errorf("reddit: decoding /api/v1/me response: %w", err))
	}
	if u.Name == "" {
		return nil, apperror.UpstreamData(profileErrorMessage,
			fmt.Errorf("reddit: /api/v1/me returned no name"))
	}

	return &u, nil
}
