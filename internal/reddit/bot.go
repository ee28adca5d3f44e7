package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// MaxFlairLength is reddit's limit on user flair text.
const MaxFlairLength = 64

// BotConfig configures the bot identity used to set flairs.
type BotConfig struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	TokenURL     string
	APIURL       string
	Subreddit    string
	HTTPClient   *http.Client
}

// BotToken is a freshly issued bot access token.
type BotToken struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// BotClient authenticates as the bot account and manages flair on one
// subreddit.
type BotClient struct {
	oauth     *oauth2.Config
	username  string
	password  string
	apiURL    string
	subreddit string
	client    *http.Client
}

// NewBotClient creates a BotClient.
func NewBotClient(cfg BotConfig) *BotClient {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &BotClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		username:  cfg.Username,
		password:  cfg.Password,
		apiURL:    strings.TrimRight(cfg.APIURL, "/"),
		subreddit: cfg.Subreddit,
		client:    client,
	}
}

// FetchToken performs a password grant for the bot account.
//
// reddit script apps use grant_type=password with the app's client
// credentials in an HTTP Basic header.
func (b *BotClient) FetchToken(ctx context.Context) (*BotToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.client)

	tok, err := b.oauth.PasswordCredentialsToken(ctx, b.username, b.password)
	if err != nil {
		return nil, fmt.Errorf("reddit: bot password grant: %w", err)
	}

	expiresIn := time.Duration(tok.ExpiresIn) * time.Second
	if expiresIn <= 0 && !tok.Expiry.IsZero() {
		expiresIn = time.Until(tok.Expiry)
	}

	return &BotToken{AccessToken: tok.AccessToken, ExpiresIn: expiresIn}, nil
}

// flairResponse is reddit's api_type=json envelope. reddit answers 200
// even when it refuses the change, listing the reasons in json.errors.
type flairResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
	} `json:"json"`
}

// SetFlair sets username's flair text on the configured subreddit.
func (b *BotClient) SetFlair(ctx context.Context, accessToken, username, text string) error {
	q := url.Values{}
	q.Set("api_type", "json")
	q.Set("name", username)
	q.Set("text", text)
	endpoint := fmt.Sprintf("%s/r/%s/api/flair?%s", b.apiURL, url.PathEscape(b.subreddit), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("reddit: building flair request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("reddit: calling flair endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reddit: reading flair response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("reddit: flair endpoint returned status %d", resp.StatusCode)
	}

	var fr flairResponse
	if len(body) > 0 && json.Unmarshal(body, &fr) == nil && len(fr.JSON.Errors) > 0 {
		return fmt.Errorf("reddit: flair rejected: %v", fr.JSON.Errors)
	}

	return nil
}

// IsRetrieveError reports whether err came from the token endpoint
// rejecting a request (as opposed to a transport failure).
func IsRetrieveError(err error) bool {
	var re *oauth2.RetrieveError
	return errors.As(err, &re)
}
