// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values. It is built once in main
// and passed down explicitly; nothing below cmd/ reads the environment.
type Config struct {
	Environment string
	Port        int
	DBPath      string

	// Reddit app used for user login (authorization code flow).
	RedditClientID     string
	RedditClientSecret string
	RedditRedirectURI  string

	// Reddit "script" app + account used to set flairs.
	BotClientID     string
	BotClientSecret string
	BotUsername     string
	BotPassword     string

	Subreddit      string
	UserAgent      string
	RedditAuthURL  string
	RedditTokenURL string
	RedditAPIURL   string
	MonkeytypeURL  string
	HTTPTimeout    time.Duration
	SessionTTL     time.Duration
	ApeKeySecret   string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
}

// Production reports whether cookies should be marked Secure.
func (c Config) Production() bool {
	return c.Environment == "production"
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:        getEnv("APP_ENV", "development"),
		Port:               getInt("PORT", 8080),
		DBPath:             getEnv("DB_PATH", "data/flair.db"),
		RedditClientID:     strings.TrimSpace(os.Getenv("REDDIT_CLIENT_ID")),
		RedditClientSecret: strings.TrimSpace(os.Getenv("REDDIT_CLIENT_SECRET")),
		RedditRedirectURI:  strings.TrimSpace(os.Getenv("REDDIT_REDIRECT_URI")),
		BotClientID:        strings.TrimSpace(os.Getenv("REDDIT_BOT_CLIENT_ID")),
		BotClientSecret:    strings.TrimSpace(os.Getenv("REDDIT_BOT_CLIENT_SECRET")),
		BotUsername:        strings.TrimSpace(os.Getenv("REDDIT_BOT_USERNAME")),
		BotPassword:        os.Getenv("REDDIT_BOT_PASSWORD"),
		Subreddit:          getEnv("REDDIT_SUBREDDIT", "typing"),
		UserAgent:          getEnv("REDDIT_USER_AGENT", "RTypingBot/1.0 by u/simpleauthority"),
		RedditAuthURL:      getEnv("REDDIT_AUTH_URL", "https://www.reddit.com/api/v1/authorize"),
		RedditTokenURL:     getEnv("REDDIT_TOKEN_URL", "https://www.reddit.com/api/v1/access_token"),
		RedditAPIURL:       getEnv("REDDIT_API_URL", "https://oauth.reddit.com"),
		MonkeytypeURL:      getEnv("MONKEYTYPE_API_URL", "https://api.monkeytype.com"),
		HTTPTimeout:        getDuration("HTTP_TIMEOUT", 10*time.Second),
		SessionTTL:         getDuration("SESSION_TTL", 30*24*time.Hour),
		ApeKeySecret:       os.Getenv("APEKEY_SECRET"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getInt("REDIS_DB", 0),
		RedisKeyPrefix:     getEnv("REDIS_KEY_PREFIX", "typing-flair:"),
	}

	required := []struct{ name, value string }{
		{"REDDIT_CLIENT_ID", cfg.RedditClientID},
		{"REDDIT_CLIENT_SECRET", cfg.RedditClientSecret},
		{"REDDIT_REDIRECT_URI", cfg.RedditRedirectURI},
		{"REDDIT_BOT_CLIENT_ID", cfg.BotClientID},
		{"REDDIT_BOT_CLIENT_SECRET", cfg.BotClientSecret},
		{"REDDIT_BOT_USERNAME", cfg.BotUsername},
		{"REDDIT_BOT_PASSWORD", cfg.BotPassword},
		{"APEKEY_SECRET", cfg.ApeKeySecret},
	}
	for _, r := range required {
		if r.value == "" {
			return Config{}, fmt.Errorf("%s is required", r.name)
		}
	}

	if len(cfg.ApeKeySecret) < 16 {
		return Config{}, fmt.Errorf("APEKEY_SECRET must be at least 16 characters")
	}
	if cfg.SessionTTL < time.Hour {
		return Config{}, fmt.Errorf("SESSION_TTL must be at least 1h")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
