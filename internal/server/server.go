// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and
// routes, and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and passes it here. New() creates:
//
//	sqlite.DB ──────────────┬─→ SessionManager ─→ AuthService ─→ AuthHandler
//	                        └─→ AccountService ─┐
//	monkeytype.Client ─────────→ StatsService ──┼─→ AccountHandler
//	TokenCache (redis|sqlite) ─→ BotTokenService → FlairService ┘
//	reddit.Provider / reddit.BotClient (shared User-Agent HTTP client)
//
// This is the "composition root" pattern: all dependencies are wired in one
// place, rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/typing-flair/internal/auth"
	"github.com/sakif/typing-flair/internal/config"
	"github.com/sakif/typing-flair/internal/handler"
	"github.com/sakif/typing-flair/internal/metrics"
	"github.com/sakif/typing-flair/internal/middleware"
	"github.com/sakif/typing-flair/internal/monkeytype"
	"github.com/sakif/typing-flair/internal/reddit"
	"github.com/sakif/typing-flair/internal/repository"
	"github.com/sakif/typing-flair/internal/repository/cache"
	sqliteRepo "github.com/sakif/typing-flair/internal/repository/sqlite"
	"github.com/sakif/typing-flair/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and, when configured, the redis
// client. Both are closed by Close, which Start calls on shutdown.
type Server struct {
	router   *chi.Mux
	config   config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	redis    *redis.Client // nil when the sqlite token cache is used
	sessions *auth.SessionManager
}

// New creates a Server from cfg.
//
// IMPORT ALIAS:
// We import repository/sqlite as `sqliteRepo` to avoid confusion with the
// sqlite driver package.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// tokenCache picks the shared store for the bot token. With REDIS_ADDR set
// every instance shares one token through redis; otherwise the token lives
// in the sqlite token_cache table.
func (s *Server) tokenCache() (repository.TokenCache, error) {
	if s.config.RedisAddr == "" {
		s.logger.Info("bot token cache: sqlite")
		return s.db, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     s.config.RedisAddr,
		Password: s.config.RedisPassword,
		DB:       s.config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", s.config.RedisAddr, err)
	}

	s.redis = client
	s.logger.Info("bot token cache: redis", slog.String("addr", s.config.RedisAddr))
	return cache.NewRedisTokenCache(client, s.config.RedisKeyPrefix), nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /                → home page (HTML)
// GET    /login           → redirect to reddit
// GET    /callback        → OAuth callback
// POST   /logout          → end session                       [session]
// POST   /apekey          → store Ape Key                     [session]
// POST   /apekey/delete   → remove Ape Key                    [session]
// POST   /flair           → set flair, re-render home         [session]
// GET    /api/me          → current user (JSON)               [session]
// GET    /api/stats       → personal bests + flair choices    [session]
// POST   /api/flair       → set flair (JSON)                  [session]
// GET    /healthz         → liveness
// GET    /metrics         → Prometheus
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (for tracing)
// 2. RealIP: extracts the real client IP from proxy headers
// 3. Logger: logs each request with timing info and records metrics
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. LoadSession: validates the session cookie (routes below only)
func (s *Server) setupRoutes() error {
	cfg := s.config

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})
	s.router.Handle("/metrics", metrics.Handler())

	// === Upstream clients ===
	// One User-Agent-stamping client for reddit, one for MonkeyType.
	redditHTTP := reddit.NewHTTPClient(cfg.UserAgent, cfg.HTTPTimeout, nil)
	monkeytypeHTTP := &http.Client{Timeout: cfg.HTTPTimeout}

	provider := reddit.NewProvider(reddit.ProviderConfig{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		RedirectURI:  cfg.RedditRedirectURI,
		AuthURL:      cfg.RedditAuthURL,
		TokenURL:     cfg.RedditTokenURL,
		APIURL:       cfg.RedditAPIURL,
		HTTPClient:   redditHTTP,
	})
	bot := reddit.NewBotClient(reddit.BotConfig{
		ClientID:     cfg.BotClientID,
		ClientSecret: cfg.BotClientSecret,
		Username:     cfg.BotUsername,
		Password:     cfg.BotPassword,
		TokenURL:     cfg.RedditTokenURL,
		APIURL:       cfg.RedditAPIURL,
		Subreddit:    cfg.Subreddit,
		HTTPClient:   redditHTTP,
	})
	mt := monkeytype.NewClient(cfg.MonkeytypeURL, monkeytypeHTTP)

	tokenCache, err := s.tokenCache()
	if err != nil {
		return err
	}

	sealer, err := auth.NewSealer(cfg.ApeKeySecret)
	if err != nil {
		return fmt.Errorf("creating ape key sealer: %w", err)
	}

	// === Services ===
	// The handler never touches the database directly, and the services
	// never touch HTTP.
	s.sessions = auth.NewSessionManager(s.db, cfg.SessionTTL, cfg.Production(), s.logger)
	authService := service.NewAuthService(s.db, s.sessions, s.logger)
	accountService := service.NewAccountService(s.db, sealer, s.logger)
	statsService := service.NewStatsService(mt, s.logger)
	tokenService := service.NewBotTokenService(tokenCache, bot, s.logger)
	flairService := service.NewFlairService(tokenService, bot, s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(provider, authService, s.sessions, cfg.Production(), s.logger)
	accountHandler, err := handler.NewAccountHandler(accountService, statsService, flairService, cfg.Subreddit, s.logger)
	if err != nil {
		return fmt.Errorf("creating account handler: %w", err)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(auth.LoadSession(s.sessions))

		r.Get("/", accountHandler.HandleHome)
		r.Get("/login", authHandler.HandleLogin)
		r.Get("/callback", authHandler.HandleCallback)

		// Logout answers 401 itself when there is no session.
		r.Post("/logout", authHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession)

			r.Post("/apekey", accountHandler.HandleSetApeKey)
			r.Post("/apekey/delete", accountHandler.HandleDeleteApeKey)
			r.Post("/flair", accountHandler.HandleSetFlair)

			r.Route("/api", func(r chi.Router) {
				r.Get("/me", accountHandler.HandleMe)
				r.Get("/stats", accountHandler.HandleStats)
				r.Post("/flair", accountHandler.HandleAPIFlair)
			})
		})
	})

	return nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SweepExpiredSessions deletes every session past its expiry. main runs it
// once at startup.
func (s *Server) SweepExpiredSessions(ctx context.Context) {
	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		s.logger.Warn("expired session sweep failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("expired sessions removed", slog.Int64("count", n))
}

// Close releases the database and redis connections.
func (s *Server) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// Start starts the HTTP server and handles graceful shutdown:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database (flushes WAL, releases file lock) and redis
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.Environment),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
