package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/typing-flair/internal/auth"
	"github.com/sakif/typing-flair/internal/model"
	"github.com/sakif/typing-flair/internal/monkeytype"
	"github.com/sakif/typing-flair/internal/reddit"
	sqliteRepo "github.com/sakif/typing-flair/internal/repository/sqlite"
	"github.com/sakif/typing-flair/internal/service"
)

// =========================================================================
// TEST ENVIRONMENT
// =========================================================================
//
// Handlers are tested against real services, a real in-memory sqlite
// database, and httptest servers standing in for reddit and MonkeyType.
// Only the upstream answers are scripted.

const testSecret = "handler-test-secret-0123456789"

type upstream struct {
	mu      sync.Mutex
	token   http.HandlerFunc
	me      http.HandlerFunc
	flair   http.HandlerFunc
	pbs     http.HandlerFunc
	flairQ  url.Values
	apeAuth string
}

func jsonResponse(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

// failingUsers lets a test make user lookup or creation fail while every
// other repository call goes to sqlite.
type failingUsers struct {
	*sqliteRepo.DB
	failLookup bool
	failCreate bool
}

func (f *failingUsers) GetByRedditUsername(ctx context.Context, username string) (*model.User, error) {
	if f.failLookup {
		return nil, io.ErrUnexpectedEOF
	}
	return f.DB.GetByRedditUsername(ctx, username)
}

func (f *failingUsers) Create(ctx context.Context, u *model.User) error {
	if f.failCreate {
		return io.ErrUnexpectedEOF
	}
	return f.DB.Create(ctx, u)
}

type testEnv struct {
	t        *testing.T
	up       *upstream
	db       *sqliteRepo.DB
	users    *failingUsers
	sessions *auth.SessionManager
	sealer   *auth.Sealer
	router   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	up := &upstream{
		token: jsonResponse(http.StatusOK, `{"access_token":"user-token","token_type":"bearer","expires_in":3600}`),
		me:    jsonResponse(http.StatusOK, `{"name":"alice","snoovatar_img":"https://i.redd.it/alice.png"}`),
		flair: jsonResponse(http.StatusOK, `{"json":{"errors":[]}}`),
		pbs: jsonResponse(http.StatusOK, `{"message":"ok","data":{
			"60":[{"acc":97.5,"consistency":80,"difficulty":"normal","lazyMode":false,"language":"english","punctuation":false,"raw":130,"wpm":123.45,"timestamp":1709564400000}],
			"15":[{"acc":100,"consistency":85,"difficulty":"normal","lazyMode":false,"language":"english","punctuation":false,"raw":160,"wpm":150,"timestamp":1709564400000}]}}`),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) { up.token(w, r) })
	mux.HandleFunc("/api/v1/me", func(w http.ResponseWriter, r *http.Request) { up.me(w, r) })
	mux.HandleFunc("/r/typing/api/flair", func(w http.ResponseWriter, r *http.Request) {
		up.mu.Lock()
		up.flairQ = r.URL.Query()
		up.mu.Unlock()
		up.flair(w, r)
	})
	mux.HandleFunc("/users/personalBests", func(w http.ResponseWriter, r *http.Request) {
		up.mu.Lock()
		up.apeAuth = r.Header.Get("Authorization")
		up.mu.Unlock()
		up.pbs(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	httpClient := reddit.NewHTTPClient("RTypingBot/test", 5*time.Second, nil)
	provider := reddit.NewProvider(reddit.ProviderConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost/callback",
		AuthURL:      "https://www.reddit.com/api/v1/authorize",
		TokenURL:     srv.URL + "/api/v1/access_token",
		APIURL:       srv.URL,
		HTTPClient:   httpClient,
	})
	bot := reddit.NewBotClient(reddit.BotConfig{
		ClientID:     "bot",
		ClientSecret: "bot-secret",
		Username:     "RTypingBot",
		Password:     "hunter2",
		TokenURL:     srv.URL + "/api/v1/access_token",
		APIURL:       srv.URL,
		Subreddit:    "typing",
		HTTPClient:   httpClient,
	})

	sealer, err := auth.NewSealer(testSecret)
	require.NoError(t, err)

	users := &failingUsers{DB: db}
	sessions := auth.NewSessionManager(db, 30*24*time.Hour, false, logger)
	authService := service.NewAuthService(users, sessions, logger)
	accounts := service.NewAccountService(db, sealer, logger)
	stats := service.NewStatsService(monkeytype.NewClient(srv.URL, srv.Client()), logger)
	flair := service.NewFlairService(service.NewBotTokenService(db, bot, logger), bot, logger)

	authHandler := NewAuthHandler(provider, authService, sessions, false, logger)
	accountHandler, err := NewAccountHandler(accounts, stats, flair, "typing", logger)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.LoadSession(sessions))
		r.Get("/", accountHandler.HandleHome)
		r.Get("/login", authHandler.HandleLogin)
		r.Get("/callback", authHandler.HandleCallback)
		r.Post("/logout", authHandler.HandleLogout)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession)
			r.Post("/apekey", accountHandler.HandleSetApeKey)
			r.Post("/apekey/delete", accountHandler.HandleDeleteApeKey)
			r.Post("/flair", accountHandler.HandleSetFlair)
			r.Get("/api/me", accountHandler.HandleMe)
			r.Get("/api/stats", accountHandler.HandleStats)
			r.Post("/api/flair", accountHandler.HandleAPIFlair)
		})
	})

	return &testEnv{
		t:        t,
		up:       up,
		db:       db,
		users:    users,
		sessions: sessions,
		sealer:   sealer,
		router:   r,
	}
}

// login creates a user with a session and returns the session cookie.
func (e *testEnv) login(username string) (*model.User, *http.Cookie) {
	e.t.Helper()
	u := &model.User{RedditUsername: username}
	require.NoError(e.t, e.db.Create(context.Background(), u))
	s, err := e.sessions.CreateSession(context.Background(), u.ID)
	require.NoError(e.t, err)
	return u, e.sessions.SessionCookie(s.ID)
}

// storeApeKey seals and stores key for the user, as AccountService would.
func (e *testEnv) storeApeKey(userID, key string) {
	e.t.Helper()
	sealed, err := e.sealer.Seal(key)
	require.NoError(e.t, err)
	require.NoError(e.t, e.db.SetApeKey(context.Background(), userID, &sealed))
}

func (e *testEnv) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
