package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sakif/typing-flair/internal/apperror"
	"github.com/sakif/typing-flair/internal/model"
	"github.com/sakif/typing-flair/internal/reddit"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory implementation of repository.UserRepository.
type fakeUserRepo struct {
	users  map[string]*model.User // keyed by internal ID
	byName map[string]*model.User // keyed by reddit username
	nextID int
	// set to a non-nil error to simulate a database failure
	createErr    error
	lookupErr    error
	snoovatarErr error
	setKeyErr    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[string]*model.User),
		byName: make(map[string]*model.User),
		nextID: 1,
	}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	user.ID = fmt.Sprintf("user-fake-id-%d", f.nextID)
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.users[user.ID] = &stored
	f.byName[user.RedditUsername] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByRedditUsername(_ context.Context, name string) (*model.User, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	u, ok := f.byName[name]
	if !ok {
		return nil, apperror.NotFound("user", name)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) UpdateSnoovatar(_ context.Context, id, snoovatar string) error {
	if f.snoovatarErr != nil {
		return f.snoovatarErr
	}
	f.users[id].RedditSnoovatar = snoovatar
	return nil
}

func (f *fakeUserRepo) SetApeKey(_ context.Context, id string, key *string) error {
	if f.setKeyErr != nil {
		return f.setKeyErr
	}
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.ApeKey = key
	return nil
}

// fakeSessions records which users got a session.
type fakeSessions struct {
	issued []string
	err    error
}

func (f *fakeSessions) CreateSession(_ context.Context, userID string) (*model.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.issued = append(f.issued, userID)
	return &model.Session{
		ID:        fmt.Sprintf("session-%d", len(f.issued)),
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
		Fresh:     true,
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuthService(repo *fakeUserRepo, sessions *fakeSessions) *AuthService {
	return NewAuthService(repo, sessions, testLogger())
}

// =========================================================================
// LoginOrRegisterReddit TESTS
// =========================================================================

func TestLoginOrRegisterReddit_NewUser(t *testing.T) {
	repo := newFakeUserRepo()
	sessions := &fakeSessions{}
	svc := newTestAuthService(repo, sessions)

	result, err := svc.LoginOrRegisterReddit(context.Background(), &reddit.User{
		Name:         "alice",
		SnoovatarImg: "https://i.redd.it/snoo.png",
	})
	if err != nil {
		t.Fatalf("LoginOrRegisterReddit() error = %v", err)
	}

	if !result.Created {
		t.Error("Created = false, want true for a first login")
	}
	if result.User.ID == "" {
		t.Error("User.ID should be set after create")
	}
	if result.User.RedditSnoovatar != "https://i.redd.it/snoo.png" {
		t.Errorf("RedditSnoovatar = %q", result.User.RedditSnoovatar)
	}
	if result.Session == nil || result.Session.UserID != result.User.ID {
		t.Errorf("session not issued for the new user: %+v", result.Session)
	}
	if len(repo.users) != 1 {
		t.Errorf("users stored = %d, want 1", len(repo.users))
	}
}

func TestLoginOrRegisterReddit_ExistingUserKeepsID(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo, &fakeSessions{})

	first, err := svc.LoginOrRegisterReddit(context.Background(), &reddit.User{Name: "alice", IconImg: "old.png"})
	if err != nil {
		t.Fatalf("first login: %v", err)
	}

	second, err := svc.LoginOrRegisterReddit(context.Background(), &reddit.User{Name: "alice", IconImg: "new.png?a=1&amp;b=2"})
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if second.Created {
		t.Error("Created = true on a returning login")
	}
	if second.User.ID != first.User.ID {
		t.Errorf("user ID changed: %q → %q", first.User.ID, second.User.ID)
	}
	if got := repo.users[first.User.ID].RedditSnoovatar; got != "new.png?a=1&b=2" {
		t.Errorf("stored snoovatar = %q, want refreshed and unescaped", got)
	}
	if len(repo.users) != 1 {
		t.Errorf("users stored = %d, want 1", len(repo.users))
	}
}

func TestLoginOrRegisterReddit_SnoovatarRefreshFailureIsNotFatal(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo, &fakeSessions{})

	if _, err := svc.LoginOrRegisterReddit(context.Background(), &reddit.User{Name: "alice"}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	repo.snoovatarErr = errors.New("disk full")

	result, err := svc.LoginOrRegisterReddit(context.Background(), &reddit.User{Name: "alice", IconImg: "x.png"})
	if err != nil {
		t.Fatalf("LoginOrRegisterReddit() error = %v, want nil", err)
	}
	if result.Session == nil {
		t.Error("session should still be issued")
	}
}

func TestLoginOrRegisterReddit_CreateFailure(t *testing.T) {
	repo := newFakeUserRepo()
	repo.createErr = errors.New("database is on fire")
	sessions := &fakeSessions{}
	svc := newTestAuthService(repo, sessions)

	_, err := svc.LoginOrRegisterReddit(context.Background(), &reddit.User{Name: "alice"})
	if !errors.Is(err, apperror.ErrInternal) {
		t.Fatalf("error = %v, want ErrInternal", err)
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Message != "Failed to create new user" {
		t.Errorf("message = %v, want %q", err, "Failed to create new user")
	}
	if len(sessions.issued) != 0 {
		t.Error("no session may be issued when the user could not be created")
	}
}

func TestLoginOrRegisterReddit_LookupFailure(t *testing.T) {
	repo := newFakeUserRepo()
	repo.lookupErr = errors.New("connection reset")
	svc := newTestAuthService(repo, &fakeSessions{})

	_, err := svc.LoginOrRegisterReddit(context.Background(), &reddit.User{Name: "alice"})
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrInternal) {
		t.Fatalf("error = %v, want ErrInternal", err)
	}
	if appErr.Message != "Failed to look up user" {
		t.Errorf("message = %q, want %q", appErr.Message, "Failed to look up user")
	}
	if len(repo.users) != 0 {
		t.Error("no user may be created after a failed lookup")
	}
}

func TestLoginOrRegisterReddit_EmptyProfile(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo(), &fakeSessions{})

	for _, ru := range []*reddit.User{nil, {Name: ""}} {
		_, err := svc.LoginOrRegisterReddit(context.Background(), ru)
		if !errors.Is(err, apperror.ErrUpstreamData) {
			t.Errorf("LoginOrRegisterReddit(%v) error = %v, want ErrUpstreamData", ru, err)
		}
	}
}

func TestLoginOrRegisterReddit_SessionFailure(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo(), &fakeSessions{err: errors.New("boom")})

	_, err := svc.LoginOrRegisterReddit(context.Background(), &reddit.User{Name: "alice"})
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrInternal) {
		t.Fatalf("error = %v, want ErrInternal", err)
	}
	if appErr.Message != "Failed to create session" {
		t.Errorf("message = %q, want %q", appErr.Message, "Failed to create session")
	}
}

// =========================================================================
// GetUserByID TESTS
// =========================================================================

func TestGetUserByID(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo, &fakeSessions{})

	result, err := svc.LoginOrRegisterReddit(context.Background(), &reddit.User{Name: "findme"})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	user, err := svc.GetUserByID(context.Background(), result.User.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if user.RedditUsername != "findme" {
		t.Errorf("RedditUsername = %q, want %q", user.RedditUsername, "findme")
	}

	if _, err := svc.GetUserByID(context.Background(), ""); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("GetUserByID(\"\") error = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.GetUserByID(context.Background(), "nope"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID(unknown) error = %v, want ErrNotFound", err)
	}
}
