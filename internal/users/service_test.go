package users

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

func newTestService(t *testing.T, ids ...string) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Account{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	if len(ids) == 0 {
		ids = []string{"user-1", "user-2"}
	}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1700000000, 0).UTC() },
		IDProvider: &staticIDGenerator{ids: ids},
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return service
}

func TestRegisterAndAuthenticate(t *testing.T) {
	service := newTestService(t)

	account, err := service.Register(context.Background(), "Demo User", "Demo@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.UserID != "user-1" {
		t.Fatalf("unexpected user id %q", account.UserID)
	}
	if account.Email != "demo@example.com" {
		t.Fatalf("email must be normalized, got %q", account.Email)
	}
	if account.PasswordHash == "correct horse" || account.PasswordHash == "" {
		t.Fatalf("password must be stored hashed")
	}
	if account.AvatarURL == "" {
		t.Fatalf("expected a derived avatar url")
	}

	authenticated, err := service.Authenticate(context.Background(), "demo@example.com", "correct horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if authenticated.UserID != account.UserID {
		t.Fatalf("unexpected account %q", authenticated.UserID)
	}
}

func TestAuthenticateRejectsWrongPassword(t *testing.T) {
	service := newTestService(t)
	if _, err := service.Register(context.Background(), "Demo", "demo@example.com", "correct horse"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := service.Authenticate(context.Background(), "demo@example.com", "battery staple")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	service := newTestService(t)
	_, err := service.Authenticate(context.Background(), "nobody@example.com", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	service := newTestService(t)
	if _, err := service.Register(context.Background(), "First", "demo@example.com", "correct horse"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := service.Register(context.Background(), "Second", "DEMO@example.com", "another pass")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	service := newTestService(t)

	if _, err := service.Register(context.Background(), "Demo", "not-an-email", "correct horse"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := service.Register(context.Background(), "Demo", "demo@example.com", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}
