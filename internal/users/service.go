package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

var (
	// ErrInvalidEmail indicates the supplied email address is unusable.
	ErrInvalidEmail = errors.New("users: invalid email")
	// ErrWeakPassword indicates the password does not meet the minimum length.
	ErrWeakPassword = errors.New("users: password too short")
	// ErrEmailTaken indicates an account already exists for the email.
	ErrEmailTaken = errors.New("users: email already registered")
	// ErrInvalidCredentials indicates the email/password pair did not match.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
)

// IDProvider issues identifiers for new accounts.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
}

// Service manages local accounts: registration and credential checks.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	ids   IDProvider
	cache sync.Map
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("users: id provider required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:  cfg.Database,
		now: clock,
		ids: cfg.IDProvider,
	}, nil
}

// Register creates a new account for the email and returns it.
func (s *Service) Register(ctx context.Context, displayName, email, password string) (Account, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return Account{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return Account{}, ErrWeakPassword
	}

	var existing Account
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return Account{}, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, fmt.Errorf("users: lookup account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, fmt.Errorf("users: hash password: %w", err)
	}
	userID, err := s.ids.NewID()
	if err != nil {
		return Account{}, fmt.Errorf("users: generate user id: %w", err)
	}

	account := Account{
		UserID:       userID,
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(displayName),
		AvatarURL:    fmt.Sprintf("https://i.pravatar.cc/150?u=%s", email),
		LastSeenAt:   s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		return Account{}, fmt.Errorf("users: create account: %w", err)
	}

	s.cache.Store(email, account)
	return account, nil
}

// Authenticate checks the credential pair and returns the matching account.
// An unknown email and a wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	email = normalizeEmail(email)
	if email == "" {
		return Account{}, ErrInvalidCredentials
	}

	account, err := s.lookup(ctx, email)
	if err != nil {
		return Account{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}

	lastSeen := s.now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&Account{}).
		Where("user_id = ?", account.UserID).
		Update("last_seen_at", lastSeen).Error; err == nil {
		account.LastSeenAt = lastSeen
		s.cache.Store(email, account)
	}

	return account, nil
}

func (s *Service) lookup(ctx context.Context, email string) (Account, error) {
	if cached, ok := s.cache.Load(email); ok {
		if account, ok := cached.(Account); ok {
			return account, nil
		}
	}

	var account Account
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, fmt.Errorf("users: lookup account: %w", err)
	}

	s.cache.Store(email, account)
	return account, nil
}
