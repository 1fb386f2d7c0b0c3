// Package accounts creates and destroys sessions: sign-up, sign-in,
// anonymous sign-in and sign-out.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/launchkit-dev/launchkit/internal/auth"
	"github.com/launchkit-dev/launchkit/internal/database"
	"github.com/launchkit-dev/launchkit/internal/models"
	"github.com/launchkit-dev/launchkit/internal/session"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters long", auth.MinPasswordLength)
)

// SignUpInput is a new email/password account
type SignUpInput struct {
	Name     string
	Email    string
	Password string
}

// Service manages accounts and their sessions
type Service struct {
	db     *gorm.DB
	store  *session.Store
	cache  session.Invalidator // nil when no cache is configured
	ttl    time.Duration
	logger zerolog.Logger
}

// NewService creates a Service. cache may be nil.
func NewService(db *gorm.DB, store *session.Store, cache session.Invalidator, ttl time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// SignUp creates a user and its first session
func (s *Service) SignUp(ctx context.Context, in SignUpInput, meta session.Metadata) (*session.Session, error) {
	if len(in.Password) < auth.MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	email := normalizeEmail(in.Email)
	passwordHash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var created *session.Session
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if count > 0 {
			return ErrEmailTaken
		}

		user := &models.User{
			Email:        &email,
			PasswordHash: passwordHash,
			Name:         strings.TrimSpace(in.Name),
		}
		// A concurrent sign-up can slip past the count; the unique index decides
		if err := tx.Create(user).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		created, err = s.store.Create(ctx, tx, user, s.ttl, meta)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", created.UserID).Str("email", email).Msg("User signed up")
	return created, nil
}

// SignIn verifies credentials and creates a session
func (s *Service) SignIn(ctx context.Context, email, password string, meta session.Metadata) (*session.Session, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND is_anonymous = ?", normalizeEmail(email), false).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := auth.VerifyPassword(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	created, err := s.store.Create(ctx, nil, &user, s.ttl, meta)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Msg("User signed in")
	return created, nil
}

// SignInAnonymous creates a guest user and its session
func (s *Service) SignInAnonymous(ctx context.Context, meta session.Metadata) (*session.Session, error) {
	var created *session.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := &models.User{Name: "Guest", IsAnonymous: true}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create anonymous user: %w", err)
		}

		var err error
		created, err = s.store.Create(ctx, tx, user, s.ttl, meta)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", created.UserID).Msg("Anonymous user signed in")
	return created, nil
}

// SignOut destroys the session with token
func (s *Service) SignOut(ctx context.Context, token string) error {
	if err := s.store.Delete(ctx, token); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, token); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to evict cached session")
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
