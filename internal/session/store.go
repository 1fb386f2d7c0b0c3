package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/launchkit-dev/launchkit/internal/auth"
	"github.com/launchkit-dev/launchkit/internal/models"
)

// tokenBytes is the entropy of a session token (64 hex chars)
const tokenBytes = 32

// Metadata is recorded alongside a new session
type Metadata struct {
	UserAgent string
	IPAddress string
}

// Store is the durable session store backed by gorm
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new session for user expiring after ttl
func (s *Store) Create(ctx context.Context, tx *gorm.DB, user *models.User, ttl time.Duration, meta Metadata) (*Session, error) {
	if tx == nil {
		tx = s.db
	}

	token, err := auth.RandomHex(tokenBytes)
	if err != nil {
		return nil, err
	}

	record := &models.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(ttl).UTC(),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
	}
	if err := tx.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	record.User = *user
	return fromRecord(record), nil
}

// Lookup implements Lookuper
func (s *Store) Lookup(ctx context.Context, token string) (*Session, error) {
	var record models.Session
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("token = ?", token).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
	return fromRecord(&record), nil
}

// Delete removes the session with token. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{}).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteForUser removes every session owned by userID
func (s *Store) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// PurgeExpired removes sessions that expired at or before now
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func fromRecord(record *models.Session) *Session {
	s := &Session{
		Token:       record.Token,
		UserID:      record.UserID,
		UserName:    record.User.Name,
		IsAnonymous: record.User.IsAnonymous,
		ExpiresAt:   record.ExpiresAt,
	}
	if record.User.Email != nil {
		s.UserEmail = *record.User.Email
	}
	return s
}
