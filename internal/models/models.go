package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// Config is the singleton row holding generated secrets
type Config struct {
	BaseModel
	SessionSecret string `json:"-" gorm:"type:varchar(64);not null"` // Auto-generated on first boot (64 hex chars)
}

// User represents a local account. Anonymous users have no email or password.
type User struct {
	BaseModel
	Email        *string   `json:"email" gorm:"uniqueIndex"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	IsAnonymous  bool      `json:"is_anonymous" gorm:"not null;default:false"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Session is a durable sign-in record. Token is the opaque value carried
// (signed) in the session cookie.
type Session struct {
	BaseModel
	Token     string    `json:"-" gorm:"uniqueIndex;type:varchar(64);not null"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`

	User User `json:"user,omitzero" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	models := []interface{}{
		&Config{}, &User{}, &Session{},
	}

	return db.AutoMigrate(models...)
}
