package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session is an opaque secondary credential. A nil ExpiresAt means the
// session never expires. Login replaces any prior session for the
// user, so at most one is active per user.
type Session struct {
	ID string `gorm:"type:text;primaryKey"` // UUID primary key.

	Token  string `gorm:"type:text;not null;uniqueIndex"` // Random opaque token.
	UserID string `gorm:"type:text;not null;index"`       // Session owner.

	ExpiresAt *time.Time // Expiry, nil for non-expiring sessions.

	User *User `gorm:"foreignKey:UserID"` // Owner back-reference.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// BeforeCreate assigns a UUID when the ID is unset.
func (s *Session) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Expired reports whether the session has an expiry in the past.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}
