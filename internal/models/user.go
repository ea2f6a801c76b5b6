package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a registered account.
//
// Accounts created locally carry a bcrypt PasswordHash; accounts minted
// from an external identity provider carry the provider's SubjectID
// instead. Both may be present for linked accounts.
type User struct {
	ID string `gorm:"type:text;primaryKey"` // UUID primary key.

	SubjectID    string `gorm:"type:text;index"`                // External identity subject, empty for local-only accounts.
	Name         string `gorm:"type:text;not null"`             // Display name.
	Email        string `gorm:"type:text;not null;uniqueIndex"` // Unique email address.
	PasswordHash string `gorm:"type:text"`                      // Hashed password, empty for provider-only accounts.
	AvatarURL    string `gorm:"type:text"`                      // Public avatar URL.

	LastLoginAt *time.Time // Last successful login.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// BeforeCreate assigns a UUID when the ID is unset.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
