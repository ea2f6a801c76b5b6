package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Group owns songs, setlists and the memberships that grant access to
// them. The creator is implicitly an admin for as long as the group
// exists.
type Group struct {
	ID string `gorm:"type:text;primaryKey"` // UUID primary key.

	Name        string `gorm:"type:text;not null;index"` // Display name.
	Description string `gorm:"type:text"`                // Free-form description.
	AvatarURL   string `gorm:"type:text"`                // Public avatar URL.

	CreatedBy string `gorm:"type:text;not null;index"` // Creator user ID.
	Creator   *User  `gorm:"foreignKey:CreatedBy"`     // Creator back-reference.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// BeforeCreate assigns a UUID when the ID is unset.
func (g *Group) BeforeCreate(*gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}
