package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Membership links a user to a group with a role. One row per
// (user, group) pair.
type Membership struct {
	ID string `gorm:"type:text;primaryKey"` // UUID primary key.

	UserID  string `gorm:"type:text;not null;uniqueIndex:idx_memberships_user_group;index"` // Member user ID.
	GroupID string `gorm:"type:text;not null;uniqueIndex:idx_memberships_user_group;index"` // Group ID.

	Role string `gorm:"type:text;not null"` // One of view, edit, admin.

	User  *User  `gorm:"foreignKey:UserID"`  // Member back-reference.
	Group *Group `gorm:"foreignKey:GroupID"` // Group back-reference.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Join timestamp, ordering key for admin handover.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// BeforeCreate assigns a UUID when the ID is unset.
func (m *Membership) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
