package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Setlist is an ordered collection of a group's songs.
type Setlist struct {
	ID string `gorm:"type:text;primaryKey"` // UUID primary key.

	GroupID   string `gorm:"type:text;not null;index"` // Owning group.
	CreatedBy string `gorm:"type:text;not null;index"` // Creator user ID.

	Title        string `gorm:"type:text;not null"` // Display title.
	Description  string `gorm:"type:text"`          // Free-form description.
	ThumbnailURL string `gorm:"type:text"`          // Thumbnail URL.

	Group   *Group `gorm:"foreignKey:GroupID"`   // Group back-reference.
	Creator *User  `gorm:"foreignKey:CreatedBy"` // Creator back-reference.

	Entries []SetlistEntry `gorm:"foreignKey:SetlistID"` // Ordered entries.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// BeforeCreate assigns a UUID when the ID is unset.
func (s *Setlist) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// SetlistEntry places one song at one position in a setlist. A song
// appears at most once per setlist; positions form a dense 0..k-1 run
// maintained by the ordering engine.
type SetlistEntry struct {
	ID string `gorm:"type:text;primaryKey"` // UUID primary key.

	SetlistID string `gorm:"type:text;not null;uniqueIndex:idx_setlist_entries_setlist_music;index"` // Owning setlist.
	MusicID   string `gorm:"type:text;not null;uniqueIndex:idx_setlist_entries_setlist_music;index"` // Referenced song.

	Position int `gorm:"not null"` // Zero-based position within the setlist.

	Music *Music `gorm:"foreignKey:MusicID"` // Song back-reference.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// BeforeCreate assigns a UUID when the ID is unset.
func (e *SetlistEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
