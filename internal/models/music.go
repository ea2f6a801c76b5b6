package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Music is a song owned by exactly one group.
//
// Tags is a JSON array of strings. Links is a JSON object with
// "youtube", "spotify" and "others" keys. Chords is the optional
// structured chord annotation: a JSON object with the musical key and
// a list of (chord, line, offset) segments.
type Music struct {
	ID string `gorm:"type:text;primaryKey"` // UUID primary key.

	GroupID   string `gorm:"type:text;not null;index"` // Owning group.
	CreatedBy string `gorm:"type:text;not null;index"` // Creator user ID.

	Title    string `gorm:"type:text;not null;index"` // Song title.
	Author   string `gorm:"type:text;index"`          // Song author.
	Tone     string `gorm:"type:text"`                // Musical key.
	Category string `gorm:"type:text"`                // Free-form category name.

	Tags   datatypes.JSON `gorm:"type:jsonb"` // Tag list in JSON.
	Links  datatypes.JSON `gorm:"type:jsonb"` // External links in JSON.
	Chords datatypes.JSON `gorm:"type:jsonb"` // Chord annotation in JSON.

	Lyrics       string `gorm:"type:text"` // Lyrics text.
	BPM          int    // Tempo, zero when unknown.
	ThumbnailURL string `gorm:"type:text"` // Thumbnail URL.

	Group   *Group `gorm:"foreignKey:GroupID"`   // Group back-reference.
	Creator *User  `gorm:"foreignKey:CreatedBy"` // Creator back-reference.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// BeforeCreate assigns a UUID when the ID is unset.
func (m *Music) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// MusicLinks is the decoded form of the Links column.
type MusicLinks struct {
	YouTube string   `json:"youtube,omitempty"`
	Spotify string   `json:"spotify,omitempty"`
	Others  []string `json:"others,omitempty"`
}

// ChordSegment anchors a chord symbol to a lyrics position.
type ChordSegment struct {
	Chord      string `json:"chord"`
	LineIndex  int    `json:"line_index"`
	CharOffset int    `json:"char_offset"`
}

// ChordMap is the decoded form of the Chords column.
type ChordMap struct {
	Key      string         `json:"key"`
	Segments []ChordSegment `json:"segments"`
}
