// Package setlist maintains the ordering of songs within a setlist.
//
// Positions form a dense zero-based run: for k entries the position
// values are exactly 0..k-1, with no gaps and no duplicates. Every
// operation runs its permission check, existence checks and writes in
// a single transaction, SERIALIZABLE on PostgreSQL, so a concurrent
// writer cannot interleave with a shift and a reader never observes a
// partially shifted list.
package setlist

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/worshipd/worshipd/internal/apperr"
	"github.com/worshipd/worshipd/internal/db"
	"github.com/worshipd/worshipd/internal/models"
	"github.com/worshipd/worshipd/internal/permission"
)

// Engine applies ordering operations against the store.
type Engine struct {
	db *gorm.DB
}

// NewEngine constructs an Engine.
func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

func loadSetlist(tx *gorm.DB, setlistID string) (*models.Setlist, error) {
	var sl models.Setlist
	if errFind := tx.First(&sl, "id = ?", setlistID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("setlist not found")
		}
		return nil, errFind
	}
	return &sl, nil
}

func loadEntry(tx *gorm.DB, setlistID, musicID string) (*models.SetlistEntry, error) {
	var entry models.SetlistEntry
	errFind := tx.Where("setlist_id = ? AND music_id = ?", setlistID, musicID).First(&entry).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("music not found in this setlist")
		}
		return nil, errFind
	}
	return &entry, nil
}

func entryCount(tx *gorm.DB, setlistID string) (int, error) {
	var count int64
	if errCount := tx.Model(&models.SetlistEntry{}).
		Where("setlist_id = ?", setlistID).
		Count(&count).Error; errCount != nil {
		return 0, errCount
	}
	return int(count), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// inTx runs fn in a write transaction. On PostgreSQL the transaction is
// SERIALIZABLE so two concurrent shifts cannot both commit against the
// same snapshot; the loser's abort surfaces as an upstream error the
// caller can retry.
func (e *Engine) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	errTx := e.db.WithContext(ctx).Transaction(fn, db.WriteTxOptions(e.db)...)
	if db.IsSerializationFailure(errTx) {
		return apperr.Upstream("setlist update conflicted with a concurrent change", errTx)
	}
	return errTx
}

// Add inserts the song at the requested position, shifting every entry
// at or after it one step toward the tail. The position is clamped to
// [0, k] so any caller integer yields a dense run.
//
// When the song is already in the setlist, its position is overwritten
// in place without shifting siblings. That matches the historical
// add-path behavior and can leave duplicate position values; callers
// that intend to reorder an existing entry should use Move.
func (e *Engine) Add(ctx context.Context, actorID, setlistID, musicID string, position int) (*models.SetlistEntry, error) {
	var result *models.SetlistEntry
	errTx := e.inTx(ctx, func(tx *gorm.DB) error {
		sl, errSetlist := loadSetlist(tx, setlistID)
		if errSetlist != nil {
			return errSetlist
		}

		var music models.Music
		if errFind := tx.First(&music, "id = ?", musicID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apperr.NotFound("music not found")
			}
			return errFind
		}
		if music.GroupID != sl.GroupID {
			return apperr.InvalidInput("music belongs to a different group than the setlist")
		}

		if errAuth := permission.RequireForEntity(tx, actorID, sl.GroupID, sl.CreatedBy, permission.RoleEdit); errAuth != nil {
			return errAuth
		}

		count, errCount := entryCount(tx, setlistID)
		if errCount != nil {
			return errCount
		}

		existing, errEntry := loadEntry(tx, setlistID, musicID)
		if errEntry == nil {
			existing.Position = clamp(position, 0, count-1)
			if errSave := tx.Model(existing).Update("position", existing.Position).Error; errSave != nil {
				return errSave
			}
			result = existing
			return nil
		}
		if !apperr.IsKind(errEntry, apperr.KindNotFound) {
			return errEntry
		}

		position = clamp(position, 0, count)
		if errShift := tx.Model(&models.SetlistEntry{}).
			Where("setlist_id = ? AND position >= ?", setlistID, position).
			UpdateColumn("position", gorm.Expr("position + 1")).Error; errShift != nil {
			return errShift
		}

		entry := models.SetlistEntry{
			SetlistID: setlistID,
			MusicID:   musicID,
			Position:  position,
		}
		if errCreate := tx.Create(&entry).Error; errCreate != nil {
			return errCreate
		}
		result = &entry
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return result, nil
}

// Remove deletes the song's entry and closes the gap by shifting every
// later entry one step toward the head. Removing a song that is not in
// the setlist is a not-found error, not a no-op.
func (e *Engine) Remove(ctx context.Context, actorID, setlistID, musicID string) error {
	return e.inTx(ctx, func(tx *gorm.DB) error {
		sl, errSetlist := loadSetlist(tx, setlistID)
		if errSetlist != nil {
			return errSetlist
		}
		if errAuth := permission.RequireForEntity(tx, actorID, sl.GroupID, sl.CreatedBy, permission.RoleEdit); errAuth != nil {
			return errAuth
		}

		entry, errEntry := loadEntry(tx, setlistID, musicID)
		if errEntry != nil {
			return errEntry
		}

		if errDelete := tx.Delete(entry).Error; errDelete != nil {
			return errDelete
		}
		return tx.Model(&models.SetlistEntry{}).
			Where("setlist_id = ? AND position > ?", setlistID, entry.Position).
			UpdateColumn("position", gorm.Expr("position - 1")).Error
	})
}

// Move rotates the song to the new position, shifting only the entries
// between the old and new position. A move to the current position is
// an explicit success without touching any row. The target is clamped
// to [0, k-1].
func (e *Engine) Move(ctx context.Context, actorID, setlistID, musicID string, newPosition int) (*models.SetlistEntry, error) {
	var result *models.SetlistEntry
	errTx := e.inTx(ctx, func(tx *gorm.DB) error {
		sl, errSetlist := loadSetlist(tx, setlistID)
		if errSetlist != nil {
			return errSetlist
		}
		if errAuth := permission.RequireForEntity(tx, actorID, sl.GroupID, sl.CreatedBy, permission.RoleEdit); errAuth != nil {
			return errAuth
		}

		entry, errEntry := loadEntry(tx, setlistID, musicID)
		if errEntry != nil {
			return errEntry
		}

		count, errCount := entryCount(tx, setlistID)
		if errCount != nil {
			return errCount
		}
		newPosition = clamp(newPosition, 0, count-1)

		current := entry.Position
		if newPosition == current {
			result = entry
			return nil
		}

		if newPosition > current {
			// Moving toward the tail: the slice between the old and new
			// position steps one toward the head.
			if errShift := tx.Model(&models.SetlistEntry{}).
				Where("setlist_id = ? AND position > ? AND position <= ?", setlistID, current, newPosition).
				UpdateColumn("position", gorm.Expr("position - 1")).Error; errShift != nil {
				return errShift
			}
		} else {
			// Moving toward the head: the slice steps one toward the tail.
			if errShift := tx.Model(&models.SetlistEntry{}).
				Where("setlist_id = ? AND position >= ? AND position < ?", setlistID, newPosition, current).
				UpdateColumn("position", gorm.Expr("position + 1")).Error; errShift != nil {
				return errShift
			}
		}

		entry.Position = newPosition
		if errSave := tx.Model(entry).Update("position", newPosition).Error; errSave != nil {
			return errSave
		}
		result = entry
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return result, nil
}

// RemoveMusicEverywhere deletes every entry referencing the music and
// closes the position gap in each affected setlist. It runs in the
// caller's transaction so music deletion stays atomic.
func RemoveMusicEverywhere(tx *gorm.DB, musicID string) error {
	var entries []models.SetlistEntry
	if errFind := tx.Where("music_id = ?", musicID).Find(&entries).Error; errFind != nil {
		return errFind
	}
	for _, entry := range entries {
		if errDelete := tx.Delete(&entry).Error; errDelete != nil {
			return errDelete
		}
		if errShift := tx.Model(&models.SetlistEntry{}).
			Where("setlist_id = ? AND position > ?", entry.SetlistID, entry.Position).
			UpdateColumn("position", gorm.Expr("position - 1")).Error; errShift != nil {
			return errShift
		}
	}
	return nil
}

// Entries returns the setlist's entries in position order with songs
// preloaded, gated on group membership.
func (e *Engine) Entries(ctx context.Context, actorID, setlistID string) ([]models.SetlistEntry, error) {
	var entries []models.SetlistEntry
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sl, errSetlist := loadSetlist(tx, setlistID)
		if errSetlist != nil {
			return errSetlist
		}
		if errAuth := permission.RequireMember(tx, actorID, sl.GroupID); errAuth != nil {
			return errAuth
		}
		return tx.Preload("Music").
			Where("setlist_id = ?", setlistID).
			Order("position ASC").
			Find(&entries).Error
	})
	if errTx != nil {
		return nil, errTx
	}
	return entries, nil
}
