package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/worshipd/worshipd/internal/apperr"
	httpmw "github.com/worshipd/worshipd/internal/http"
	"github.com/worshipd/worshipd/internal/models"
	"github.com/worshipd/worshipd/internal/permission"
	"github.com/worshipd/worshipd/internal/setlist"
)

// SetlistHandler handles setlist endpoints; ordering mutations go
// through the engine.
type SetlistHandler struct {
	db     *gorm.DB
	engine *setlist.Engine
}

// NewSetlistHandler constructs a SetlistHandler.
func NewSetlistHandler(conn *gorm.DB, engine *setlist.Engine) *SetlistHandler {
	return &SetlistHandler{db: conn, engine: engine}
}

func setlistJSON(sl *models.Setlist) gin.H {
	return gin.H{
		"id":            sl.ID,
		"group_id":      sl.GroupID,
		"created_by":    sl.CreatedBy,
		"title":         sl.Title,
		"description":   sl.Description,
		"thumbnail_url": sl.ThumbnailURL,
		"created_at":    sl.CreatedAt,
		"updated_at":    sl.UpdatedAt,
	}
}

func entryJSON(entry *models.SetlistEntry) gin.H {
	out := gin.H{
		"music_id": entry.MusicID,
		"position": entry.Position,
	}
	if entry.Music != nil {
		out["music"] = musicJSON(entry.Music)
	}
	return out
}

type setlistRequest struct {
	GroupID     string `json:"group_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Create creates an empty setlist; any member of the target group may
// create one.
func (h *SetlistHandler) Create(c *gin.Context) {
	var body setlistRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.GroupID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing group_id"})
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing title"})
		return
	}

	actorID := httpmw.CurrentUserID(c)
	sl := models.Setlist{
		GroupID:     body.GroupID,
		CreatedBy:   actorID,
		Title:       strings.TrimSpace(body.Title),
		Description: strings.TrimSpace(body.Description),
	}
	errTx := writeTx(c, h.db, func(tx *gorm.DB) error {
		var group models.Group
		if errFind := tx.First(&group, "id = ?", body.GroupID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apperr.NotFound("group not found")
			}
			return errFind
		}
		if errAuth := permission.RequireMember(tx, actorID, body.GroupID); errAuth != nil {
			return errAuth
		}
		return tx.Create(&sl).Error
	})
	if errTx != nil {
		respondError(c, errTx)
		return
	}
	c.JSON(http.StatusCreated, setlistJSON(&sl))
}

// Get returns one setlist with its entries in position order; any
// member of the owning group may look.
func (h *SetlistHandler) Get(c *gin.Context) {
	setlistID := c.Param("id")
	conn := h.db.WithContext(c.Request.Context())

	var sl models.Setlist
	if errFind := conn.First(&sl, "id = ?", setlistID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			respondError(c, apperr.NotFound("setlist not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query setlist failed"})
		return
	}

	entries, errEntries := h.engine.Entries(c.Request.Context(), httpmw.CurrentUserID(c), setlistID)
	if errEntries != nil {
		respondError(c, errEntries)
		return
	}
	out := setlistJSON(&sl)
	list := make([]gin.H, 0, len(entries))
	for i := range entries {
		list = append(list, entryJSON(&entries[i]))
	}
	out["entries"] = list
	c.JSON(http.StatusOK, out)
}

// ListByGroup returns a group's setlists; any member may look.
func (h *SetlistHandler) ListByGroup(c *gin.Context) {
	groupID := c.Param("id")
	conn := h.db.WithContext(c.Request.Context())

	if errAuth := permission.RequireMember(conn, httpmw.CurrentUserID(c), groupID); errAuth != nil {
		respondError(c, errAuth)
		return
	}

	var setlists []models.Setlist
	errFind := conn.Where("group_id = ?", groupID).Order("created_at DESC").Find(&setlists).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query setlists failed"})
		return
	}
	out := make([]gin.H, 0, len(setlists))
	for i := range setlists {
		out = append(out, setlistJSON(&setlists[i]))
	}
	c.JSON(http.StatusOK, gin.H{"setlists": out})
}

// Update edits a setlist's profile. Needs the edit role, the admin
// role, group creatorship, or setlist creatorship.
func (h *SetlistHandler) Update(c *gin.Context) {
	var body setlistRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	actorID := httpmw.CurrentUserID(c)

	var sl models.Setlist
	errTx := writeTx(c, h.db, func(tx *gorm.DB) error {
		if errFind := tx.First(&sl, "id = ?", c.Param("id")).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apperr.NotFound("setlist not found")
			}
			return errFind
		}
		if errAuth := permission.RequireForEntity(tx, actorID, sl.GroupID, sl.CreatedBy, permission.RoleEdit); errAuth != nil {
			return errAuth
		}
		updates := map[string]any{}
		if title := strings.TrimSpace(body.Title); title != "" {
			updates["title"] = title
		}
		if body.Description != "" {
			updates["description"] = strings.TrimSpace(body.Description)
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&sl).Updates(updates).Error
	})
	if errTx != nil {
		respondError(c, errTx)
		return
	}
	c.JSON(http.StatusOK, setlistJSON(&sl))
}

// Delete removes a setlist and its entries. Needs the admin role,
// group creatorship, or setlist creatorship.
func (h *SetlistHandler) Delete(c *gin.Context) {
	actorID := httpmw.CurrentUserID(c)
	errTx := writeTx(c, h.db, func(tx *gorm.DB) error {
		var sl models.Setlist
		if errFind := tx.First(&sl, "id = ?", c.Param("id")).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apperr.NotFound("setlist not found")
			}
			return errFind
		}
		if errAuth := permission.RequireForEntity(tx, actorID, sl.GroupID, sl.CreatedBy, permission.RoleAdmin); errAuth != nil {
			return errAuth
		}
		if errEntries := tx.Where("setlist_id = ?", sl.ID).Delete(&models.SetlistEntry{}).Error; errEntries != nil {
			return errEntries
		}
		return tx.Delete(&sl).Error
	})
	if errTx != nil {
		respondError(c, errTx)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type entryRequest struct {
	MusicID  string `json:"music_id"`
	Position int    `json:"position"`
}

// AddMusic inserts a song into the setlist at the requested position.
func (h *SetlistHandler) AddMusic(c *gin.Context) {
	var body entryRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.MusicID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing music_id"})
		return
	}

	entry, errAdd := h.engine.Add(c.Request.Context(), httpmw.CurrentUserID(c), c.Param("id"), body.MusicID, body.Position)
	if errAdd != nil {
		respondError(c, errAdd)
		return
	}
	c.JSON(http.StatusCreated, entryJSON(entry))
}

// RemoveMusic removes a song from the setlist, closing the position
// gap.
func (h *SetlistHandler) RemoveMusic(c *gin.Context) {
	errRemove := h.engine.Remove(c.Request.Context(), httpmw.CurrentUserID(c), c.Param("id"), c.Param("musicID"))
	if errRemove != nil {
		respondError(c, errRemove)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// MoveMusic moves a song to a new position within the setlist.
func (h *SetlistHandler) MoveMusic(c *gin.Context) {
	var body struct {
		Position int `json:"position"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	entry, errMove := h.engine.Move(c.Request.Context(), httpmw.CurrentUserID(c), c.Param("id"), c.Param("musicID"), body.Position)
	if errMove != nil {
		respondError(c, errMove)
		return
	}
	c.JSON(http.StatusOK, entryJSON(entry))
}
