package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/worshipd/worshipd/internal/apperr"
	"github.com/worshipd/worshipd/internal/db"
	httpmw "github.com/worshipd/worshipd/internal/http"
	"github.com/worshipd/worshipd/internal/lyrics"
	"github.com/worshipd/worshipd/internal/models"
	"github.com/worshipd/worshipd/internal/permission"
	"github.com/worshipd/worshipd/internal/setlist"
	"github.com/worshipd/worshipd/internal/storage"
)

// MusicHandler handles song endpoints.
type MusicHandler struct {
	db      *gorm.DB
	blobs   storage.BlobStore
	locator *lyrics.Locator
}

// NewMusicHandler constructs a MusicHandler. blobs may be nil when
// uploads are disabled.
func NewMusicHandler(conn *gorm.DB, blobs storage.BlobStore, locator *lyrics.Locator) *MusicHandler {
	return &MusicHandler{db: conn, blobs: blobs, locator: locator}
}

type musicRequest struct {
	Title        string             `json:"title"`
	Author       string             `json:"author"`
	Tone         string             `json:"tone"`
	Category     string             `json:"category"`
	BPM          int                `json:"bpm"`
	Lyrics       string             `json:"lyrics"`
	ThumbnailURL string             `json:"thumbnail_url"`
	Tags         []string           `json:"tags"`
	Links        *models.MusicLinks `json:"links"`
	Chords       *models.ChordMap   `json:"chords"`
}

func musicJSON(m *models.Music) gin.H {
	out := gin.H{
		"id":            m.ID,
		"group_id":      m.GroupID,
		"created_by":    m.CreatedBy,
		"title":         m.Title,
		"author":        m.Author,
		"tone":          m.Tone,
		"category":      m.Category,
		"bpm":           m.BPM,
		"lyrics":        m.Lyrics,
		"thumbnail_url": m.ThumbnailURL,
		"created_at":    m.CreatedAt,
		"updated_at":    m.UpdatedAt,
	}
	if len(m.Tags) > 0 {
		out["tags"] = json.RawMessage(m.Tags)
	}
	if len(m.Links) > 0 {
		out["links"] = json.RawMessage(m.Links)
	}
	if len(m.Chords) > 0 {
		out["chords"] = json.RawMessage(m.Chords)
	}
	return out
}

func toJSONColumn(v any) (datatypes.JSON, error) {
	raw, errMarshal := json.Marshal(v)
	if errMarshal != nil {
		return nil, errMarshal
	}
	return datatypes.JSON(raw), nil
}

// resolveThumbnail picks the song thumbnail: an explicit URL wins,
// then an uploaded image, then the YouTube link's high-res thumbnail.
// Thumbnail lookup failures are logged, not fatal.
func (h *MusicHandler) resolveThumbnail(c *gin.Context, explicit string, links *models.MusicLinks) string {
	if explicit != "" {
		return explicit
	}
	uploaded, errUpload := uploadFormFile(c, h.blobs, "image")
	if errUpload != nil {
		log.WithError(errUpload).Warn("thumbnail upload failed")
	}
	if uploaded != "" {
		return uploaded
	}
	if h.locator != nil && links != nil && links.YouTube != "" {
		thumb, errThumb := h.locator.YouTubeThumbnail(c.Request.Context(), links.YouTube)
		if errThumb != nil {
			log.WithError(errThumb).Warn("youtube thumbnail lookup failed")
			return ""
		}
		return thumb
	}
	return ""
}

// bindMusicRequest reads the request body: JSON directly, or a
// multipart form whose "data" field carries the same JSON next to an
// optional "image" file.
func bindMusicRequest(c *gin.Context) (*musicRequest, error) {
	var body musicRequest
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		raw := c.PostForm("data")
		if raw == "" {
			return nil, apperr.InvalidInput("missing data form field")
		}
		if errDecode := json.Unmarshal([]byte(raw), &body); errDecode != nil {
			return nil, apperr.InvalidInput("invalid json in data form field")
		}
		return &body, nil
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		return nil, apperr.InvalidInput("invalid json")
	}
	return &body, nil
}

// Create adds a song to a group. Needs the edit role, the admin role,
// or group creatorship.
func (h *MusicHandler) Create(c *gin.Context) {
	body, errBind := bindMusicRequest(c)
	if errBind != nil {
		respondError(c, errBind)
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing title"})
		return
	}

	groupID := c.Param("id")
	actorID := httpmw.CurrentUserID(c)
	thumbnail := h.resolveThumbnail(c, strings.TrimSpace(body.ThumbnailURL), body.Links)

	music := models.Music{
		GroupID:      groupID,
		CreatedBy:    actorID,
		Title:        strings.TrimSpace(body.Title),
		Author:       strings.TrimSpace(body.Author),
		Tone:         strings.TrimSpace(body.Tone),
		Category:     strings.TrimSpace(body.Category),
		BPM:          body.BPM,
		Lyrics:       body.Lyrics,
		ThumbnailURL: thumbnail,
	}
	var errJSON error
	if body.Tags != nil {
		if music.Tags, errJSON = toJSONColumn(body.Tags); errJSON != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tags"})
			return
		}
	}
	if body.Links != nil {
		if music.Links, errJSON = toJSONColumn(body.Links); errJSON != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid links"})
			return
		}
	}
	if body.Chords != nil {
		if music.Chords, errJSON = toJSONColumn(body.Chords); errJSON != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chords"})
			return
		}
	}

	errTx := writeTx(c, h.db, func(tx *gorm.DB) error {
		if errAuth := permission.Require(tx, actorID, groupID, permission.RoleEdit); errAuth != nil {
			return errAuth
		}
		return tx.Create(&music).Error
	})
	if errTx != nil {
		respondError(c, errTx)
		return
	}
	c.JSON(http.StatusCreated, musicJSON(&music))
}

// List returns a group's songs, searchable across title, author and
// tags, paginated. Any member may look.
func (h *MusicHandler) List(c *gin.Context) {
	groupID := c.Param("id")
	actorID := httpmw.CurrentUserID(c)
	conn := h.db.WithContext(c.Request.Context())

	if errAuth := permission.RequireMember(conn, actorID, groupID); errAuth != nil {
		respondError(c, errAuth)
		return
	}

	query := conn.Model(&models.Music{}).Where("group_id = ?", groupID)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+q+"%")
		query = query.Where(
			conn.Where(db.CaseInsensitiveLikeExpr(h.db, "title"), pattern).
				Or(db.CaseInsensitiveLikeExpr(h.db, "author"), pattern).
				Or(db.CaseInsensitiveLikeExpr(h.db, "tags"), pattern),
		)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count musics failed"})
		return
	}
	offset, limit := pageParams(c)
	var musics []models.Music
	if errFind := query.Order("title ASC").Offset(offset).Limit(limit).Find(&musics).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query musics failed"})
		return
	}
	out := make([]gin.H, 0, len(musics))
	for i := range musics {
		out = append(out, musicJSON(&musics[i]))
	}
	c.JSON(http.StatusOK, gin.H{"musics": out, "total": total})
}

// Get returns one song; any member of the owning group may look.
func (h *MusicHandler) Get(c *gin.Context) {
	conn := h.db.WithContext(c.Request.Context())
	var music models.Music
	if errFind := conn.First(&music, "id = ?", c.Param("id")).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			respondError(c, apperr.NotFound("music not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query music failed"})
		return
	}
	if errAuth := permission.RequireMember(conn, httpmw.CurrentUserID(c), music.GroupID); errAuth != nil {
		respondError(c, errAuth)
		return
	}
	c.JSON(http.StatusOK, musicJSON(&music))
}

// Update edits a song. Needs the edit role, the admin role, group
// creatorship, or song creatorship.
func (h *MusicHandler) Update(c *gin.Context) {
	body, errBind := bindMusicRequest(c)
	if errBind != nil {
		respondError(c, errBind)
		return
	}
	actorID := httpmw.CurrentUserID(c)
	// Resolved before the transaction: uploads and thumbnail lookups
	// talk to external services and must not hold a DB transaction open.
	thumbnail := h.resolveThumbnail(c, strings.TrimSpace(body.ThumbnailURL), body.Links)

	var music models.Music
	errTx := writeTx(c, h.db, func(tx *gorm.DB) error {
		if errFind := tx.First(&music, "id = ?", c.Param("id")).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apperr.NotFound("music not found")
			}
			return errFind
		}
		if errAuth := permission.RequireForEntity(tx, actorID, music.GroupID, music.CreatedBy, permission.RoleEdit); errAuth != nil {
			return errAuth
		}

		updates := map[string]any{}
		if title := strings.TrimSpace(body.Title); title != "" {
			updates["title"] = title
		}
		if body.Author != "" {
			updates["author"] = strings.TrimSpace(body.Author)
		}
		if body.Tone != "" {
			updates["tone"] = strings.TrimSpace(body.Tone)
		}
		if body.Category != "" {
			updates["category"] = strings.TrimSpace(body.Category)
		}
		if body.BPM > 0 {
			updates["bpm"] = body.BPM
		}
		if body.Lyrics != "" {
			updates["lyrics"] = body.Lyrics
		}
		if body.Tags != nil {
			column, errJSON := toJSONColumn(body.Tags)
			if errJSON != nil {
				return apperr.InvalidInput("invalid tags")
			}
			updates["tags"] = column
		}
		if body.Links != nil {
			column, errJSON := toJSONColumn(body.Links)
			if errJSON != nil {
				return apperr.InvalidInput("invalid links")
			}
			updates["links"] = column
		}
		if body.Chords != nil {
			column, errJSON := toJSONColumn(body.Chords)
			if errJSON != nil {
				return apperr.InvalidInput("invalid chords")
			}
			updates["chords"] = column
		}
		if thumbnail != "" {
			updates["thumbnail_url"] = thumbnail
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&music).Updates(updates).Error
	})
	if errTx != nil {
		respondError(c, errTx)
		return
	}
	c.JSON(http.StatusOK, musicJSON(&music))
}

// Delete removes a song and every setlist entry referencing it,
// closing the position gaps in each affected setlist, in one
// transaction. Needs the edit role, the admin role, group
// creatorship, or song creatorship.
func (h *MusicHandler) Delete(c *gin.Context) {
	actorID := httpmw.CurrentUserID(c)
	errTx := writeTx(c, h.db, func(tx *gorm.DB) error {
		var music models.Music
		if errFind := tx.First(&music, "id = ?", c.Param("id")).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apperr.NotFound("music not found")
			}
			return errFind
		}
		if errAuth := permission.RequireForEntity(tx, actorID, music.GroupID, music.CreatedBy, permission.RoleEdit); errAuth != nil {
			return errAuth
		}
		if errEntries := setlist.RemoveMusicEverywhere(tx, music.ID); errEntries != nil {
			return errEntries
		}
		return tx.Delete(&music).Error
	})
	if errTx != nil {
		respondError(c, errTx)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
