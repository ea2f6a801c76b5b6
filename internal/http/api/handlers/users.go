package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/worshipd/worshipd/internal/apperr"
	"github.com/worshipd/worshipd/internal/db"
	httpmw "github.com/worshipd/worshipd/internal/http"
	"github.com/worshipd/worshipd/internal/models"
	"github.com/worshipd/worshipd/internal/storage"
)

// maxUploadBytes bounds avatar and thumbnail uploads.
const maxUploadBytes = 8 << 20

// UserHandler handles user profile endpoints.
type UserHandler struct {
	db    *gorm.DB
	blobs storage.BlobStore
}

// NewUserHandler constructs a UserHandler. blobs may be nil when
// uploads are disabled.
func NewUserHandler(conn *gorm.DB, blobs storage.BlobStore) *UserHandler {
	return &UserHandler{db: conn, blobs: blobs}
}

func userJSON(user *models.User) gin.H {
	return gin.H{
		"id":            user.ID,
		"name":          user.Name,
		"email":         user.Email,
		"avatar_url":    user.AvatarURL,
		"last_login_at": user.LastLoginAt,
		"created_at":    user.CreatedAt,
	}
}

// List returns users, filtered by an email substring when the email
// query parameter is present.
func (h *UserHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if email := strings.TrimSpace(c.Query("email")); email != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+email+"%")
		query = query.Where(db.CaseInsensitiveLikeExpr(h.db, "email"), pattern)
	}

	var users []models.User
	if errFind := query.Order("name ASC").Limit(100).Find(&users).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query users failed"})
		return
	}
	out := make([]gin.H, 0, len(users))
	for i := range users {
		out = append(out, userJSON(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// Get returns one user by ID.
func (h *UserHandler) Get(c *gin.Context) {
	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).First(&user, "id = ?", c.Param("id")).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			respondError(c, apperr.NotFound("user not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}
	c.JSON(http.StatusOK, userJSON(&user))
}

// UpdateMe updates the authenticated user's profile. Requests may be
// JSON, or multipart form data carrying an avatar image that is pushed
// to the blob store.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	actorID := httpmw.CurrentUserID(c)
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, "id = ?", actorID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			respondError(c, apperr.NotFound("user not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}

	updates := map[string]any{}
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if name := strings.TrimSpace(c.PostForm("name")); name != "" {
			updates["name"] = name
		}
		avatarURL, errUpload := h.uploadedFileURL(c, "avatar")
		if errUpload != nil {
			respondError(c, errUpload)
			return
		}
		if avatarURL != "" {
			updates["avatar_url"] = avatarURL
		}
	} else {
		var body struct {
			Name      *string `json:"name"`
			AvatarURL *string `json:"avatar_url"`
		}
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if body.Name != nil && strings.TrimSpace(*body.Name) != "" {
			updates["name"] = strings.TrimSpace(*body.Name)
		}
		if body.AvatarURL != nil {
			updates["avatar_url"] = strings.TrimSpace(*body.AvatarURL)
		}
	}

	if len(updates) > 0 {
		if errSave := h.db.WithContext(c.Request.Context()).Model(&user).Updates(updates).Error; errSave != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update user failed"})
			return
		}
	}
	c.JSON(http.StatusOK, userJSON(&user))
}

// Delete removes the authenticated user's own account together with
// its sessions and memberships. Groups and content the user created
// stay behind.
func (h *UserHandler) Delete(c *gin.Context) {
	actorID := httpmw.CurrentUserID(c)
	targetID := c.Param("id")
	if targetID != actorID {
		respondError(c, apperr.Forbidden("only your own account can be deleted"))
		return
	}

	errTx := writeTx(c, h.db, func(tx *gorm.DB) error {
		var user models.User
		if errFind := tx.First(&user, "id = ?", targetID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apperr.NotFound("user not found")
			}
			return errFind
		}
		if errSessions := tx.Where("user_id = ?", targetID).Delete(&models.Session{}).Error; errSessions != nil {
			return errSessions
		}
		if errMemberships := tx.Where("user_id = ?", targetID).Delete(&models.Membership{}).Error; errMemberships != nil {
			return errMemberships
		}
		return tx.Delete(&user).Error
	})
	if errTx != nil {
		respondError(c, errTx)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// uploadedFileURL uploads the named multipart file to the blob store
// and returns its public URL, or "" when the part is absent.
func (h *UserHandler) uploadedFileURL(c *gin.Context, field string) (string, error) {
	return uploadFormFile(c, h.blobs, field)
}

func uploadFormFile(c *gin.Context, blobs storage.BlobStore, field string) (string, error) {
	header, errForm := c.FormFile(field)
	if errForm != nil {
		return "", nil
	}
	if blobs == nil {
		return "", apperr.InvalidInput("file uploads are not configured")
	}
	if header.Size > maxUploadBytes {
		return "", apperr.InvalidInput(fmt.Sprintf("file exceeds %d bytes", maxUploadBytes))
	}
	file, errOpen := header.Open()
	if errOpen != nil {
		return "", errOpen
	}
	defer file.Close()
	data, errRead := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if errRead != nil {
		return "", errRead
	}
	if len(data) > maxUploadBytes {
		return "", apperr.InvalidInput(fmt.Sprintf("file exceeds %d bytes", maxUploadBytes))
	}
	contentType := header.Header.Get("Content-Type")
	return blobs.Upload(c.Request.Context(), header.Filename, contentType, data)
}
