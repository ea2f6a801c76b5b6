package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/worshipd/worshipd/internal/apperr"
	"github.com/worshipd/worshipd/internal/db"
	httpmw "github.com/worshipd/worshipd/internal/http"
	"github.com/worshipd/worshipd/internal/models"
	"github.com/worshipd/worshipd/internal/permission"
)

// GroupHandler handles group and membership endpoints.
type GroupHandler struct {
	db *gorm.DB
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(conn *gorm.DB) *GroupHandler {
	return &GroupHandler{db: conn}
}

func groupJSON(group *models.Group) gin.H {
	return gin.H{
		"id":          group.ID,
		"name":        group.Name,
		"description": group.Description,
		"avatar_url":  group.AvatarURL,
		"created_by":  group.CreatedBy,
		"created_at":  group.CreatedAt,
	}
}

func membershipJSON(m *models.Membership) gin.H {
	out := gin.H{
		"user_id":  m.UserID,
		"group_id": m.GroupID,
		"role":     m.Role,
		"since":    m.CreatedAt,
	}
	if m.User != nil {
		out["user"] = userJSON(m.User)
	}
	return out
}

// pageParams reads page/page_size with defaults and caps.
func pageParams(c *gin.Context) (offset, limit int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return (page - 1) * size, size
}

type groupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatar_url"`
}

// Create creates a group; the creator receives an admin membership in
// the same transaction.
func (h *GroupHandler) Create(c *gin.Context) {
	var body groupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing group name"})
		return
	}

	actorID := httpmw.CurrentUserID(c)
	group := models.Group{
		Name:        name,
		Description: strings.TrimSpace(body.Description),
		AvatarURL:   strings.TrimSpace(body.AvatarURL),
		CreatedBy:   actorID,
	}
	errTx := writeTx(c, h.db, func(tx *gorm.DB) error {
		if errCreate := tx.Create(&group).Error; errCreate != nil {
			return errCreate
		}
		membership := models.Membership{
			UserID:  actorID,
			GroupID: group.ID,
			Role:    string(permission.RoleAdmin),
		}
		return tx.Create(&membership).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create group failed"})
		return
	}
	c.JSON(http.StatusCreated, groupJSON(&group))
}

// List returns groups, filtered by a name substring and paginated.
func (h *GroupHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.Group{})
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+q+"%")
		query = query.Where(db.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count groups failed"})
		return
	}
	offset, limit := pageParams(c)
	var groups []models.Group
	if errFind := query.Order("name ASC").Offset(offset).Limit(limit).Find(&groups).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query groups failed"})
		return
	}
	out := make([]gin.H, 0, len(groups))
	for i := range groups {
		out = append(out, groupJSON(&groups[i]))
	}
	c.JSON(http.StatusOK, gin.H{"groups": out, "total": total})
}

// Get returns one group.
func (h *GroupHandler) Get(c *gin.Context) {
	var group models.Group
	errFind := h.db.WithContext(c.Request.Context()).First(&group, "id = ?", c.Param("id")).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			respondError(c, apperr.NotFound("group not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query group failed"})
		return
	}
	c.JSON(http.StatusOK, groupJSON(&group))
}

// Summary returns member, song and setlist counts for a group.
func (h *GroupHandler) Summary(c *gin.Context) {
	groupID := c.Param("id")
	conn := h.db.WithContext(c.Request.Context())

	var group models.Group
	if errFind := conn.First(&group, "id = ?", groupID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			respondError(c, apperr.NotFound("group not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query group failed"})
		return
	}

	var members, musics, setlists int64
	if errCount := conn.Model(&models.Membership{}).Where("group_id = ?", groupID).Count(&members).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count members failed"})
		return
	}
	if errCount := conn.Model(&models.Music{}).Where("group_id = ?", groupID).Count(&musics).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count musics failed"})
		return
	}
	if errCount := conn.Model(&models.Setlist{}).Where("group_id = ?", groupID).Count(&setlists).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count setlists failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"group":    groupJSON(&group),
		"members":  members,
		"musics":   musics,
		"setlists": setlists,
	})
}

// Members lists a group's memberships; any member may look.
func (h *GroupHandler) Members(c *gin.Context) {
	groupID := c.Param("id")
	actorID := httpmw.CurrentUserID(c)
	conn := h.db.WithContext(c.Request.Context())

	if errAuth := permission.RequireMember(conn, actorID, groupID); errAuth != nil {
		respondError(c, errAuth)
		return
	}

	var memberships []models.Membership
	errFind := conn.Preload("User").
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&memberships).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query members failed"})
		return
	}
	out := make([]gin.H, 0, len(memberships))
	for i := range memberships {
		out = append(out, membershipJSON(&memberships[i]))
	}
	c.JSON(http.StatusOK, gin.H{"members": out})
}

// MyGroups lists the groups the authenticated user belongs to.
func (h *GroupHandler) MyGroups(c *gin.Context) {
	actorID := httpmw.CurrentUserID(c)
	var memberships []models.Membership
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Group").
		Where("user_id = ?", actorID).
		Order("created_at ASC").
		Find(&memberships).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query memberships failed"})
		return
	}
	out := make([]gin.H, 0, len(memberships))
	for _, m := range memberships {
		if m.Group == nil {
			continue
		}
		entry := groupJSON(m.Group)
		entry["role"] = m.Role
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"groups": out})
}

// Update edits a group's profile; needs the edit role, the admin role,
// or group creatorship.
func (h *GroupHandler) Update(c *gin.Context) {
	var body groupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	groupID := c.Param("id")
	actorID := httpmw.CurrentUserID(c)

	var group models.Group
	errTx := writeTx(c, h.db, func(tx *gorm.DB) error {
		if errFind := tx.First(&group, "id = ?", groupID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apperr.NotFound("group not found")
			}
			return errFind
		}
		if errAuth := permission.Require(tx, actorID, groupID, permission.RoleEdit); errAuth != nil {
			return errAuth
		}
		updates := map[string]any{}
		if name := strings.TrimSpace(body.Name); name != "" {
			updates["name"] = name
		}
		if body.Description != "" {
			updates["description"] = strings.TrimSpace(body.Description)
		}
		if body.AvatarURL != "" {
			updates["avatar_url"] = strings.TrimSpace(body.AvatarURL)
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&group).Updates(updates).Error
	})
	if errTx != nil {
		respondError(c, errTx)
		return
	}
	c.JSON(http.StatusOK, groupJSON(&group))
}

// Delete removes a group and everything under it: memberships, songs,
// setlists and their entries, in one transaction. Needs the admin role
// or group creatorship.
func (h *GroupHandler) Delete(c *gin.Context) {
	groupID := c.Param("id")
	actorID := httpmw.CurrentUserID(c)

	errTx := writeTx(c, h.db, func(tx *gorm.DB) error {
		var group models.Group
		if errFind := tx.First(&group, "id = ?", groupID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apperr.NotFound("group not found")
			}
			return errFind
		}
		if errAuth := permission.Require(tx, actorID, groupID, permission.RoleAdmin); errAuth != nil {
			return errAuth
		}
		return deleteGroupTree(tx, groupID)
	})
	if errTx != nil {
		respondError(c, errTx)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// deleteGroupTree removes a group and its dependent rows. Runs in the
// caller's transaction.
func deleteGroupTree(tx *gorm.DB, groupID string) error {
	var setlistIDs []string
	if errFind := tx.Model(&models.Setlist{}).
		Where("group_id = ?", groupID).
		Pluck("id", &setlistIDs).Error; errFind != nil {
		return errFind
	}
	if len(setlistIDs) > 0 {
		if errEntries := tx.Where("setlist_id IN ?", setlistIDs).Delete(&models.SetlistEntry{}).Error; errEntries != nil {
			return errEntries
		}
		if errSetlists := tx.Where("id IN ?", setlistIDs).Delete(&models.Setlist{}).Error; errSetlists != nil {
			return errSetlists
		}
	}
	if errMusics := tx.Where("group_id = ?", groupID).Delete(&models.Music{}).Error; errMusics != nil {
		return errMusics
	}
	if errMembers := tx.Where("group_id = ?", groupID).Delete(&models.Membership{}).Error; errMembers != nil {
		return errMembers
	}
	return tx.Where("id = ?", groupID).Delete(&models.Group{}).Error
}

type memberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// AddMember adds a user to the group or updates an existing member's
// role. Needs the admin role or group creatorship; the first member of
// an empty group always becomes admin.
func (h *GroupHandler) AddMember(c *gin.Context) {
	var body memberRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.UserID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user_id"})
		return
	}
	role, errRole := permission.ParseRole(body.Role)
	if errRole != nil {
		respondError(c, errRole)
		return
	}

	var membership *models.Membership
	errTx := writeTx(c, h.db, func(tx *gorm.DB) error {
		var errAdd error
		membership, errAdd = permission.AddMember(tx, httpmw.CurrentUserID(c), c.Param("id"), body.UserID, role)
		return errAdd
	})
	if errTx != nil {
		respondError(c, errTx)
		return
	}
	c.JSON(http.StatusCreated, membershipJSON(membership))
}

// Join adds the authenticated user to the group with the view role.
// The first member of an empty group becomes admin.
func (h *GroupHandler) Join(c *gin.Context) {
	groupID := c.Param("id")
	actorID := httpmw.CurrentUserID(c)

	var membership models.Membership
	errTx := writeTx(c, h.db, func(tx *gorm.DB) error {
		var group models.Group
		if errFind := tx.First(&group, "id = ?", groupID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apperr.NotFound("group not found")
			}
			return errFind
		}
		var existing models.Membership
		errExisting := tx.Where("user_id = ? AND group_id = ?", actorID, groupID).First(&existing).Error
		if errExisting == nil {
			return apperr.Conflict("already a member of this group")
		}
		if !errors.Is(errExisting, gorm.ErrRecordNotFound) {
			return errExisting
		}

		role := permission.RoleView
		var count int64
		if errCount := tx.Model(&models.Membership{}).Where("group_id = ?", groupID).Count(&count).Error; errCount != nil {
			return errCount
		}
		if count == 0 {
			role = permission.RoleAdmin
		}
		membership = models.Membership{UserID: actorID, GroupID: groupID, Role: string(role)}
		return tx.Create(&membership).Error
	})
	if errTx != nil {
		respondError(c, errTx)
		return
	}
	c.JSON(http.StatusCreated, membershipJSON(&membership))
}

// ChangeRole updates a member's role. Needs the admin role or group
// creatorship; the creator's admin role is immutable.
func (h *GroupHandler) ChangeRole(c *gin.Context) {
	var body struct {
		Role string `json:"role"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	role, errRole := permission.ParseRole(body.Role)
	if errRole != nil {
		respondError(c, errRole)
		return
	}

	var membership *models.Membership
	errTx := writeTx(c, h.db, func(tx *gorm.DB) error {
		var errChange error
		membership, errChange = permission.ChangeRole(tx, httpmw.CurrentUserID(c), c.Param("id"), c.Param("userID"), role)
		return errChange
	})
	if errTx != nil {
		respondError(c, errTx)
		return
	}
	c.JSON(http.StatusOK, membershipJSON(membership))
}

// RemoveMember removes another member from the group. Needs the admin
// role or group creatorship; self-removal must use Leave.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	errTx := writeTx(c, h.db, func(tx *gorm.DB) error {
		return permission.RemoveMember(tx, httpmw.CurrentUserID(c), c.Param("id"), c.Param("userID"))
	})
	if errTx != nil {
		respondError(c, errTx)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// Leave removes the authenticated user's own membership. A departing
// last admin hands admin to the oldest remaining member; the last
// member leaving deletes the group.
func (h *GroupHandler) Leave(c *gin.Context) {
	groupID := c.Param("id")
	groupDeleted := false
	errTx := writeTx(c, h.db, func(tx *gorm.DB) error {
		lastMember, errLeave := permission.Leave(tx, httpmw.CurrentUserID(c), groupID)
		if errLeave != nil {
			return errLeave
		}
		if lastMember {
			groupDeleted = true
			return deleteGroupTree(tx, groupID)
		}
		return nil
	})
	if errTx != nil {
		respondError(c, errTx)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left", "group_deleted": groupDeleted})
}
