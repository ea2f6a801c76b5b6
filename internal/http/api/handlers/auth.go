package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/worshipd/worshipd/internal/apperr"
	"github.com/worshipd/worshipd/internal/config"
	httpmw "github.com/worshipd/worshipd/internal/http"
	"github.com/worshipd/worshipd/internal/identity"
	"github.com/worshipd/worshipd/internal/models"
	"github.com/worshipd/worshipd/internal/security"
)

// AuthHandler handles registration, login and session endpoints.
type AuthHandler struct {
	db       *gorm.DB
	authCfg  config.AuthConfig
	provider identity.Provider
}

// NewAuthHandler constructs an AuthHandler. provider may be nil for
// local-only accounts.
func NewAuthHandler(db *gorm.DB, authCfg config.AuthConfig, provider identity.Provider) *AuthHandler {
	return &AuthHandler{db: db, authCfg: authCfg, provider: provider}
}

// registerRequest defines the request body for user registration.
type registerRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	AvatarURL string `json:"avatar_url"`
}

// Register creates a new user account. When an identity provider is
// configured the credentials are registered there too and the
// provider subject is stored on the user.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	email := strings.ToLower(strings.TrimSpace(body.Email))
	password := strings.TrimSpace(body.Password)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	if email == "" || !strings.Contains(email, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid email"})
		return
	}
	if len(password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters"})
		return
	}

	var exists models.User
	errCheck := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&exists).Error
	if errCheck == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}
	if !errors.Is(errCheck, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}

	subjectID := ""
	if h.provider != nil {
		account, errSignUp := h.provider.SignUp(c.Request.Context(), email, password)
		if errSignUp != nil {
			respondError(c, errSignUp)
			return
		}
		subjectID = account.SubjectID
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	user := models.User{
		SubjectID:    subjectID,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		AvatarURL:    strings.TrimSpace(body.AvatarURL),
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}
	c.JSON(http.StatusCreated, userJSON(&user))
}

// loginRequest defines the request body for login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies the credentials, records the login time, and issues
// both a JWT and an opaque session token. Any prior session for the
// user is replaced, so one session is active per user.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	password := strings.TrimSpace(body.Password)
	if email == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email or password"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}

	if h.provider != nil && user.SubjectID != "" {
		if _, errSignIn := h.provider.SignIn(c.Request.Context(), email, password); errSignIn != nil {
			respondError(c, errSignIn)
			return
		}
	} else if user.PasswordHash == "" || !security.CheckPassword(user.PasswordHash, password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	sessionToken, errToken := security.NewSessionToken()
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mint session failed"})
		return
	}

	now := time.Now().UTC()
	session := models.Session{Token: sessionToken, UserID: user.ID}
	if h.authCfg.SessionTTLDays > 0 {
		expires := now.AddDate(0, 0, h.authCfg.SessionTTLDays)
		session.ExpiresAt = &expires
	}

	errTx := writeTx(c, h.db, func(tx *gorm.DB) error {
		if errTouch := tx.Model(&models.User{}).Where("id = ?", user.ID).
			Update("last_login_at", now).Error; errTouch != nil {
			return errTouch
		}
		if errPurge := tx.Where("user_id = ?", user.ID).Delete(&models.Session{}).Error; errPurge != nil {
			return errPurge
		}
		return tx.Create(&session).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record login failed"})
		return
	}
	user.LastLoginAt = &now

	jwtToken, errJWT := security.GenerateToken(h.authCfg.JWTSecret, user.ID, user.Name, user.Email, h.authCfg.JWTExpiry)
	if errJWT != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":         jwtToken,
		"session_token": sessionToken,
		"user":          userJSON(&user),
	})
}

// Logout deletes the presented session. A JWT-authenticated request
// without a session credential is still a successful logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(httpmw.ContextSessionToken)
	if token == "" {
		var body struct {
			SessionToken string `json:"session_token"`
		}
		if errBind := c.ShouldBindJSON(&body); errBind == nil {
			token = strings.TrimSpace(body.SessionToken)
		}
	}
	if token != "" {
		if errDelete := h.db.WithContext(c.Request.Context()).
			Where("token = ?", token).Delete(&models.Session{}).Error; errDelete != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete session failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).First(&user, "id = ?", httpmw.CurrentUserID(c)).Error
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
