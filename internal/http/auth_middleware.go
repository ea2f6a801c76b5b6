// Package http carries the gin middleware shared by the API routes.
package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/worshipd/worshipd/internal/models"
	"github.com/worshipd/worshipd/internal/security"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID       = "userID"
	ContextSessionToken = "sessionToken"
)

// AuthMiddleware authenticates the request from the Authorization
// bearer credential. A JWT is accepted first; anything that does not
// parse as one is tried as an opaque session token.
func AuthMiddleware(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		claims, errParse := security.ParseToken(jwtSecret, token)
		if errParse == nil {
			c.Set(ContextUserID, claims.UserID)
			c.Next()
			return
		}
		if errors.Is(errParse, security.ErrExpiredToken) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
			return
		}

		var session models.Session
		errFind := db.WithContext(c.Request.Context()).Where("token = ?", token).First(&session).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "query session failed"})
			return
		}
		if session.Expired(time.Now().UTC()) {
			db.WithContext(c.Request.Context()).Delete(&session)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}

		c.Set(ContextUserID, session.UserID)
		c.Set(ContextSessionToken, session.Token)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user ID set by
// AuthMiddleware.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return header
}
