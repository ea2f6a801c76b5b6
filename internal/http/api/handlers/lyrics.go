package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/worshipd/worshipd/internal/lyrics"
)

// LyricsHandler exposes the lyrics locator.
type LyricsHandler struct {
	locator *lyrics.Locator
}

// NewLyricsHandler constructs a LyricsHandler.
func NewLyricsHandler(locator *lyrics.Locator) *LyricsHandler {
	return &LyricsHandler{locator: locator}
}

// Search returns lyrics page candidates for the q parameter.
func (h *LyricsHandler) Search(c *gin.Context) {
	results, errSearch := h.locator.Search(c.Request.Context(), c.Query("q"))
	if errSearch != nil {
		respondError(c, errSearch)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Extract pulls title, author and lyrics text out of a lyrics page.
func (h *LyricsHandler) Extract(c *gin.Context) {
	var body struct {
		URL string `json:"url"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing url"})
		return
	}

	extraction, errExtract := h.locator.Extract(c.Request.Context(), strings.TrimSpace(body.URL))
	if errExtract != nil {
		respondError(c, errExtract)
		return
	}
	c.JSON(http.StatusOK, extraction)
}

// YouTubeThumbnail resolves a watch URL to its high-res thumbnail.
func (h *LyricsHandler) YouTubeThumbnail(c *gin.Context) {
	videoURL := strings.TrimSpace(c.Query("url"))
	if videoURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing url"})
		return
	}
	thumbnail, errThumb := h.locator.YouTubeThumbnail(c.Request.Context(), videoURL)
	if errThumb != nil {
		respondError(c, errThumb)
		return
	}
	c.JSON(http.StatusOK, gin.H{"thumbnail_url": thumbnail})
}
