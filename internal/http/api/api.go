// Package api registers the REST routes.
package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/worshipd/worshipd/internal/config"
	httpmw "github.com/worshipd/worshipd/internal/http"
	"github.com/worshipd/worshipd/internal/http/api/handlers"
	"github.com/worshipd/worshipd/internal/identity"
	"github.com/worshipd/worshipd/internal/lyrics"
	"github.com/worshipd/worshipd/internal/setlist"
	"github.com/worshipd/worshipd/internal/storage"
)

// Dependencies carries everything the handlers need. Provider, Blobs
// and the locator's cache may be nil when unconfigured.
type Dependencies struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Provider identity.Provider
	Blobs    storage.BlobStore
	Locator  *lyrics.Locator
	Engine   *setlist.Engine
}

// RegisterRoutes wires all API routes onto the engine.
func RegisterRoutes(r *gin.Engine, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.DB, deps.Cfg.Auth, deps.Provider)
	userHandler := handlers.NewUserHandler(deps.DB, deps.Blobs)
	groupHandler := handlers.NewGroupHandler(deps.DB)
	musicHandler := handlers.NewMusicHandler(deps.DB, deps.Blobs, deps.Locator)
	setlistHandler := handlers.NewSetlistHandler(deps.DB, deps.Engine)
	lyricsHandler := handlers.NewLyricsHandler(deps.Locator)

	root := r.Group("/api")
	root.POST("/auth/register", authHandler.Register)
	root.POST("/auth/login", authHandler.Login)

	authed := root.Group("")
	authed.Use(httpmw.AuthMiddleware(deps.DB, deps.Cfg.Auth.JWTSecret))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/users", userHandler.List)
	authed.GET("/users/:id", userHandler.Get)
	authed.PUT("/users/me", userHandler.UpdateMe)
	authed.DELETE("/users/:id", userHandler.Delete)

	authed.POST("/groups", groupHandler.Create)
	authed.GET("/groups", groupHandler.List)
	authed.GET("/me/groups", groupHandler.MyGroups)
	authed.GET("/groups/:id", groupHandler.Get)
	authed.GET("/groups/:id/summary", groupHandler.Summary)
	authed.GET("/groups/:id/members", groupHandler.Members)
	authed.PUT("/groups/:id", groupHandler.Update)
	authed.DELETE("/groups/:id", groupHandler.Delete)
	authed.POST("/groups/:id/members", groupHandler.AddMember)
	authed.POST("/groups/:id/join", groupHandler.Join)
	authed.PUT("/groups/:id/members/:userID", groupHandler.ChangeRole)
	authed.DELETE("/groups/:id/members/:userID", groupHandler.RemoveMember)
	authed.DELETE("/groups/:id/leave", groupHandler.Leave)

	authed.POST("/groups/:id/musics", musicHandler.Create)
	authed.GET("/groups/:id/musics", musicHandler.List)
	authed.GET("/musics/:id", musicHandler.Get)
	authed.PUT("/musics/:id", musicHandler.Update)
	authed.DELETE("/musics/:id", musicHandler.Delete)

	authed.POST("/setlists", setlistHandler.Create)
	authed.GET("/setlists/:id", setlistHandler.Get)
	authed.GET("/groups/:id/setlists", setlistHandler.ListByGroup)
	authed.PUT("/setlists/:id", setlistHandler.Update)
	authed.DELETE("/setlists/:id", setlistHandler.Delete)
	authed.POST("/setlists/:id/musics", setlistHandler.AddMusic)
	authed.DELETE("/setlists/:id/musics/:musicID", setlistHandler.RemoveMusic)
	authed.PUT("/setlists/:id/musics/:musicID/position", setlistHandler.MoveMusic)

	authed.GET("/lyrics/search", lyricsHandler.Search)
	authed.POST("/lyrics/extract", lyricsHandler.Extract)
	authed.GET("/lyrics/youtube-thumbnail", lyricsHandler.YouTubeThumbnail)
}
