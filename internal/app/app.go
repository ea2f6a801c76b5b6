// Package app boots the server: configuration, logging, storage and
// the HTTP listener.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/worshipd/worshipd/internal/config"
	"github.com/worshipd/worshipd/internal/db"
	"github.com/worshipd/worshipd/internal/http/api"
	"github.com/worshipd/worshipd/internal/identity"
	"github.com/worshipd/worshipd/internal/logging"
	"github.com/worshipd/worshipd/internal/lyrics"
	"github.com/worshipd/worshipd/internal/setlist"
	"github.com/worshipd/worshipd/internal/storage"
)

// Migrate opens the database and runs migrations.
func Migrate(_ context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the API server and serves until ctx is cancelled.
func RunServer(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	if errLog := logging.Setup(cfg.Log); errLog != nil {
		return errLog
	}

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	deps := api.Dependencies{
		DB:     conn,
		Cfg:    cfg,
		Engine: setlist.NewEngine(conn),
	}
	if provider := identity.NewGoogleProvider(cfg.Identity); provider != nil {
		deps.Provider = provider
	}
	blobs, errBlobs := storage.NewDriveStore(ctx, cfg.Drive)
	if errBlobs != nil {
		return errBlobs
	}
	if blobs != nil {
		deps.Blobs = blobs
	}

	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if errPing := cache.Ping(ctx).Err(); errPing != nil {
			log.WithError(errPing).Warn("redis unreachable, lyrics cache disabled")
			cache = nil
		}
	}
	deps.Locator = lyrics.NewLocator(cfg.Lyrics, cache)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	api.RegisterRoutes(r, deps)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("server listening")
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return <-errCh
	case errServe := <-errCh:
		return errServe
	}
}
