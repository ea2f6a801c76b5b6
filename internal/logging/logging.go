// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/worshipd/worshipd/internal/config"
)

// Setup applies the log configuration to the logrus standard logger.
// When a file is configured, output goes through a size-rotated writer.
func Setup(cfg config.LogConfig) error {
	level, errParse := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if errParse != nil {
		return fmt.Errorf("logging: parse level %q: %w", cfg.Level, errParse)
	}
	log.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	if file := strings.TrimSpace(cfg.File); file != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	return nil
}
