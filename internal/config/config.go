// Package config loads the process configuration from a YAML file.
// The loaded struct is passed down explicitly; no package keeps
// module-level mutable config state.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable overriding the config
// file location.
const EnvConfigPath = "WORSHIPD_CONFIG"

// defaultConfigPath is used when neither flag nor env var is set.
const defaultConfigPath = "config.yaml"

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Identity IdentityConfig `yaml:"identity"`
	Drive    DriveConfig    `yaml:"drive"`
	Lyrics   LyricsConfig   `yaml:"lyrics"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"` // Listen address, default ":8317".
}

// DatabaseConfig points at the relational store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // SQLite path or PostgreSQL DSN.
}

// AuthConfig controls credential issuance.
type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt-secret"`
	JWTExpiry      time.Duration `yaml:"jwt-expiry"`       // Default 24h.
	SessionTTLDays int           `yaml:"session-ttl-days"` // 0 keeps sessions non-expiring.
}

// IdentityConfig points at the external identity provider. Empty
// APIKey disables provider-backed login.
type IdentityConfig struct {
	APIKey   string `yaml:"api-key"`
	Endpoint string `yaml:"endpoint"` // Override for tests, default Google identitytoolkit.
}

// DriveConfig configures the blob store. Empty CredentialsFile
// disables uploads.
type DriveConfig struct {
	CredentialsFile string `yaml:"credentials-file"` // Service account JSON path.
	FolderID        string `yaml:"folder-id"`        // Destination folder.
}

// LyricsConfig configures the lyrics locator.
type LyricsConfig struct {
	GoogleAPIKey   string        `yaml:"google-api-key"`
	SearchEngineID string        `yaml:"search-engine-id"`
	CacheTTL       time.Duration `yaml:"cache-ttl"` // Default 24h when redis is configured.
}

// RedisConfig enables the optional lookup cache. Empty Addr disables
// it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig controls process logging.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error; default info.
	Format     string `yaml:"format"` // text or json; default text.
	File       string `yaml:"file"`   // Empty logs to stdout.
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// ResolvePath picks the config file path from the flag value, the
// environment, or the default, in that order.
func ResolvePath(flagValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(EnvConfigPath)); v != "" {
		return v
	}
	return defaultConfigPath
}

// Load reads and validates the configuration file.
func Load(path string) (*Config, error) {
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	var cfg Config
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
	}
	cfg.applyDefaults()
	if errValidate := cfg.validate(); errValidate != nil {
		return nil, errValidate
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = ":8317"
	}
	if c.Auth.JWTExpiry <= 0 {
		c.Auth.JWTExpiry = 24 * time.Hour
	}
	if c.Lyrics.CacheTTL <= 0 {
		c.Lyrics.CacheTTL = 24 * time.Hour
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if strings.TrimSpace(c.Log.Format) == "" {
		c.Log.Format = "text"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 10
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 30
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database.dsn is required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("config: auth.jwt-secret is required")
	}
	if c.Auth.SessionTTLDays < 0 {
		return fmt.Errorf("config: auth.session-ttl-days must not be negative")
	}
	return nil
}
