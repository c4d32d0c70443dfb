// Package config assembles runtime settings from defaults, an optional YAML
// file, a .env file, COSTGATE_* environment variables and command-line flags,
// in that order of increasing precedence.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/revittco/costgate/internal/upstream"
)

const (
	ModeStdio = "stdio"
	ModeHTTP  = "http"
)

// Config holds application configuration.
type Config struct {
	Mode        string `yaml:"mode"`      // "stdio" or "http"
	HTTPAddr    string `yaml:"http_addr"` // "127.0.0.1:8080"
	ExternalURL string `yaml:"external_url"`

	UpstreamURL     string        `yaml:"upstream_url"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"` // 0 means no client timeout
	MaxResults      int           `yaml:"max_results"`
	CacheTTL        time.Duration `yaml:"cache_ttl"` // 0 disables the response cache
	IdentityTTL     time.Duration `yaml:"identity_ttl"`

	OperatorDomain  string `yaml:"operator_domain"`
	OperatorContext string `yaml:"operator_context"`

	DBDSN      string `yaml:"db_dsn"`
	RedisURL   string `yaml:"redis_url"`
	AgeKeyPath string `yaml:"age_key_path"`
	// SessionTTL expires customer contexts in Redis. 0 keeps them, matching
	// the sqlite backend.
	SessionTTL time.Duration `yaml:"session_ttl"`

	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	LogLevel          string        `yaml:"log_level"`
	AdminToken        string        `yaml:"admin_token"`
	AuditRedact       []string      `yaml:"audit_redact"`

	// Credentials for stdio mode. Never read from the YAML file.
	APIKey          string `yaml:"-"`
	CustomerContext string `yaml:"-"`
}

// Default returns a Config with every field at its built-in value.
func Default() *Config {
	return &Config{
		Mode:              ModeStdio,
		HTTPAddr:          "127.0.0.1:8080",
		UpstreamURL:       upstream.DefaultBaseURL,
		MaxResults:        upstream.DefaultMaxResults,
		CacheTTL:          time.Minute,
		IdentityTTL:       5 * time.Minute,
		OperatorDomain:    "doit.com",
		OperatorContext:   "EE8CtpzYiKp0dVAESVrB",
		DBDSN:             defaultDataPath("costgate.db"),
		TokenTTL:          24 * time.Hour,
		HeartbeatInterval: 30 * time.Second,
		LogLevel:          "info",
	}
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// defaultDataPath returns ~/.costgate/<filename>, falling back to
// a CWD-relative path if the home directory can't be resolved.
func defaultDataPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filename
	}
	return filepath.Join(home, ".costgate", filename)
}
