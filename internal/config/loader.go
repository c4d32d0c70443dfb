package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Sources names the optional files Load reads. Empty paths are skipped.
type Sources struct {
	File    string // YAML config
	EnvFile string // dotenv file
}

// Load builds a Config from defaults, the YAML file, the dotenv file and the
// process environment. Real environment variables win over the dotenv file.
// Flags are layered on afterwards with Flags.Apply.
func Load(src Sources) (*Config, error) {
	cfg := Default()

	if src.File != "" {
		data, err := os.ReadFile(src.File)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}

	dotenv := map[string]string{}
	if src.EnvFile != "" {
		m, err := godotenv.Read(src.EnvFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read env file: %w", err)
		}
		if m != nil {
			dotenv = m
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok && v != ""
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML data over cfg. Unknown keys are an error.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok {
				*dst = v
				return
			}
		}
	}
	var errs []error
	dur := func(dst *time.Duration, key string) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str(&cfg.Mode, "COSTGATE_MODE")
	str(&cfg.HTTPAddr, "COSTGATE_HTTP_ADDR")
	str(&cfg.ExternalURL, "COSTGATE_EXTERNAL_URL")
	str(&cfg.UpstreamURL, "COSTGATE_UPSTREAM_URL")
	dur(&cfg.UpstreamTimeout, "COSTGATE_UPSTREAM_TIMEOUT")
	dur(&cfg.CacheTTL, "COSTGATE_CACHE_TTL")
	dur(&cfg.IdentityTTL, "COSTGATE_IDENTITY_TTL")
	str(&cfg.OperatorDomain, "COSTGATE_OPERATOR_DOMAIN")
	str(&cfg.OperatorContext, "COSTGATE_OPERATOR_CONTEXT")
	str(&cfg.DBDSN, "COSTGATE_DB_DSN")
	str(&cfg.RedisURL, "COSTGATE_REDIS_URL")
	str(&cfg.AgeKeyPath, "COSTGATE_AGE_KEY")
	dur(&cfg.SessionTTL, "COSTGATE_SESSION_TTL")
	str(&cfg.JWTSecret, "COSTGATE_JWT_SECRET")
	dur(&cfg.TokenTTL, "COSTGATE_TOKEN_TTL")
	dur(&cfg.HeartbeatInterval, "COSTGATE_HEARTBEAT_INTERVAL")
	str(&cfg.LogLevel, "COSTGATE_LOG_LEVEL")
	str(&cfg.AdminToken, "COSTGATE_ADMIN_TOKEN")
	str(&cfg.APIKey, "COSTGATE_API_KEY", "DOIT_API_KEY")
	str(&cfg.CustomerContext, "COSTGATE_CUSTOMER_CONTEXT", "CUSTOMER_CONTEXT")

	if v, ok := lookup("COSTGATE_MAX_RESULTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("COSTGATE_MAX_RESULTS: %w", err))
		} else {
			cfg.MaxResults = n
		}
	}
	if v, ok := lookup("COSTGATE_AUDIT_REDACT"); ok {
		cfg.AuditRedact = splitList(v)
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
