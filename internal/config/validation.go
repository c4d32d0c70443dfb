package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError holds all validation failures for a config.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %s", strings.Join(e.Errors, "; "))
}

// Validate checks the assembled config for correctness.
func (c *Config) Validate() error {
	var errs []string

	if err := validateMode(c.Mode); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateURL("upstream_url", c.UpstreamURL); err != nil {
		errs = append(errs, err.Error())
	}
	if c.ExternalURL != "" {
		if err := validateURL("external_url", c.ExternalURL); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c.OperatorDomain == "" {
		errs = append(errs, "operator_domain is required")
	}
	if c.OperatorContext == "" {
		errs = append(errs, "operator_context is required")
	}
	if c.MaxResults <= 0 {
		errs = append(errs, fmt.Sprintf("max_results must be positive, got %d", c.MaxResults))
	}
	if c.CacheTTL < 0 || c.IdentityTTL < 0 {
		errs = append(errs, "cache ttls must not be negative")
	}
	if c.SessionTTL < 0 {
		errs = append(errs, "session_ttl must not be negative")
	}
	if c.Mode == ModeHTTP {
		if c.TokenTTL <= 0 {
			errs = append(errs, "token_ttl must be positive")
		}
		if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
			errs = append(errs, "jwt_secret must be at least 32 bytes")
		}
	}
	if c.Mode == ModeStdio && c.APIKey == "" {
		errs = append(errs, "COSTGATE_API_KEY (or DOIT_API_KEY) is required in stdio mode")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func validateMode(m string) error {
	switch m {
	case ModeStdio, ModeHTTP:
		return nil
	default:
		return fmt.Errorf("invalid mode %q (must be stdio or http)", m)
	}
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", field, raw)
	}
	return nil
}
