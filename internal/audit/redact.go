package audit

import (
	"encoding/json"
	"strings"
)

// sensitiveKeys are matched case-insensitively as substrings of argument
// names. pageToken is a cursor, not a secret, so bare "token" is not listed.
var sensitiveKeys = []string{
	"apikey",
	"api_key",
	"accesstoken",
	"access_token",
	"secret",
	"password",
	"authorization",
	"credential",
}

const redactedValue = "[REDACTED]"

// Redact returns params with sensitive values replaced, at any depth.
// Input that is not JSON is returned unchanged.
func Redact(params json.RawMessage, extra []string) json.RawMessage {
	if len(params) == 0 {
		return params
	}
	var v any
	if err := json.Unmarshal(params, &v); err != nil {
		return params
	}
	if !redactValue(v, extra) {
		return params
	}
	out, err := json.Marshal(v)
	if err != nil {
		return params
	}
	return out
}

// redactValue rewrites v in place and reports whether anything changed.
func redactValue(v any, extra []string) bool {
	changed := false
	switch x := v.(type) {
	case map[string]any:
		for k, child := range x {
			if sensitive(k, extra) {
				x[k] = redactedValue
				changed = true
				continue
			}
			if redactValue(child, extra) {
				changed = true
			}
		}
	case []any:
		for _, child := range x {
			if redactValue(child, extra) {
				changed = true
			}
		}
	}
	return changed
}

func sensitive(key string, extra []string) bool {
	lower := strings.ToLower(key)
	for _, k := range sensitiveKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	for _, k := range extra {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
