package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// CustomerSession is the persisted customer context for one credential.
type CustomerSession struct {
	CredentialHash  string    `json:"credential_hash"`
	CustomerContext string    `json:"customer_context"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Grant is an OAuth grant created when a consent request is approved.
// Props are age-encrypted and opaque to the store.
type Grant struct {
	ID             string          `json:"id"`
	ClientID       string          `json:"client_id"`
	UserID         string          `json:"user_id"`
	Scope          json.RawMessage `json:"scope,omitempty"`
	RedirectURI    string          `json:"redirect_uri"`
	EncryptedProps []byte          `json:"-"`
	CodeHash       string          `json:"-"`
	CodeChallenge  string          `json:"-"`
	CodeExpiresAt  time.Time       `json:"code_expires_at"`
	CreatedAt      time.Time       `json:"created_at"`
}

// OAuthClient is an MCP client registered through dynamic client registration.
type OAuthClient struct {
	ID           string          `json:"client_id"`
	Name         string          `json:"client_name"`
	RedirectURIs json.RawMessage `json:"redirect_uris"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AuditRecord represents a single tool call.
type AuditRecord struct {
	ID              string          `json:"id"`
	Timestamp       time.Time       `json:"timestamp"`
	SessionID       string          `json:"session_id"`
	Transport       string          `json:"transport"`
	CustomerContext string          `json:"customer_context"`
	ToolName        string          `json:"tool_name"`
	ParamsRedacted  json.RawMessage `json:"params_redacted,omitempty"`
	Status          string          `json:"status"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	LatencyMs       int             `json:"latency_ms"`
	ResponseSize    int             `json:"response_size"`
}

// AuditFilter specifies query parameters for listing audit records.
type AuditFilter struct {
	ToolName *string    `json:"tool_name,omitempty"`
	Status   *string    `json:"status,omitempty"`
	After    *time.Time `json:"after,omitempty"`
	Limit    int        `json:"limit"`
	Offset   int        `json:"offset"`
}

// HashCredential returns the hex SHA-256 digest used to key credential rows.
func HashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
