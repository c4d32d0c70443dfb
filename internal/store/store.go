package store

import (
	"context"
	"time"
)

// Store is the composite interface for all data access.
type Store interface {
	SessionStore
	GrantStore
	ClientStore
	AuditStore
	Ping(ctx context.Context) error
	Close() error
}

// SessionStore persists the customer context bound to a credential.
// Implementations key rows by a digest of the credential, never the raw key.
type SessionStore interface {
	// SaveCustomerContext overwrites the context for credential. An empty
	// context is rejected with ErrEmptyContext.
	SaveCustomerContext(ctx context.Context, credential, customerContext string) error
	// LoadCustomerContext returns ErrNotFound when no context has been set.
	LoadCustomerContext(ctx context.Context, credential string) (string, error)
	DeleteCustomerContext(ctx context.Context, credential string) error
}

// GrantStore manages OAuth grants issued by the consent flow.
type GrantStore interface {
	CreateGrant(ctx context.Context, g *Grant) error
	GetGrant(ctx context.Context, id string) (*Grant, error)
	// ConsumeGrantCode atomically clears the authorization code of the grant
	// whose code digest matches and returns the grant. A second call with
	// the same code returns ErrNotFound.
	ConsumeGrantCode(ctx context.Context, codeHash string) (*Grant, error)
	DeleteGrant(ctx context.Context, id string) error
	DeleteExpiredGrants(ctx context.Context, before time.Time) (int, error)
}

// ClientStore manages dynamically registered OAuth clients.
type ClientStore interface {
	CreateOAuthClient(ctx context.Context, c *OAuthClient) error
	GetOAuthClient(ctx context.Context, id string) (*OAuthClient, error)
}

// AuditStore manages tool call audit records.
type AuditStore interface {
	InsertAuditRecord(ctx context.Context, r *AuditRecord) error
	QueryAuditRecords(ctx context.Context, f AuditFilter) ([]AuditRecord, int, error)
}
