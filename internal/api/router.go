// Package api serves the HTTP surface: the OAuth authorization server and
// consent pages, MCP over streamable HTTP and SSE, health, metrics and an
// optional admin API.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/revittco/costgate/internal/audit"
	"github.com/revittco/costgate/internal/cache"
	"github.com/revittco/costgate/internal/consent"
	"github.com/revittco/costgate/internal/gateway"
	"github.com/revittco/costgate/internal/metrics"
	"github.com/revittco/costgate/internal/oauth"
	"github.com/revittco/costgate/internal/store"
)

// RouterDeps holds the dependencies needed by the HTTP router.
type RouterDeps struct {
	Store    store.Store
	Sessions pinger // optional; the Redis session backend when configured
	Provider *oauth.Provider
	Consent  *consent.Workflow
	Gateway  *gateway.Handler
	Metrics  *metrics.Metrics

	// Responses is the upstream response cache, for admin stats.
	Responses *cache.Cache[json.RawMessage]
	// IdentityTTL bounds how long a raw API key's classification is reused.
	IdentityTTL time.Duration

	AuditBus          *audit.Bus // optional; enables the live audit stream
	AdminToken        string     // empty disables /api/v1
	HeartbeatInterval time.Duration
	Version           string
}

func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	oh := &oauthHandler{provider: deps.Provider}
	mux.HandleFunc("GET /.well-known/oauth-authorization-server", oh.metadata)
	mux.HandleFunc("GET /.well-known/oauth-protected-resource", oh.resourceMetadata)
	mux.HandleFunc("GET /.well-known/oauth-protected-resource/mcp", oh.resourceMetadata)
	mux.HandleFunc("POST /register", oh.register)
	mux.HandleFunc("POST /token", oh.token)

	ch := &consentHandler{
		workflow: deps.Consent,
		provider: deps.Provider,
		pending:  oauth.NewStateStore(),
	}
	mux.HandleFunc("GET /authorize", securityHeaders(ch.show))
	mux.HandleFunc("POST /authorize", securityHeaders(ch.submitCredential))
	mux.HandleFunc("POST /authorize/customer", securityHeaders(ch.selectCustomer))

	identities := cache.New[consent.Identity](1024, deps.IdentityTTL)
	auth := &mcpAuth{
		provider:        deps.Provider,
		gateway:         deps.Gateway,
		validator:       deps.Consent.Validator,
		operatorDomain:  deps.Consent.OperatorDomain,
		operatorContext: deps.Consent.OperatorContext,
		identities:      identities,
	}
	mh := &mcpHandler{auth: auth, gateway: deps.Gateway}
	mux.HandleFunc("POST /mcp", mh.post)
	mux.HandleFunc("GET /mcp", mh.get)
	mux.HandleFunc("DELETE /mcp", mh.terminate)

	sh := newSSEHandler(auth, deps.Gateway, deps.HeartbeatInterval)
	mux.HandleFunc("GET /sse", sh.stream)
	mux.HandleFunc("POST /messages", sh.message)

	hh := &healthHandler{
		checks:  map[string]pinger{"database": deps.Store, "sessions": deps.Sessions},
		version: deps.Version,
	}
	mux.HandleFunc("GET /healthz", hh.check)
	mux.Handle("GET /metrics", deps.Metrics.Handler())

	if deps.AdminToken != "" {
		admin := requireAdmin(deps.AdminToken)
		ah := &auditHandler{store: deps.Store}
		mux.Handle("GET /api/v1/audit", admin(ah.query))
		if deps.AuditBus != nil {
			ash := &auditSSEHandler{bus: deps.AuditBus, heartbeat: sh.heartbeat}
			mux.Handle("GET /api/v1/audit/stream", admin(ash.stream))
		}
		cah := &cacheHandler{responses: deps.Responses, identities: identities}
		mux.Handle("GET /api/v1/cache", admin(cah.stats))
		mux.Handle("POST /api/v1/cache/flush", admin(cah.flush))
	}

	// Middleware chain: CORS -> RequestID -> Logging -> mux
	var handler http.Handler = mux
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = corsMiddleware(handler)
	return handler
}

// requireAdmin guards the admin API with a static bearer token.
func requireAdmin(token string) func(http.HandlerFunc) http.Handler {
	return func(next http.HandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subtle.ConstantTimeCompare([]byte(bearer(r)), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next(w, r)
		})
	}
}
