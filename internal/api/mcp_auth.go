package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/revittco/costgate/internal/cache"
	"github.com/revittco/costgate/internal/consent"
	"github.com/revittco/costgate/internal/gateway"
	"github.com/revittco/costgate/internal/oauth"
	"github.com/revittco/costgate/internal/store"
	"github.com/revittco/costgate/internal/upstream"
)

var errNoCredential = errors.New("missing bearer credential")

// mcpAuth turns the bearer on an MCP request into a session identity.
type mcpAuth struct {
	provider        *oauth.Provider
	gateway         *gateway.Handler
	validator       consent.Validator
	operatorDomain  string
	operatorContext string
	// identities remembers how raw API keys were classified.
	identities *cache.Cache[consent.Identity]
}

// session resolves the caller. An issued access token carries its props;
// anything else is treated as a DoiT API key and classified by probing.
// The customer context comes from X-Customer-Context or the customerContext
// query parameter, then the session store, then the grant.
func (a *mcpAuth) session(r *http.Request, transport string) (*gateway.Session, error) {
	raw := bearer(r)
	if raw == "" {
		return nil, errNoCredential
	}

	var (
		credential string
		operator   bool
		fallback   string
	)
	props, err := a.provider.ResolveToken(r.Context(), raw)
	switch {
	case err == nil:
		credential, operator, fallback = props.Credential, props.IsOperator, props.CustomerContext
	case errors.Is(err, oauth.ErrNotIssued):
		id, err := a.identify(r.Context(), raw)
		if err != nil {
			return nil, err
		}
		credential, operator = raw, id.IsOperator()
	default:
		return nil, err
	}

	explicit := r.Header.Get("X-Customer-Context")
	if explicit == "" {
		explicit = r.URL.Query().Get("customerContext")
	}
	customerContext := a.gateway.ResolveContext(r.Context(), credential, explicit)
	if customerContext == "" {
		customerContext = fallback
	}

	sess := gateway.NewSession(transport, upstream.Auth{
		Credential:      credential,
		CustomerContext: customerContext,
	}, operator)
	return sess, nil
}

func (a *mcpAuth) identify(ctx context.Context, credential string) (consent.Identity, error) {
	return a.identities.GetOrLoad(store.HashCredential(credential), func() (consent.Identity, error) {
		id, err := consent.Identify(ctx, a.validator, credential, a.operatorDomain, a.operatorContext)
		if err != nil {
			return id, fmt.Errorf("identify api key: %w", err)
		}
		slog.Info("api key identified", "classification", id.Classification.String(), "domain", id.Domain)
		return id, nil
	})
}

// challenge answers an unauthenticated MCP request, pointing the client at
// the protected resource metadata so it can start the OAuth flow.
func (a *mcpAuth) challenge(w http.ResponseWriter, err error) {
	slog.Info("mcp request unauthorized", "error", err)
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(
		`Bearer resource_metadata="%s/.well-known/oauth-protected-resource"`, a.provider.Metadata().Issuer))
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
