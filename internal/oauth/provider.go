// Package oauth implements the authorization server MCP clients use to
// obtain an access token bound to an upstream credential and customer
// context.
package oauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/revittco/costgate/internal/secrets"
	"github.com/revittco/costgate/internal/store"
)

var (
	ErrInvalidClient = errors.New("invalid client")
	ErrInvalidGrant  = errors.New("invalid grant")
)

// Store is the persistence the provider needs.
type Store interface {
	store.GrantStore
	store.ClientStore
}

// Config controls token issuance.
type Config struct {
	// Issuer is the externally visible base URL, e.g. https://mcp.example.com.
	Issuer     string
	SigningKey []byte
	CodeTTL    time.Duration
	TokenTTL   time.Duration
}

// Provider issues authorization codes and access tokens.
type Provider struct {
	store    Store
	secrets  *secrets.Manager
	issuer   string
	key      []byte
	codeTTL  time.Duration
	tokenTTL time.Duration
	now      func() time.Time
}

// NewProvider creates a Provider. An empty signing key is replaced by a
// random one, so issued tokens stop working after a restart.
func NewProvider(s Store, sm *secrets.Manager, cfg Config) (*Provider, error) {
	key := cfg.SigningKey
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 30 * 24 * time.Hour
	}
	return &Provider{
		store:    s,
		secrets:  sm,
		issuer:   strings.TrimRight(cfg.Issuer, "/"),
		key:      key,
		codeTTL:  cfg.CodeTTL,
		tokenTTL: cfg.TokenTTL,
		now:      time.Now,
	}, nil
}

// RegisterClient stores a new dynamically registered client.
func (p *Provider) RegisterClient(ctx context.Context, req DCRRequest) (*DCRResponse, error) {
	if len(req.RedirectURIs) == 0 {
		return nil, fmt.Errorf("%w: redirect_uris is required", ErrInvalidClient)
	}
	for _, raw := range req.RedirectURIs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: invalid redirect uri %q", ErrInvalidClient, raw)
		}
	}
	uris, err := json.Marshal(req.RedirectURIs)
	if err != nil {
		return nil, fmt.Errorf("marshal redirect uris: %w", err)
	}
	c := &store.OAuthClient{Name: req.ClientName, RedirectURIs: uris}
	if err := p.store.CreateOAuthClient(ctx, c); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return &DCRResponse{
		ClientID:                c.ID,
		ClientName:              c.Name,
		RedirectURIs:            req.RedirectURIs,
		ClientIDIssuedAt:        c.CreatedAt.Unix(),
		TokenEndpointAuthMethod: "none",
		GrantTypes:              []string{"authorization_code"},
		ResponseTypes:           []string{"code"},
	}, nil
}

// ValidateRequest checks that the client exists and owns the redirect URI.
func (p *Provider) ValidateRequest(ctx context.Context, req AuthRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	c, err := p.store.GetOAuthClient(ctx, req.ClientID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: unknown client %q", ErrInvalidRequest, req.ClientID)
	}
	if err != nil {
		return fmt.Errorf("get client: %w", err)
	}
	var uris []string
	if err := json.Unmarshal(c.RedirectURIs, &uris); err != nil {
		return fmt.Errorf("decode redirect uris: %w", err)
	}
	if !slices.Contains(uris, req.RedirectURI) {
		return fmt.Errorf("%w: redirect_uri not registered", ErrInvalidRequest)
	}
	return nil
}

// CompleteAuthorization creates a grant for an approved request and returns
// the client redirect carrying the authorization code.
func (p *Provider) CompleteAuthorization(ctx context.Context, cr CompleteRequest) (string, error) {
	redirect, err := url.Parse(cr.Request.RedirectURI)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	sealed, err := p.secrets.Seal(cr.Props)
	if err != nil {
		return "", fmt.Errorf("seal props: %w", err)
	}
	scope, err := json.Marshal(cr.Scope)
	if err != nil {
		return "", fmt.Errorf("marshal scope: %w", err)
	}
	code, err := randomCode()
	if err != nil {
		return "", err
	}

	g := &store.Grant{
		ClientID:       cr.Request.ClientID,
		UserID:         cr.UserID,
		Scope:          scope,
		RedirectURI:    cr.Request.RedirectURI,
		EncryptedProps: sealed,
		CodeHash:       hashCode(code),
		CodeChallenge:  cr.Request.CodeChallenge,
		CodeExpiresAt:  p.now().Add(p.codeTTL),
	}
	if err := p.store.CreateGrant(ctx, g); err != nil {
		return "", fmt.Errorf("create grant: %w", err)
	}

	q := redirect.Query()
	q.Set("code", code)
	if cr.Request.State != "" {
		q.Set("state", cr.Request.State)
	}
	redirect.RawQuery = q.Encode()
	return redirect.String(), nil
}

// ExchangeRequest is an authorization_code token request.
type ExchangeRequest struct {
	Code         string
	CodeVerifier string
	ClientID     string
	RedirectURI  string
}

// Exchange redeems an authorization code. Codes are single use.
func (p *Provider) Exchange(ctx context.Context, req ExchangeRequest) (*TokenResponse, error) {
	if req.Code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidGrant)
	}
	g, err := p.store.ConsumeGrantCode(ctx, hashCode(req.Code))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown or used code", ErrInvalidGrant)
	}
	if err != nil {
		return nil, fmt.Errorf("consume code: %w", err)
	}
	if p.now().After(g.CodeExpiresAt) {
		return nil, fmt.Errorf("%w: code expired", ErrInvalidGrant)
	}
	if req.ClientID != "" && req.ClientID != g.ClientID {
		return nil, fmt.Errorf("%w: client mismatch", ErrInvalidGrant)
	}
	if req.RedirectURI != "" && req.RedirectURI != g.RedirectURI {
		return nil, fmt.Errorf("%w: redirect_uri mismatch", ErrInvalidGrant)
	}
	if !verifyChallenge(g.CodeChallenge, req.CodeVerifier) {
		return nil, fmt.Errorf("%w: code_verifier does not match", ErrInvalidGrant)
	}

	token, err := p.signToken(g)
	if err != nil {
		return nil, err
	}
	var scope []string
	_ = json.Unmarshal(g.Scope, &scope)
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(p.tokenTTL.Seconds()),
		Scope:       strings.Join(scope, " "),
	}, nil
}

// PurgeExpired drops grants whose code was never redeemed.
func (p *Provider) PurgeExpired(ctx context.Context) (int, error) {
	return p.store.DeleteExpiredGrants(ctx, p.now())
}

func randomCode() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
