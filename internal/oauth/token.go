package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/revittco/costgate/internal/store"
)

var (
	// ErrNotIssued means the bearer was not minted here, so callers may
	// treat it as a raw upstream API key.
	ErrNotIssued = errors.New("token not issued by this server")
	// ErrInvalidToken means the bearer was minted here but is no longer valid.
	ErrInvalidToken = errors.New("invalid access token")
)

func (p *Provider) signToken(g *store.Grant) (string, error) {
	now := p.now()
	claims := jwt.RegisteredClaims{
		Issuer:    p.issuer,
		Subject:   g.ID,
		Audience:  jwt.ClaimStrings{g.ClientID},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenTTL)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ResolveToken verifies an access token and returns the props of its grant.
func (p *Provider) ResolveToken(ctx context.Context, raw string) (Props, error) {
	var unverified jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &unverified); err != nil {
		return Props{}, ErrNotIssued
	}
	if unverified.Issuer != p.issuer {
		return Props{}, ErrNotIssued
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return p.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return Props{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	g, err := p.store.GetGrant(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return Props{}, fmt.Errorf("%w: grant revoked", ErrInvalidToken)
	}
	if err != nil {
		return Props{}, fmt.Errorf("get grant: %w", err)
	}
	var props Props
	if err := p.secrets.Open(g.EncryptedProps, &props); err != nil {
		return Props{}, fmt.Errorf("open grant props: %w", err)
	}
	return props, nil
}
