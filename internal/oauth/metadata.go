package oauth

// AuthServerMetadata is served from /.well-known/oauth-authorization-server.
type AuthServerMetadata struct {
	Issuer                   string   `json:"issuer"`
	AuthorizationEndpoint    string   `json:"authorization_endpoint"`
	TokenEndpoint            string   `json:"token_endpoint"`
	RegistrationEndpoint     string   `json:"registration_endpoint,omitempty"`
	ResponseTypesSupported   []string `json:"response_types_supported"`
	GrantTypesSupported      []string `json:"grant_types_supported"`
	CodeChallengeMethods     []string `json:"code_challenge_methods_supported,omitempty"`
	TokenEndpointAuthMethods []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported          []string `json:"scopes_supported,omitempty"`
}

// ProtectedResourceMetadata is served from /.well-known/oauth-protected-resource.
type ProtectedResourceMetadata struct {
	Resource             string   `json:"resource"`
	AuthorizationServers []string `json:"authorization_servers"`
	ScopesSupported      []string `json:"scopes_supported,omitempty"`
}

// DCRRequest is the body of POST /register.
type DCRRequest struct {
	ClientName   string   `json:"client_name"`
	RedirectURIs []string `json:"redirect_uris"`
}

// DCRResponse is returned from Dynamic Client Registration.
type DCRResponse struct {
	ClientID                string   `json:"client_id"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
}

// TokenResponse is the body returned from POST /token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

const defaultScope = "mcp"

// Metadata describes this authorization server.
func (p *Provider) Metadata() AuthServerMetadata {
	return AuthServerMetadata{
		Issuer:                   p.issuer,
		AuthorizationEndpoint:    p.issuer + "/authorize",
		TokenEndpoint:            p.issuer + "/token",
		RegistrationEndpoint:     p.issuer + "/register",
		ResponseTypesSupported:   []string{"code"},
		GrantTypesSupported:      []string{"authorization_code"},
		CodeChallengeMethods:     []string{"S256"},
		TokenEndpointAuthMethods: []string{"none"},
		ScopesSupported:          []string{defaultScope},
	}
}

// ResourceMetadata describes the MCP endpoint guarded by this server.
func (p *Provider) ResourceMetadata() ProtectedResourceMetadata {
	return ProtectedResourceMetadata{
		Resource:             p.issuer + "/mcp",
		AuthorizationServers: []string{p.issuer},
		ScopesSupported:      []string{defaultScope},
	}
}
