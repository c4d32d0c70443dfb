package oauth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidRequest marks a missing or malformed authorization request.
// HTTP handlers answer it with 401.
var ErrInvalidRequest = errors.New("invalid authorization request")

// AuthRequest is a pending consent request as received on /authorize.
// It is carried through the consent forms unmodified.
type AuthRequest struct {
	ResponseType        string   `json:"response_type"`
	ClientID            string   `json:"client_id"`
	RedirectURI         string   `json:"redirect_uri"`
	Scope               []string `json:"scope,omitempty"`
	State               string   `json:"state,omitempty"`
	CodeChallenge       string   `json:"code_challenge,omitempty"`
	CodeChallengeMethod string   `json:"code_challenge_method,omitempty"`
}

// ParseAuthRequest reads an authorization request from query parameters.
func ParseAuthRequest(q url.Values) (AuthRequest, error) {
	req := AuthRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               strings.Fields(q.Get("scope")),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}
	if err := req.Validate(); err != nil {
		return AuthRequest{}, err
	}
	return req, nil
}

// Validate checks the fields every request must carry.
func (r AuthRequest) Validate() error {
	if r.ResponseType != "code" {
		return fmt.Errorf("%w: response_type must be code", ErrInvalidRequest)
	}
	if r.ClientID == "" {
		return fmt.Errorf("%w: client_id is required", ErrInvalidRequest)
	}
	u, err := url.Parse(r.RedirectURI)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: redirect_uri must be an absolute URL", ErrInvalidRequest)
	}
	if r.CodeChallenge != "" && r.CodeChallengeMethod != "" && r.CodeChallengeMethod != "S256" {
		return fmt.Errorf("%w: unsupported code_challenge_method %q", ErrInvalidRequest, r.CodeChallengeMethod)
	}
	return nil
}

// Encode serializes the request for a hidden form field.
func (r AuthRequest) Encode() string {
	data, _ := json.Marshal(r)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeAuthRequest reverses Encode.
func DecodeAuthRequest(s string) (AuthRequest, error) {
	if s == "" {
		return AuthRequest{}, fmt.Errorf("%w: missing request payload", ErrInvalidRequest)
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return AuthRequest{}, fmt.Errorf("%w: decode payload: %v", ErrInvalidRequest, err)
	}
	var req AuthRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return AuthRequest{}, fmt.Errorf("%w: unmarshal payload: %v", ErrInvalidRequest, err)
	}
	if err := req.Validate(); err != nil {
		return AuthRequest{}, err
	}
	return req, nil
}

// Props are bound to a grant and recovered from its access token.
type Props struct {
	Credential      string `json:"credential"`
	CustomerContext string `json:"customer_context"`
	IsOperator      bool   `json:"is_operator"`
}

// CompleteRequest finalizes an approved consent request.
type CompleteRequest struct {
	Request AuthRequest
	UserID  string
	Scope   []string
	Props   Props
}
