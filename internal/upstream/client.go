// Package upstream issues authenticated REST calls to the FinOps API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/revittco/costgate/internal/cache"
	"github.com/revittco/costgate/internal/metrics"
	"github.com/revittco/costgate/internal/store"
)

const (
	DefaultBaseURL    = "https://api.doit.com"
	DefaultMaxResults = 40

	validatePath = "/auth/v1/validate"
	maxErrorBody = 512
)

// ErrEmptyPayload is returned when the upstream answers 2xx with no body or
// a JSON null.
var ErrEmptyPayload = errors.New("upstream returned an empty payload")

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Request describes one upstream call. List marks paginated GETs that get
// a maxResults cap when the caller did not pass one.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	List   bool
}

// Auth carries the caller identity forwarded on every request.
type Auth struct {
	Credential      string
	CustomerContext string
}

// Client is safe for concurrent use.
type Client struct {
	BaseURL    string
	HTTP       *http.Client
	MaxResults int
	Cache      *cache.Cache[json.RawMessage]
	Metrics    *metrics.Metrics
}

// NewClient returns a client with defaults filled in for empty values.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTP:       httpClient,
		MaxResults: DefaultMaxResults,
	}
}

// Do sends req and returns the raw JSON body.
func (c *Client) Do(ctx context.Context, req Request, auth Auth) (json.RawMessage, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	u := c.buildURL(req, auth)

	if method != http.MethodGet {
		defer c.Cache.InvalidatePrefix(cachePrefix(auth))
		return c.send(ctx, method, req.Path, u, req.Body, auth)
	}
	return c.Cache.GetOrLoad(cachePrefix(auth)+u, func() (json.RawMessage, error) {
		return c.send(ctx, method, req.Path, u, nil, auth)
	})
}

func (c *Client) buildURL(req Request, auth Auth) string {
	q := url.Values{}
	for k, vs := range req.Query {
		for _, v := range vs {
			if v != "" {
				q.Add(k, v)
			}
		}
	}
	if auth.CustomerContext != "" {
		q.Set("customerContext", auth.CustomerContext)
	}
	if req.List && q.Get("maxResults") == "" {
		limit := c.MaxResults
		if limit <= 0 {
			limit = DefaultMaxResults
		}
		q.Set("maxResults", strconv.Itoa(limit))
	}
	u := c.BaseURL + req.Path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func (c *Client) send(
	ctx context.Context, method, path, u string, body any, auth Auth,
) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+auth.Credential)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		c.Metrics.UpstreamRequest(method, 0)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.Metrics.UpstreamRequest(method, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	slog.Debug("upstream request",
		"method", method, "path", path, "status", resp.StatusCode, "bytes", len(data))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: msg}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrEmptyPayload
	}
	return json.RawMessage(trimmed), nil
}

// cachePrefix scopes cache keys to one credential and customer context.
func cachePrefix(auth Auth) string {
	return store.HashCredential(auth.Credential) + "\x00" + auth.CustomerContext + "\x00"
}

// ValidateResult is the identity returned by the validate endpoint.
type ValidateResult struct {
	Domain string `json:"domain"`
	Email  string `json:"email"`
}

// Validate probes the validate endpoint with credential, scoped to
// customerContext when it is non-empty. Responses are never cached.
func (c *Client) Validate(ctx context.Context, credential, customerContext string) (ValidateResult, error) {
	auth := Auth{Credential: credential, CustomerContext: customerContext}
	u := c.buildURL(Request{Path: validatePath}, auth)
	data, err := c.send(ctx, http.MethodGet, validatePath, u, nil, auth)
	if err != nil {
		return ValidateResult{}, err
	}
	var res ValidateResult
	if err := json.Unmarshal(data, &res); err != nil {
		return ValidateResult{}, fmt.Errorf("decode validate response: %w", err)
	}
	if res.Domain == "" {
		return ValidateResult{}, errors.New("validate response has no domain")
	}
	return res, nil
}
