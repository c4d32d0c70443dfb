package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/revittco/costgate/internal/upstream"
)

// Call is one validated tool invocation.
type Call struct {
	Env
	Name string
	Args map[string]any

	upstream Upstream
}

// String returns a string argument or "".
func (c *Call) String(key string) string {
	s, _ := c.Args[key].(string)
	return s
}

// Query copies the named scalar arguments into query parameters.
func (c *Call) Query(keys ...string) url.Values {
	q := url.Values{}
	for _, k := range keys {
		switch v := c.Args[k].(type) {
		case string:
			if v != "" {
				q.Set(k, v)
			}
		case float64:
			q.Set(k, strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			q.Set(k, strconv.FormatBool(v))
		}
	}
	return q
}

// Body returns the arguments minus the named keys, for JSON bodies that
// mirror the tool input.
func (c *Call) Body(omit ...string) map[string]any {
	out := make(map[string]any, len(c.Args))
	for k, v := range c.Args {
		out[k] = v
	}
	for _, k := range omit {
		delete(out, k)
	}
	return out
}

// formatter turns an upstream payload into result text.
type formatter func(data json.RawMessage) (string, error)

// fetch issues req and formats the payload. Upstream failures become a
// "Failed to <verb> <resource>" result and are logged, never returned.
func (c *Call) fetch(ctx context.Context, verb, resource string, req upstream.Request, format formatter) (*Result, error) {
	data, err := c.upstream.Do(ctx, req, c.Auth)
	if err != nil {
		slog.Warn("upstream call failed",
			"tool", c.Name, "method", req.Method, "path", req.Path, "error", err)
		return errorResult(fmt.Sprintf("Failed to %s %s", verb, resource)), nil
	}
	if format == nil {
		format = formatJSON
	}
	text, err := format(data)
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", resource, err)
	}
	return textResult(text), nil
}
