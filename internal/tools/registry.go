// Package tools holds the MCP tool catalog and the dispatch table every
// transport calls into.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/revittco/costgate/internal/metrics"
	"github.com/revittco/costgate/internal/upstream"
)

// ErrUnknownTool is returned by Call for names not in the catalog.
var ErrUnknownTool = errors.New("Unknown tool")

// Upstream is the subset of the upstream client the tools need.
type Upstream interface {
	Do(ctx context.Context, req upstream.Request, auth upstream.Auth) (json.RawMessage, error)
	Validate(ctx context.Context, credential, customerContext string) (upstream.ValidateResult, error)
}

// Env is the caller identity a transport resolved for one call.
type Env struct {
	Auth       upstream.Auth
	IsOperator bool
	// Rebind persists a new customer context for the caller and applies
	// it to the live session. Nil when the transport cannot rebind.
	Rebind func(ctx context.Context, customerContext string) error
}

// Handler implements one tool. Returned errors are logged and replaced by
// a generic message; expected failures should be returned as results.
type Handler func(ctx context.Context, c *Call) (*Result, error)

// Tool is one catalog entry.
type Tool struct {
	Name         string
	Description  string
	Schema       *jsonschema.Schema
	Handler      Handler
	OperatorOnly bool

	resolved *jsonschema.Resolved
}

// Entry is the tools/list shape of a tool.
type Entry struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

// Content is one MCP content block.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is an MCP CallToolResult.
type Result struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Text returns the concatenated text content.
func (r *Result) Text() string {
	var s string
	for _, c := range r.Content {
		s += c.Text
	}
	return s
}

func textResult(text string) *Result {
	return &Result{Content: []Content{{Type: "text", Text: text}}}
}

func errorResult(text string) *Result {
	return &Result{Content: []Content{{Type: "text", Text: text}}, IsError: true}
}

// Registry maps tool names to tools. It is read-only after construction.
type Registry struct {
	tools    map[string]*Tool
	upstream Upstream
	metrics  *metrics.Metrics
}

// NewRegistry builds the full catalog.
func NewRegistry(up Upstream, m *metrics.Metrics) *Registry {
	r := &Registry{
		tools:    make(map[string]*Tool),
		upstream: up,
		metrics:  m,
	}
	for _, t := range catalog() {
		r.MustRegister(t)
	}
	return r
}

// MustRegister adds t, panicking on a duplicate name or an unresolvable
// schema. Only called while building the catalog.
func (r *Registry) MustRegister(t *Tool) {
	if _, dup := r.tools[t.Name]; dup {
		panic(fmt.Sprintf("tools: duplicate tool %q", t.Name))
	}
	if t.Schema == nil {
		t.Schema = object(nil)
	}
	resolved, err := t.Schema.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("tools: resolve schema for %q: %v", t.Name, err))
	}
	t.resolved = resolved
	r.tools[t.Name] = t
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns the catalog sorted by name. Operator-only tools are listed
// only for operators.
func (r *Registry) List(operator bool) []Entry {
	out := make([]Entry, 0, len(r.tools))
	for _, t := range r.tools {
		if t.OperatorOnly && !operator {
			continue
		}
		out = append(out, Entry{Name: t.Name, Description: t.Description, InputSchema: t.Schema})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call runs the named tool. The only returned error is ErrUnknownTool;
// every other failure becomes a result.
func (r *Registry) Call(ctx context.Context, env Env, name string, args json.RawMessage) (*Result, error) {
	t, ok := r.tools[name]
	if !ok || (t.OperatorOnly && !env.IsOperator) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	start := time.Now()
	res := r.run(ctx, t, env, args)
	status := "success"
	if res.IsError {
		status = "error"
	}
	r.metrics.ToolCall(name, status, time.Since(start))
	return res, nil
}

func (r *Registry) run(ctx context.Context, t *Tool, env Env, raw json.RawMessage) (res *Result) {
	args, verr := validate(t, raw)
	if verr != nil {
		return errorResult(verr.Error())
	}

	defer func() {
		if p := recover(); p != nil {
			slog.Error("tool handler panicked", "tool", t.Name, "panic", p)
			res = errorResult("An error occurred while running " + t.Name)
		}
	}()

	call := &Call{Env: env, Name: t.Name, Args: args, upstream: r.upstream}
	res, err := t.Handler(ctx, call)
	if err != nil {
		slog.Error("tool handler failed", "tool", t.Name, "error", err)
		return errorResult("An error occurred while running " + t.Name)
	}
	if res == nil {
		return errorResult("An error occurred while running " + t.Name)
	}
	return res
}
