package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/revittco/costgate/internal/audit"
	"github.com/revittco/costgate/internal/store"
	"github.com/revittco/costgate/internal/tools"
)

const instructions = "Tools for the DoiT FinOps and support API. " +
	"Calls run against the customer context bound to your credential; " +
	"operators can switch it with change_customer."

// Handler answers MCP methods for any transport. It holds no per-connection
// state; that lives in the Session passed to Handle.
type Handler struct {
	registry *tools.Registry
	sessions store.SessionStore
	auditor  *audit.Logger
	info     ServerInfo
}

// NewHandler returns a Handler. sessions and auditor may be nil.
func NewHandler(reg *tools.Registry, sessions store.SessionStore, auditor *audit.Logger, version string) *Handler {
	return &Handler{
		registry: reg,
		sessions: sessions,
		auditor:  auditor,
		info:     ServerInfo{Name: "costgate", Version: version},
	}
}

// ResolveContext picks the customer context for credential: the explicit
// value when set, otherwise whatever the session store holds.
func (h *Handler) ResolveContext(ctx context.Context, credential, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if h.sessions == nil || credential == "" {
		return ""
	}
	stored, err := h.sessions.LoadCustomerContext(ctx, credential)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("load customer context", "error", err)
		}
		return ""
	}
	return stored
}

// Handle processes one JSON-RPC message. It returns nil for notifications.
func (h *Handler) Handle(ctx context.Context, sess *Session, msg []byte) *Response {
	var req Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return &Response{
			JSONRPC: "2.0",
			Error:   &RPCError{Code: CodeParseError, Message: "invalid JSON: " + err.Error()},
		}
	}

	if req.ID == nil {
		h.handleNotification(req)
		return nil
	}

	var result json.RawMessage
	var rpcErr *RPCError

	switch req.Method {
	case "initialize":
		result, rpcErr = h.handleInitialize(sess, req.Params)
	case "ping":
		result = json.RawMessage(`{}`)
	case "tools/list":
		result, rpcErr = h.handleToolsList(sess)
	case "tools/call":
		result, rpcErr = h.handleToolsCall(ctx, sess, req.Params)
	default:
		rpcErr = &RPCError{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("unknown method: %s", req.Method),
		}
	}

	resp := &Response{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	return resp
}

func (h *Handler) handleNotification(req Request) {
	switch req.Method {
	case "notifications/initialized":
		slog.Debug("client initialized")
	default:
		slog.Debug("unhandled notification", "method", req.Method)
	}
}

func (h *Handler) handleInitialize(sess *Session, params json.RawMessage) (json.RawMessage, *RPCError) {
	var p InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
		}
	}
	sess.setClient(p.ClientInfo)
	slog.Info("mcp session initialized",
		"session_id", sess.ID,
		"transport", sess.Transport,
		"client", p.ClientInfo.Name,
		"client_version", p.ClientInfo.Version,
	)

	version := supportedVersions[0]
	if slices.Contains(supportedVersions, p.ProtocolVersion) {
		version = p.ProtocolVersion
	}
	return marshalResult(InitializeResult{
		ProtocolVersion: version,
		Capabilities:    ServerCapability{Tools: &ToolCapability{}},
		ServerInfo:      h.info,
		Instructions:    instructions,
	})
}

func (h *Handler) handleToolsList(sess *Session) (json.RawMessage, *RPCError) {
	return marshalResult(ListToolsResult{Tools: h.registry.List(sess.IsOperator())})
}

func (h *Handler) handleToolsCall(ctx context.Context, sess *Session, params json.RawMessage) (json.RawMessage, *RPCError) {
	var p CallToolRequest
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}

	start := time.Now()
	env := tools.Env{
		Auth:       sess.Auth(),
		IsOperator: sess.IsOperator(),
		Rebind:     h.rebinder(sess),
	}
	res, err := h.registry.Call(ctx, env, p.Name, p.Arguments)
	if err != nil {
		h.recordAudit(ctx, sess, p, nil, "unknown_tool", start)
		return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}

	data, rpcErr := marshalResult(res)
	status := "success"
	if res.IsError {
		status = "error"
	}
	h.recordAudit(ctx, sess, p, res, status, start)
	return data, rpcErr
}

// rebinder persists a new customer context for the session's credential
// and then updates the live session.
func (h *Handler) rebinder(sess *Session) func(context.Context, string) error {
	return func(ctx context.Context, customerContext string) error {
		if h.sessions != nil {
			err := h.sessions.SaveCustomerContext(ctx, sess.Auth().Credential, customerContext)
			if err != nil {
				return fmt.Errorf("save customer context: %w", err)
			}
		}
		sess.SetCustomerContext(customerContext)
		slog.Info("customer context changed",
			"session_id", sess.ID, "customer_context", customerContext)
		return nil
	}
}

func marshalResult(v any) (json.RawMessage, *RPCError) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return data, nil
}
