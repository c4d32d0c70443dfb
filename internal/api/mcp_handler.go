package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/revittco/costgate/internal/gateway"
)

const maxBodySize = 4 << 20

// mcpHandler serves streamable HTTP MCP with plain JSON responses.
type mcpHandler struct {
	auth    *mcpAuth
	gateway *gateway.Handler
}

func (h *mcpHandler) post(w http.ResponseWriter, r *http.Request) {
	sess, err := h.auth.session(r, gateway.TransportHTTP)
	if err != nil {
		h.auth.challenge(w, err)
		return
	}
	if id := r.Header.Get("Mcp-Session-Id"); id != "" {
		sess.ID = id
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	body = bytes.TrimSpace(body)

	w.Header().Set("Mcp-Session-Id", sess.ID)

	// A JSON array is a batch; answer with an array of the non-null responses.
	if len(body) > 0 && body[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(body, &batch); err != nil {
			writeJSON(w, http.StatusOK, parseError(err))
			return
		}
		var out []*gateway.Response
		for _, msg := range batch {
			if resp := h.gateway.Handle(r.Context(), sess, msg); resp != nil {
				out = append(out, resp)
			}
		}
		if len(out) == 0 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	resp := h.gateway.Handle(r.Context(), sess, body)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// get refuses the optional server-to-client stream; this server never
// initiates messages.
func (h *mcpHandler) get(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", "POST, DELETE")
	writeError(w, http.StatusMethodNotAllowed, "server-initiated streams are not supported")
}

// terminate acknowledges session termination. HTTP sessions hold no state.
func (h *mcpHandler) terminate(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func parseError(err error) *gateway.Response {
	return &gateway.Response{
		JSONRPC: "2.0",
		Error:   &gateway.RPCError{Code: gateway.CodeParseError, Message: "invalid JSON: " + err.Error()},
	}
}
