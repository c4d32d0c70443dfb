package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/revittco/costgate/internal/gateway"
)

var errStreamClosed = errors.New("sse stream closed")

// sseStream serializes writes to one event stream. Once closed it never
// writes again, so a heartbeat racing a disconnect is dropped.
type sseStream struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
}

func (s *sseStream) send(event string, data []byte) error {
	return s.write(func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		return err
	})
}

func (s *sseStream) heartbeat() error {
	return s.write(func(w io.Writer) error {
		_, err := io.WriteString(w, ": ping\n\n")
		return err
	})
}

func (s *sseStream) write(fn func(io.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	if err := fn(s.w); err != nil {
		s.closed = true
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseStream) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

type sseConn struct {
	session *gateway.Session
	stream  *sseStream
}

// sseHandler serves the legacy HTTP+SSE transport: GET /sse opens the
// stream, POST /messages?sessionId= delivers requests whose responses are
// written back onto it.
type sseHandler struct {
	auth      *mcpAuth
	gateway   *gateway.Handler
	heartbeat time.Duration

	mu    sync.Mutex
	conns map[string]*sseConn
}

func newSSEHandler(auth *mcpAuth, gw *gateway.Handler, heartbeat time.Duration) *sseHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &sseHandler{
		auth:      auth,
		gateway:   gw,
		heartbeat: heartbeat,
		conns:     make(map[string]*sseConn),
	}
}

func (h *sseHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	sess, err := h.auth.session(r, gateway.TransportSSE)
	if err != nil {
		h.auth.challenge(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	st := &sseStream{w: w, flusher: flusher}
	h.mu.Lock()
	h.conns[sess.ID] = &sseConn{session: sess, stream: st}
	h.mu.Unlock()

	ticker := time.NewTicker(h.heartbeat)
	defer func() {
		ticker.Stop()
		st.close()
		h.mu.Lock()
		delete(h.conns, sess.ID)
		h.mu.Unlock()
		slog.Info("sse session closed", "session_id", sess.ID)
	}()

	endpoint := "/messages?sessionId=" + url.QueryEscape(sess.ID)
	if err := st.send("endpoint", []byte(endpoint)); err != nil {
		return
	}
	slog.Info("sse session opened", "session_id", sess.ID)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := st.heartbeat(); err != nil {
				return
			}
		}
	}
}

func (h *sseHandler) message(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("sessionId")
	h.mu.Lock()
	conn, ok := h.conns[id]
	h.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	caller, err := h.auth.session(r, gateway.TransportSSE)
	if err != nil {
		h.auth.challenge(w, err)
		return
	}
	if subtle.ConstantTimeCompare([]byte(caller.Auth().Credential), []byte(conn.session.Auth().Credential)) != 1 {
		writeError(w, http.StatusForbidden, "session belongs to another credential")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	resp := h.gateway.Handle(r.Context(), conn.session, body)
	if resp != nil {
		data, err := json.Marshal(resp)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "encode response")
			return
		}
		if err := conn.stream.send("message", data); err != nil {
			writeError(w, http.StatusGone, "stream closed")
			return
		}
	}
	w.WriteHeader(http.StatusAccepted)
}
