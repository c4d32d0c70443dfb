package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/revittco/costgate/internal/audit"
)

type auditSSEHandler struct {
	bus       *audit.Bus
	heartbeat time.Duration
}

// stream tails tool calls as they are recorded, optionally filtered by
// tool_name and status.
func (h *auditSSEHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	qTool := r.URL.Query().Get("tool_name")
	qStatus := r.URL.Query().Get("status")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	st := &sseStream{w: w, flusher: flusher}
	flusher.Flush()

	ch := h.bus.Subscribe()
	defer h.bus.Unsubscribe(ch)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	defer st.close()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			if !matchFilter(rec.ToolName, qTool) || !matchFilter(rec.Status, qStatus) {
				continue
			}
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			if err := st.send("audit", data); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := st.heartbeat(); err != nil {
				return
			}
		}
	}
}

func matchFilter(value, filter string) bool {
	return filter == "" || value == filter
}
