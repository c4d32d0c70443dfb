package api

import (
	"context"
	"net/http"
	"time"
)

var startTime = time.Now()

type pinger interface {
	Ping(ctx context.Context) error
}

type healthHandler struct {
	checks  map[string]pinger
	version string
}

type healthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int               `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks,omitempty"`
}

func (h *healthHandler) check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: int(time.Since(startTime).Seconds()),
		Checks:        make(map[string]string, len(h.checks)),
	}
	status := http.StatusOK
	for name, p := range h.checks {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}
