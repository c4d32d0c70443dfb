package gateway

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/revittco/costgate/internal/store"
	"github.com/revittco/costgate/internal/tools"
)

const maxAuditError = 500

func (h *Handler) recordAudit(
	ctx context.Context,
	sess *Session,
	call CallToolRequest,
	res *tools.Result,
	status string,
	start time.Time,
) {
	if h.auditor == nil {
		return
	}

	rec := &store.AuditRecord{
		Timestamp:       start.UTC(),
		SessionID:       sess.ID,
		Transport:       sess.Transport,
		CustomerContext: sess.Auth().CustomerContext,
		ToolName:        call.Name,
		ParamsRedacted:  call.Arguments,
		Status:          status,
		LatencyMs:       int(time.Since(start).Milliseconds()),
	}
	if res != nil {
		text := res.Text()
		rec.ResponseSize = len(text)
		if res.IsError {
			rec.ErrorMessage = truncate(text, maxAuditError)
		}
	}

	// The call's own context may already be cancelled by the transport.
	if err := h.auditor.Record(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("audit record failed", "tool", call.Name, "error", err)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
