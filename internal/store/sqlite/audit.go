package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/revittco/costgate/internal/store"
)

const auditColumns = `id, timestamp, session_id, transport, customer_context,
	tool_name, params_redacted, status, error_message, latency_ms, response_size`

func (d *DB) InsertAuditRecord(ctx context.Context, r *store.AuditRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	_, err := d.q.ExecContext(ctx, `
		INSERT INTO audit_records (`+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, formatTime(r.Timestamp), r.SessionID, r.Transport, r.CustomerContext,
		r.ToolName, normalizeJSON(r.ParamsRedacted, "{}"), r.Status,
		r.ErrorMessage, r.LatencyMs, r.ResponseSize,
	)
	return err
}

func (d *DB) QueryAuditRecords(
	ctx context.Context, f store.AuditFilter,
) ([]store.AuditRecord, int, error) {
	where, args := buildAuditWhere(f)

	var total int
	countQ := "SELECT COUNT(*) FROM audit_records" + where
	if err := d.q.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	dataQ := `SELECT ` + auditColumns + ` FROM audit_records` + where +
		` ORDER BY timestamp DESC LIMIT ? OFFSET ?`
	dataArgs := append(args, limit, f.Offset)

	rows, err := d.q.QueryContext(ctx, dataQ, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []store.AuditRecord
	for rows.Next() {
		var r store.AuditRecord
		var ts, params string
		if err := rows.Scan(
			&r.ID, &ts, &r.SessionID, &r.Transport, &r.CustomerContext,
			&r.ToolName, &params, &r.Status, &r.ErrorMessage,
			&r.LatencyMs, &r.ResponseSize,
		); err != nil {
			return nil, 0, fmt.Errorf("scan audit row: %w", err)
		}
		r.ParamsRedacted = json.RawMessage(params)
		r.Timestamp = parseTime(ts)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func buildAuditWhere(f store.AuditFilter) (string, []any) {
	var conds []string
	var args []any
	if f.ToolName != nil {
		conds = append(conds, "tool_name = ?")
		args = append(args, *f.ToolName)
	}
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *f.Status)
	}
	if f.After != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, formatTime(*f.After))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
