// Package audit records every tool call to the audit store.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/revittco/costgate/internal/store"
)

// Logger redacts and persists audit records. A nil Logger records nothing.
type Logger struct {
	store  store.AuditStore
	bus    *Bus
	redact []string
}

// NewLogger returns a Logger. bus may be nil. redact lists extra argument
// names to hide on top of the built-in set.
func NewLogger(s store.AuditStore, bus *Bus, redact []string) *Logger {
	return &Logger{store: s, bus: bus, redact: redact}
}

// Record stores rec. Params are redacted before they reach the store.
func (l *Logger) Record(ctx context.Context, rec *store.AuditRecord) error {
	if l == nil {
		return nil
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.ParamsRedacted = Redact(rec.ParamsRedacted, l.redact)

	if err := l.store.InsertAuditRecord(ctx, rec); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	l.bus.publish(*rec)
	return nil
}
