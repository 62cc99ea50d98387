// Package audit is the fire-and-forget side channel recording transfer
// attempt outcomes. Failures here are logged and swallowed; they never
// change what the executor reports.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"payflow/internal/core"
)

const (
	ActionPaymentSent  = "PAYMENT_SENT"
	ActionLoginAttempt = "LOGIN_ATTEMPT"

	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Store is the slice of the ledger store the recorder writes to.
type Store interface {
	InsertAuditEvent(ctx context.Context, e core.AuditEvent) error
}

// Recorder persists audit events on a best-effort basis.
type Recorder struct {
	store   Store
	timeout time.Duration
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, timeout: 3 * time.Second}
}

// Record writes one attempt outcome. It never returns an error and never
// panics the caller: storage failures are logged locally and dropped. The
// write gets its own deadline detached from the caller's cancellation so a
// finished request cannot abort the audit trail.
func (r *Recorder) Record(ctx context.Context, actor, action, status string, details map[string]any) {
	if r == nil || r.store == nil {
		return
	}

	var payload string
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			slog.WarnContext(ctx, "Audit details not serializable", "error", err, "action", action)
		} else {
			payload = string(b)
		}
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	event := core.AuditEvent{
		Actor:   actor,
		Action:  action,
		Status:  status,
		Details: payload,
	}
	if err := r.store.InsertAuditEvent(writeCtx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to record audit event",
			"error", err,
			"actor", actor,
			"action", action,
			"status", status)
		return
	}

	slog.DebugContext(ctx, "Audit event recorded",
		"actor", actor,
		"action", action,
		"status", status)
}

// RecordPaymentAttempt records one transfer attempt outcome.
func (r *Recorder) RecordPaymentAttempt(ctx context.Context, actor, recipientHandle string, amount core.Money, status string, detail string) {
	details := map[string]any{
		"recipient":    recipientHandle,
		"amount_cents": amount.Cents,
	}
	if detail != "" {
		details["detail"] = detail
	}
	r.Record(ctx, actor, ActionPaymentSent, status, details)
}
