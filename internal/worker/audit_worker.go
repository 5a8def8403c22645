// Package worker turns consumed ledger events into audit log rows.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"moneyman/internal/amqp"
	"moneyman/internal/core"
	applog "moneyman/internal/log"
)

// AuditStore appends audit rows. Both storage backends implement it.
type AuditStore interface {
	AppendAudit(ctx context.Context, e core.AuditEntry) error
}

type AuditWorker struct {
	store     AuditStore
	processed atomic.Uint64
}

func NewAuditWorker(store AuditStore) *AuditWorker {
	return &AuditWorker{store: store}
}

// Processed returns the number of events recorded since startup.
func (w *AuditWorker) Processed() uint64 {
	return w.processed.Load()
}

// HandleEvent records one consumed ledger event. Returning an error makes the
// consumer nack and requeue the delivery.
func (w *AuditWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	if ev.Action == "" || ev.TransactionID == "" {
		return fmt.Errorf("malformed event: action=%q transaction_id=%q", ev.Action, ev.TransactionID)
	}

	entry := core.AuditEntry{
		Action:        ev.Action,
		TransactionID: ev.TransactionID,
		User:          ev.User,
		Type:          ev.Type,
		Amount:        ev.Amount,
		PairID:        ev.PairID,
		OccurredAt:    ev.Timestamp,
	}
	if err := w.store.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	w.processed.Add(1)

	slog.InfoContext(ctx, "Audit entry recorded",
		applog.FieldAuditAction, ev.Action,
		applog.FieldTxID, ev.TransactionID,
		applog.FieldUserID, ev.User)
	return nil
}
