package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"moneyman/internal/core"
)

// AppendAudit writes one audit row. The audit log is append-only; rows are
// never updated or deleted.
func (r *SQLiteRepository) AppendAudit(ctx context.Context, e core.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, action, transaction_id, user_id, type, amount, pair_id, occurred_at, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.TransactionID, e.User, e.Type, e.Amount, e.PairID,
		encodeTime(e.OccurredAt), encodeTime(e.RecordedAt))
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
