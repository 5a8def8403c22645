package core

import "time"

// AuditEntry is one row of the append-only audit trail written by the worker
// from consumed ledger events.
type AuditEntry struct {
	ID            string    `json:"id"`
	Action        string    `json:"action"`
	TransactionID string    `json:"transactionId"`
	User          string    `json:"user"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	PairID        string    `json:"pairId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
	RecordedAt    time.Time `json:"recordedAt"`
}
