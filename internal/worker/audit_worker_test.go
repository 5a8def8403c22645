package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"moneyman/internal/amqp"
	"moneyman/internal/core"
	"moneyman/internal/storage/memory"
)

func TestHandleEvent(t *testing.T) {
	store := memory.New()
	w := NewAuditWorker(store)

	ev := &amqp.TransactionEvent{
		Action:        amqp.ActionRecorded,
		TransactionID: "tx-1",
		User:          "user-1",
		Type:          "expense",
		Amount:        "42.50",
		PairID:        "pair-1",
		Timestamp:     time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := w.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	entries := store.AuditEntries()
	if len(entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(entries))
	}
	got := entries[0]
	if got.Action != amqp.ActionRecorded || got.TransactionID != "tx-1" || got.User != "user-1" {
		t.Errorf("entry = %+v", got)
	}
	if got.Amount != "42.50" || got.PairID != "pair-1" {
		t.Errorf("entry payload = %+v", got)
	}
	if !got.OccurredAt.Equal(ev.Timestamp) {
		t.Errorf("OccurredAt = %v, want %v", got.OccurredAt, ev.Timestamp)
	}
	if got.ID == "" || got.RecordedAt.IsZero() {
		t.Errorf("store did not assign id/recorded time: %+v", got)
	}
	if w.Processed() != 1 {
		t.Errorf("processed = %d, want 1", w.Processed())
	}
}

func TestHandleEventMalformed(t *testing.T) {
	w := NewAuditWorker(memory.New())
	tests := []struct {
		name string
		ev   *amqp.TransactionEvent
	}{
		{"missing action", &amqp.TransactionEvent{TransactionID: "tx-1"}},
		{"missing transaction id", &amqp.TransactionEvent{Action: amqp.ActionEdited}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := w.HandleEvent(context.Background(), tc.ev); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

type failingStore struct{}

func (failingStore) AppendAudit(context.Context, core.AuditEntry) error {
	return errors.New("disk full")
}

func TestHandleEventStoreFailure(t *testing.T) {
	w := NewAuditWorker(failingStore{})
	ev := &amqp.TransactionEvent{Action: amqp.ActionDeleted, TransactionID: "tx-1"}
	if err := w.HandleEvent(context.Background(), ev); err == nil {
		t.Error("store failure must propagate so the delivery is requeued")
	}
}
