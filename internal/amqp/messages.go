package amqp

import (
	"encoding/json"
	"time"
)

// Audit actions carried by TransactionEvent.
const (
	ActionRecorded = "recorded"
	ActionEdited   = "edited"
	ActionDeleted  = "deleted"
)

// TransactionEvent is published after every accepted ledger mutation and
// consumed by the audit worker. Amount travels as a decimal string.
type TransactionEvent struct {
	Action        string    `json:"action"`
	TransactionID string    `json:"transaction_id"`
	User          string    `json:"user"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	PairID        string    `json:"pair_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
