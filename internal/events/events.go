package events

import (
	"encoding/json"
	"time"
)

const (
	TypeOrderPlaced          = "order.placed"
	TypeReconciliationNeeded = "order.reconciliation_needed"
)

// Envelope wraps every published event with routing metadata.
type Envelope struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// RawEnvelope is the consumer-side form of Envelope: the payload stays raw
// until the event type is known.
type RawEnvelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// OrderPlaced announces a fully committed order.
type OrderPlaced struct {
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	Total     string `json:"total"`
	ItemCount int    `json:"item_count"`
}

// ReconciliationNeeded flags an order whose items failed to persist after the
// order row was written. Operators pick these up and either repair the items
// or cancel the orphaned order.
type ReconciliationNeeded struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Reason  string `json:"reason"`
}
