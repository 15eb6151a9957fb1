package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of state change an event announces.
type EventType string

const (
	EventTransactionSettled EventType = "transaction.settled"
	EventTransactionFailed  EventType = "transaction.failed"
	EventRefundCompleted    EventType = "refund.completed"
	EventRefundFailed       EventType = "refund.failed"
)

// Event is emitted exactly once per terminal transition of a transaction or
// refund. Receivers deduplicate on ID (at-least-once delivery).
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Type       EventType       `json:"type"`
	MerchantID uuid.UUID       `json:"merchant_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NewTransactionEvent builds the event for a transaction's terminal transition.
func NewTransactionEvent(t *Transaction) Event {
	typ := EventTransactionSettled
	if t.Status == TransactionStatusFailed {
		typ = EventTransactionFailed
	}
	data, _ := json.Marshal(t)
	return Event{
		ID:         uuid.New(),
		Type:       typ,
		MerchantID: t.MerchantID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// NewRefundEvent builds the event for a refund's terminal transition.
func NewRefundEvent(r *Refund) Event {
	typ := EventRefundCompleted
	if r.Status == RefundStatusFailed {
		typ = EventRefundFailed
	}
	data, _ := json.Marshal(r)
	return Event{
		ID:         uuid.New(),
		Type:       typ,
		MerchantID: r.MerchantID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}
