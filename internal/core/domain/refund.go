package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefundStatus represents the lifecycle state of a refund.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "PENDING"
	RefundStatusCompleted RefundStatus = "COMPLETED"
	RefundStatusFailed    RefundStatus = "FAILED"
)

// Refund represents a full or partial reversal of a settled transaction.
// The sum of non-failed refund amounts for a transaction never exceeds the
// transaction amount; the refund service enforces this under a row lock on
// the parent transaction.
type Refund struct {
	ID            uuid.UUID    `json:"id"`
	TransactionID uuid.UUID    `json:"transaction_id"`
	MerchantID    uuid.UUID    `json:"merchant_id"`
	Amount        int64        `json:"amount"`
	Reason        string       `json:"reason,omitempty"`
	Status        RefundStatus `json:"status"`
	SettlementRef *string      `json:"settlement_ref,omitempty"`
	FailureReason *string      `json:"failure_reason,omitempty"`
	ClaimedAt     *time.Time   `json:"-"` // Worker claim marker, not exposed
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// IsTerminal returns true if the refund is in a final state.
func (r *Refund) IsTerminal() bool {
	return r.Status == RefundStatusCompleted || r.Status == RefundStatusFailed
}
