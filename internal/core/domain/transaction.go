package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusSettled    TransactionStatus = "SETTLED"
	TransactionStatusFailed     TransactionStatus = "FAILED"
)

// transactionTransitions defines the allowed status transitions. Terminal
// states have no outgoing edges, so a settled or failed transaction can
// never be resurrected.
var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:    {TransactionStatusProcessing},
	TransactionStatusProcessing: {TransactionStatusSettled, TransactionStatusFailed},
	TransactionStatusSettled:    {},
	TransactionStatusFailed:     {},
}

// CanTransition reports whether a status transition is allowed.
func CanTransition(from, to TransactionStatus) bool {
	for _, s := range transactionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transaction represents a merchant payment moving through the async
// settlement pipeline. Rows are owned by the ledger store and mutated only
// through compare-and-set status updates.
type Transaction struct {
	ID             uuid.UUID         `json:"id"`
	MerchantID     uuid.UUID         `json:"merchant_id"`
	IdempotencyKey string            `json:"idempotency_key"`
	Amount         int64             `json:"amount"` // Minor units (e.g. cents)
	Currency       string            `json:"currency"`
	Description    string            `json:"description,omitempty"`
	Status         TransactionStatus `json:"status"`
	SettlementRef  *string           `json:"settlement_ref,omitempty"`
	FailureReason  *string           `json:"failure_reason,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusSettled || t.Status == TransactionStatusFailed
}

// IsRefundable returns true if refunds may be created against this transaction.
func (t *Transaction) IsRefundable() bool {
	return t.Status == TransactionStatusSettled
}

// BuildIdempotencyKey constructs the cache key for the fast-path duplicate
// check. Format: "merchant_id:client_key".
func BuildIdempotencyKey(merchantID uuid.UUID, clientKey string) string {
	return merchantID.String() + ":" + clientKey
}
