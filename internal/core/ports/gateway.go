package ports

import (
	"context"
)

// SettlementResult is the collaborator's answer to a capture or reversal.
// A transport-level failure is returned as an error instead (and classified
// transient by apperror.IsTransient); a business decline comes back with
// Approved=false and a reason.
type SettlementResult struct {
	Approved      bool
	Reference     string
	DeclineReason string
}

// SettlementRequest holds the capture parameters forwarded to the
// collaborator.
type SettlementRequest struct {
	TransactionID string
	Amount        int64
	Currency      string
	PaymentKey    string
}

// SettlementGateway is the external payment-network collaborator. Both calls
// block under the configured timeout only.
type SettlementGateway interface {
	AuthorizeAndCapture(ctx context.Context, req SettlementRequest) (*SettlementResult, error)
	Reverse(ctx context.Context, reference string, amount int64, currency string) (*SettlementResult, error)
}
