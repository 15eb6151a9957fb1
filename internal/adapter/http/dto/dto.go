package dto

import (
	"payment-processor/internal/core/domain"
)

// RegisterRequest is the request body for merchant registration.
type RegisterRequest struct {
	Username     string `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password     string `json:"password" binding:"required,min=8,max=128"`
	MerchantName string `json:"merchant_name" binding:"required,min=1,max=100"`
}

// LoginRequest is the request body for merchant login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	MerchantID   string `json:"merchant_id"`
	Username     string `json:"username"`
	MerchantName string `json:"merchant_name"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// PaymentKeyResponse is the response body for payment key creation.
// The key token is returned in full only here.
type PaymentKeyResponse struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	CreatedAt string `json:"created_at"`
}

// CreateTransactionRequest is the request body for transaction submission.
type CreateTransactionRequest struct {
	IdempotencyKey string `json:"idempotency_key" binding:"required,max=100,safe_id"`
	PaymentKey     string `json:"payment_key" binding:"required"`
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	Currency       string `json:"currency" binding:"required,len=3"`
	Description    string `json:"description" binding:"max=500"`
}

// TransactionResponse is the response body for transaction reads.
type TransactionResponse struct {
	ID             string  `json:"id"`
	IdempotencyKey string  `json:"idempotency_key"`
	Amount         int64   `json:"amount"`
	Currency       string  `json:"currency"`
	Description    string  `json:"description,omitempty"`
	Status         string  `json:"status"`
	SettlementRef  *string `json:"settlement_ref,omitempty"`
	FailureReason  *string `json:"failure_reason,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// TransactionListResponse wraps a paginated transaction list.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// CreateRefundRequest is the request body for refund submission.
type CreateRefundRequest struct {
	TransactionID string `json:"transaction_id" binding:"required,uuid"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	Reason        string `json:"reason" binding:"max=500"`
}

// RefundResponse is the response body for refund reads.
type RefundResponse struct {
	ID            string  `json:"id"`
	TransactionID string  `json:"transaction_id"`
	Amount        int64   `json:"amount"`
	Reason        string  `json:"reason,omitempty"`
	Status        string  `json:"status"`
	SettlementRef *string `json:"settlement_ref,omitempty"`
	FailureReason *string `json:"failure_reason,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// RegisterWebhookRequest is the request body for webhook registration.
type RegisterWebhookRequest struct {
	TargetURL string `json:"target_url" binding:"required,safe_url"`
}

// WebhookSubscriptionResponse is the response body for subscription reads.
// Secret is present only in the registration response.
type WebhookSubscriptionResponse struct {
	ID        string `json:"id"`
	TargetURL string `json:"target_url"`
	Secret    string `json:"secret,omitempty"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

// FromTransaction converts a domain transaction to its DTO.
func FromTransaction(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:             t.ID.String(),
		IdempotencyKey: t.IdempotencyKey,
		Amount:         t.Amount,
		Currency:       t.Currency,
		Description:    t.Description,
		Status:         string(t.Status),
		SettlementRef:  t.SettlementRef,
		FailureReason:  t.FailureReason,
		CreatedAt:      t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:      t.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// FromRefund converts a domain refund to its DTO.
func FromRefund(r *domain.Refund) RefundResponse {
	return RefundResponse{
		ID:            r.ID.String(),
		TransactionID: r.TransactionID.String(),
		Amount:        r.Amount,
		Reason:        r.Reason,
		Status:        string(r.Status),
		SettlementRef: r.SettlementRef,
		FailureReason: r.FailureReason,
		CreatedAt:     r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:     r.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// FromSubscription converts a domain subscription to its DTO.
func FromSubscription(s *domain.WebhookSubscription) WebhookSubscriptionResponse {
	return WebhookSubscriptionResponse{
		ID:        s.ID.String(),
		TargetURL: s.TargetURL,
		Active:    s.Active,
		CreatedAt: s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
