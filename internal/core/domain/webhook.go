package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookSubscription is a merchant-registered endpoint that receives signed
// event notifications. A merchant may hold many subscriptions; every active
// subscription receives every event for that merchant.
type WebhookSubscription struct {
	ID         uuid.UUID `json:"id"`
	MerchantID uuid.UUID `json:"merchant_id"`
	TargetURL  string    `json:"target_url"`
	SecretEnc  string    `json:"-"` // AES-256 encrypted signing secret
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// DeliveryStatus represents the delivery state of a webhook attempt record.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
	DeliveryStatusExhausted DeliveryStatus = "EXHAUSTED"
)

// WebhookDeliveryAttempt is the persisted unit of webhook delivery work.
// One row is created per (event, subscription) pair at emission time. The
// dispatcher mutates AttemptCount/Status/NextAttemptAt on every try; all
// retry state lives here so an interrupted dispatcher resumes on restart.
type WebhookDeliveryAttempt struct {
	ID             uuid.UUID      `json:"id"`
	SubscriptionID uuid.UUID      `json:"subscription_id"`
	MerchantID     uuid.UUID      `json:"merchant_id"`
	EventID        uuid.UUID      `json:"event_id"`
	EventType      EventType      `json:"event_type"`
	Payload        []byte         `json:"payload"` // JSON snapshot taken at emission
	AttemptCount   int            `json:"attempt_count"`
	Status         DeliveryStatus `json:"status"`
	NextAttemptAt  time.Time      `json:"next_attempt_at"`
	LastHTTPStatus *int           `json:"last_http_status,omitempty"`
	LastError      *string        `json:"last_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsTerminal returns true once the attempt will never be retried again.
func (a *WebhookDeliveryAttempt) IsTerminal() bool {
	return a.Status == DeliveryStatusDelivered || a.Status == DeliveryStatusExhausted
}
