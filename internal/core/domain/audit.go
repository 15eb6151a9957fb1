package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction identifies the kind of operation recorded in the audit trail.
type AuditAction string

const (
	AuditActionRegister          AuditAction = "MERCHANT_REGISTER"
	AuditActionLogin             AuditAction = "MERCHANT_LOGIN"
	AuditActionCreateKey         AuditAction = "PAYMENT_KEY_CREATE"
	AuditActionCreateTransaction AuditAction = "TRANSACTION_CREATE"
	AuditActionCreateRefund      AuditAction = "REFUND_CREATE"
	AuditActionRegisterWebhook   AuditAction = "WEBHOOK_REGISTER"
	AuditActionDeleteWebhook     AuditAction = "WEBHOOK_DELETE"
)

// AuditLog records a successful write operation against the API.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	MerchantID   *uuid.UUID  `json:"merchant_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	IPAddress    string      `json:"ip_address"`
	Details      string      `json:"details"` // JSON blob
	CreatedAt    time.Time   `json:"created_at"`
}
