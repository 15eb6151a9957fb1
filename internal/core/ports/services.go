package ports

import (
	"context"
	"time"

	"payment-processor/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification of webhook
// payloads.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(merchantID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	MerchantID uuid.UUID
}

// IdempotencyCache is the Redis-layer duplicate check (fast path). The
// database unique constraint remains the source of truth.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// --- Service Ports (Business Logic) ---

// PaymentService accepts transactions into the async pipeline and exposes
// read access. CreateTransaction never blocks on settlement.
type PaymentService interface {
	// CreateTransaction returns the created or, for a reused idempotency
	// key, the already existing transaction. The bool reports whether the
	// request was a duplicate.
	CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*domain.Transaction, bool, error)
	GetTransaction(ctx context.Context, merchantID, id uuid.UUID) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// CreateTransactionRequest holds validated input for transaction creation.
type CreateTransactionRequest struct {
	MerchantID     uuid.UUID
	IdempotencyKey string
	PaymentKey     string
	Amount         int64
	Currency       string
	Description    string
}

// TransactionProcessor drives a claimed transaction through settlement.
// Called by queue workers, never by the request path.
type TransactionProcessor interface {
	ProcessTransaction(ctx context.Context, id uuid.UUID) error
}

// RefundService validates and applies refunds against settled transactions.
type RefundService interface {
	CreateRefund(ctx context.Context, req CreateRefundRequest) (*domain.Refund, error)
	GetRefund(ctx context.Context, merchantID, id uuid.UUID) (*domain.Refund, error)
	// ApplyRefund executes the reverse transfer for an accepted refund.
	// Worker entrypoint; idempotent via the claim marker.
	ApplyRefund(ctx context.Context, id uuid.UUID) error
}

// CreateRefundRequest holds validated input for refund creation.
type CreateRefundRequest struct {
	MerchantID    uuid.UUID
	TransactionID uuid.UUID
	Amount        int64
	Reason        string
}

// WebhookService manages merchant webhook subscriptions.
type WebhookService interface {
	// Register creates a subscription and returns it together with the
	// plaintext signing secret, shown only once.
	Register(ctx context.Context, merchantID uuid.UUID, targetURL string) (*domain.WebhookSubscription, string, error)
	List(ctx context.Context, merchantID uuid.UUID) ([]domain.WebhookSubscription, error)
	Delete(ctx context.Context, merchantID, id uuid.UUID) error
}

// EventEmitter connects terminal state transitions to webhook delivery.
// Emission expands one event into one persisted delivery attempt per active
// subscription of the owning merchant.
type EventEmitter interface {
	Emit(ctx context.Context, event domain.Event) error
}

// AuthService defines authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.Merchant, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
	CreatePaymentKey(ctx context.Context, merchantID uuid.UUID) (*domain.PaymentKey, error)
}

// RegisterRequest holds input for merchant registration.
type RegisterRequest struct {
	Username     string
	Password     string
	MerchantName string
}

// AuditService records successful write operations. Best-effort: failures
// are logged, never propagated.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
