package ports

import (
	"context"
	"errors"
	"time"

	"payment-processor/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrDuplicateIdempotencyKey is returned by TransactionRepository.Create when
// the (merchant_id, idempotency_key) pair is already reserved. The caller
// resolves it by returning the existing transaction, not by failing.
var ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")

// MerchantRepository defines persistence operations for merchants.
type MerchantRepository interface {
	Create(ctx context.Context, merchant *domain.Merchant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	GetByUsername(ctx context.Context, username string) (*domain.Merchant, error)
}

// PaymentKeyRepository defines persistence operations for payment keys.
type PaymentKeyRepository interface {
	Create(ctx context.Context, key *domain.PaymentKey) error
	GetByKey(ctx context.Context, key string) (*domain.PaymentKey, error)
}

// TransactionRepository defines persistence operations for transactions.
// Status mutations are compare-and-set so concurrent workers cannot
// double-claim a transaction or move it out of a terminal state.
type TransactionRepository interface {
	// Create inserts a pending transaction, atomically reserving its
	// (merchant_id, idempotency_key) pair. Returns
	// ErrDuplicateIdempotencyKey when the pair is already taken.
	Create(ctx context.Context, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, merchantID uuid.UUID, key string) (*domain.Transaction, error)
	// GetByIDForUpdate locks the row for the duration of tx. Used by the
	// refund engine to serialize amount checks per transaction.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error)
	// UpdateStatus transitions id from `from` to `to` in one statement.
	// Returns false when the row was not in `from` (claim lost or terminal).
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus, settlementRef, failureReason *string) (bool, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	MerchantID uuid.UUID
	Status     *domain.TransactionStatus
	Currency   *string
	Page       int
	PageSize   int
}

// RefundRepository defines persistence operations for refunds.
type RefundRepository interface {
	// Create inserts a pending refund inside the caller's database
	// transaction, alongside the FOR UPDATE lock on the parent row.
	Create(ctx context.Context, tx pgx.Tx, r *domain.Refund) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error)
	// SumActiveAmount returns the total of non-failed refund amounts for a
	// transaction. Pending refunds count so concurrent accepts cannot
	// jointly overshoot the limit.
	SumActiveAmount(ctx context.Context, tx pgx.Tx, transactionID uuid.UUID) (int64, error)
	// Claim sets the worker claim marker if unset. Returns false when the
	// refund was already claimed.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	// Finalize moves a pending refund into a terminal status. Returns false
	// when the refund was already terminal.
	Finalize(ctx context.Context, id uuid.UUID, status domain.RefundStatus, settlementRef, failureReason *string) (bool, error)
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]domain.Refund, error)
}

// WebhookSubscriptionRepository defines persistence for merchant webhook
// subscriptions.
type WebhookSubscriptionRepository interface {
	Create(ctx context.Context, sub *domain.WebhookSubscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookSubscription, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.WebhookSubscription, error)
	ListActiveByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.WebhookSubscription, error)
	// Delete removes a subscription owned by merchantID. Returns false when
	// no such subscription exists.
	Delete(ctx context.Context, merchantID, id uuid.UUID) (bool, error)
}

// DeliveryRepository defines persistence for webhook delivery attempts.
type DeliveryRepository interface {
	CreateBatch(ctx context.Context, attempts []domain.WebhookDeliveryAttempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookDeliveryAttempt, error)
	// ClaimDue selects pending attempts whose next_attempt_at has elapsed,
	// in arrival order, and pushes their next_attempt_at forward by lease so
	// concurrent dispatchers skip them. A crashed dispatcher's claim expires
	// with the lease, keeping delivery at-least-once.
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.WebhookDeliveryAttempt, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, attemptCount int, httpStatus int) error
	ScheduleRetry(ctx context.Context, id uuid.UUID, attemptCount int, nextAttemptAt time.Time, httpStatus *int, lastError string) error
	MarkExhausted(ctx context.Context, id uuid.UUID, attemptCount int, httpStatus *int, lastError string) error
	ListByEventID(ctx context.Context, eventID uuid.UUID) ([]domain.WebhookDeliveryAttempt, error)
}

// AuditRepository defines persistence for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
