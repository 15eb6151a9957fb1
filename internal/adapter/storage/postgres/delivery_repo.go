package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-processor/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DeliveryRepo implements ports.DeliveryRepository.
type DeliveryRepo struct {
	pool Pool
}

// NewDeliveryRepo creates a new DeliveryRepo.
func NewDeliveryRepo(pool Pool) *DeliveryRepo {
	return &DeliveryRepo{pool: pool}
}

const deliveryColumns = `id, subscription_id, merchant_id, event_id, event_type, payload,
		attempt_count, status, next_attempt_at, last_http_status, last_error, created_at, updated_at`

// CreateBatch inserts the fan-out of one event: one pending attempt per
// active subscription.
func (r *DeliveryRepo) CreateBatch(ctx context.Context, attempts []domain.WebhookDeliveryAttempt) error {
	query := `INSERT INTO webhook_delivery_attempts (` + deliveryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	for i := range attempts {
		a := &attempts[i]
		_, err := r.pool.Exec(ctx, query,
			a.ID, a.SubscriptionID, a.MerchantID, a.EventID, a.EventType, a.Payload,
			a.AttemptCount, a.Status, a.NextAttemptAt, a.LastHTTPStatus, a.LastError,
			a.CreatedAt, a.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert delivery attempt: %w", err)
		}
	}
	return nil
}

// GetByID fetches a delivery attempt by UUID.
func (r *DeliveryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookDeliveryAttempt, error) {
	query := `SELECT ` + deliveryColumns + ` FROM webhook_delivery_attempts WHERE id = $1`
	return r.scanAttempt(r.pool.QueryRow(ctx, query, id))
}

// ClaimDue selects pending attempts that are due, in arrival order among due
// attempts, and leases them by pushing next_attempt_at forward. SKIP LOCKED
// keeps concurrent dispatchers from fighting over the same rows; the lease
// makes a crashed dispatcher's claim expire on its own.
func (r *DeliveryRepo) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.WebhookDeliveryAttempt, error) {
	query := `UPDATE webhook_delivery_attempts
		SET next_attempt_at = $1, updated_at = $2
		WHERE id IN (
			SELECT id FROM webhook_delivery_attempts
			WHERE status = 'PENDING' AND next_attempt_at <= $2
			ORDER BY next_attempt_at, created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + deliveryColumns

	rows, err := r.pool.Query(ctx, query, now.Add(lease), now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due delivery attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.WebhookDeliveryAttempt
	for rows.Next() {
		a := domain.WebhookDeliveryAttempt{}
		err := rows.Scan(
			&a.ID, &a.SubscriptionID, &a.MerchantID, &a.EventID, &a.EventType, &a.Payload,
			&a.AttemptCount, &a.Status, &a.NextAttemptAt, &a.LastHTTPStatus, &a.LastError,
			&a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan claimed attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed attempts: %w", err)
	}
	return attempts, nil
}

// MarkDelivered finalizes a successful delivery.
func (r *DeliveryRepo) MarkDelivered(ctx context.Context, id uuid.UUID, attemptCount int, httpStatus int) error {
	query := `UPDATE webhook_delivery_attempts
		SET status = 'DELIVERED', attempt_count = $1, last_http_status = $2, last_error = NULL, updated_at = $3
		WHERE id = $4 AND status = 'PENDING'`

	if _, err := r.pool.Exec(ctx, query, attemptCount, httpStatus, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark attempt delivered: %w", err)
	}
	return nil
}

// ScheduleRetry records a failed try and the time of the next one.
func (r *DeliveryRepo) ScheduleRetry(ctx context.Context, id uuid.UUID, attemptCount int, nextAttemptAt time.Time, httpStatus *int, lastError string) error {
	query := `UPDATE webhook_delivery_attempts
		SET attempt_count = $1, next_attempt_at = $2, last_http_status = $3, last_error = $4, updated_at = $5
		WHERE id = $6 AND status = 'PENDING'`

	if _, err := r.pool.Exec(ctx, query, attemptCount, nextAttemptAt, httpStatus, lastError, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("schedule attempt retry: %w", err)
	}
	return nil
}

// MarkExhausted finalizes an attempt whose retry budget ran out.
func (r *DeliveryRepo) MarkExhausted(ctx context.Context, id uuid.UUID, attemptCount int, httpStatus *int, lastError string) error {
	query := `UPDATE webhook_delivery_attempts
		SET status = 'EXHAUSTED', attempt_count = $1, last_http_status = $2, last_error = $3, updated_at = $4
		WHERE id = $5 AND status = 'PENDING'`

	if _, err := r.pool.Exec(ctx, query, attemptCount, httpStatus, lastError, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark attempt exhausted: %w", err)
	}
	return nil
}

// ListByEventID fetches all delivery attempts created for one event.
func (r *DeliveryRepo) ListByEventID(ctx context.Context, eventID uuid.UUID) ([]domain.WebhookDeliveryAttempt, error) {
	query := `SELECT ` + deliveryColumns + ` FROM webhook_delivery_attempts
		WHERE event_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list delivery attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.WebhookDeliveryAttempt
	for rows.Next() {
		a := domain.WebhookDeliveryAttempt{}
		err := rows.Scan(
			&a.ID, &a.SubscriptionID, &a.MerchantID, &a.EventID, &a.EventType, &a.Payload,
			&a.AttemptCount, &a.Status, &a.NextAttemptAt, &a.LastHTTPStatus, &a.LastError,
			&a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan delivery attempt row: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery attempt rows: %w", err)
	}
	return attempts, nil
}

func (r *DeliveryRepo) scanAttempt(row pgx.Row) (*domain.WebhookDeliveryAttempt, error) {
	a := &domain.WebhookDeliveryAttempt{}
	err := row.Scan(
		&a.ID, &a.SubscriptionID, &a.MerchantID, &a.EventID, &a.EventType, &a.Payload,
		&a.AttemptCount, &a.Status, &a.NextAttemptAt, &a.LastHTTPStatus, &a.LastError,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan delivery attempt: %w", err)
	}
	return a, nil
}
