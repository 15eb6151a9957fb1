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

// RefundRepo implements ports.RefundRepository.
type RefundRepo struct {
	pool Pool
}

// NewRefundRepo creates a new RefundRepo.
func NewRefundRepo(pool Pool) *RefundRepo {
	return &RefundRepo{pool: pool}
}

const refundColumns = `id, transaction_id, merchant_id, amount, reason, status,
		settlement_ref, failure_reason, claimed_at, created_at, updated_at`

// Create inserts a pending refund within the caller's database transaction.
// Runs under the FOR UPDATE lock on the parent transaction row, so the
// amount check and the insert are serialized per transaction.
func (r *RefundRepo) Create(ctx context.Context, tx pgx.Tx, ref *domain.Refund) error {
	query := `INSERT INTO refunds (` + refundColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.Exec(ctx, query,
		ref.ID, ref.TransactionID, ref.MerchantID, ref.Amount, ref.Reason, ref.Status,
		ref.SettlementRef, ref.FailureReason, ref.ClaimedAt, ref.CreatedAt, ref.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}

// GetByID fetches a refund by UUID.
func (r *RefundRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE id = $1`
	return r.scanRefund(r.pool.QueryRow(ctx, query, id))
}

// SumActiveAmount totals the non-failed refund amounts for a transaction
// inside the caller's database transaction.
func (r *RefundRepo) SumActiveAmount(ctx context.Context, tx pgx.Tx, transactionID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM refunds
		WHERE transaction_id = $1 AND status != 'FAILED'`

	var sum int64
	if err := tx.QueryRow(ctx, query, transactionID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum refund amounts: %w", err)
	}
	return sum, nil
}

// Claim sets the worker claim marker if unset. The single-statement CAS
// guarantees at most one worker applies a given refund even when the queue
// redelivers the job.
func (r *RefundRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE refunds SET claimed_at = $1, updated_at = $1
		WHERE id = $2 AND claimed_at IS NULL AND status = 'PENDING'`

	tag, err := r.pool.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("claim refund: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Finalize moves a pending refund to a terminal status.
func (r *RefundRepo) Finalize(ctx context.Context, id uuid.UUID, status domain.RefundStatus, settlementRef, failureReason *string) (bool, error) {
	query := `UPDATE refunds
		SET status = $1, settlement_ref = $2, failure_reason = $3, updated_at = $4
		WHERE id = $5 AND status = 'PENDING'`

	tag, err := r.pool.Exec(ctx, query, status, settlementRef, failureReason, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("finalize refund: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByTransaction fetches all refunds for a transaction, newest first.
func (r *RefundRepo) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds
		WHERE transaction_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []domain.Refund
	for rows.Next() {
		ref := domain.Refund{}
		err := rows.Scan(
			&ref.ID, &ref.TransactionID, &ref.MerchantID, &ref.Amount, &ref.Reason, &ref.Status,
			&ref.SettlementRef, &ref.FailureReason, &ref.ClaimedAt, &ref.CreatedAt, &ref.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan refund row: %w", err)
		}
		refunds = append(refunds, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refund rows: %w", err)
	}
	return refunds, nil
}

// scanRefund is a helper to scan a single row into a Refund.
func (r *RefundRepo) scanRefund(row pgx.Row) (*domain.Refund, error) {
	ref := &domain.Refund{}
	err := row.Scan(
		&ref.ID, &ref.TransactionID, &ref.MerchantID, &ref.Amount, &ref.Reason, &ref.Status,
		&ref.SettlementRef, &ref.FailureReason, &ref.ClaimedAt, &ref.CreatedAt, &ref.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan refund: %w", err)
	}
	return ref, nil
}
