package postgres

import (
	"context"
	"testing"
	"time"

	"payment-processor/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refundCols = []string{
	"id", "transaction_id", "merchant_id", "amount", "reason", "status",
	"settlement_ref", "failure_reason", "claimed_at", "created_at", "updated_at",
}

func sampleRefund() *domain.Refund {
	now := time.Now().UTC()
	return &domain.Refund{
		ID:            uuid.New(),
		TransactionID: uuid.New(),
		MerchantID:    uuid.New(),
		Amount:        2500,
		Reason:        "customer request",
		Status:        domain.RefundStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestRefundRepo_CreateInTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewRefundRepo(mock)
	ref := sampleRefund()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO refunds").
		WithArgs(ref.ID, ref.TransactionID, ref.MerchantID, ref.Amount, ref.Reason, ref.Status,
			ref.SettlementRef, ref.FailureReason, ref.ClaimedAt, ref.CreatedAt, ref.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), tx, ref))
	require.NoError(t, tx.Commit(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundRepo_SumActiveAmount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewRefundRepo(mock)
	transactionID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(transactionID).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(int64(6000)))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	sum, err := repo.SumActiveAmount(context.Background(), tx, transactionID)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), sum)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundRepo_Claim(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewRefundRepo(mock)
	id := uuid.New()

	// First claim wins.
	mock.ExpectExec("UPDATE refunds SET claimed_at").
		WithArgs(pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.Claim(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	// Redelivered task loses the claim.
	mock.ExpectExec("UPDATE refunds SET claimed_at").
		WithArgs(pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err = repo.Claim(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundRepo_Finalize(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewRefundRepo(mock)
	id := uuid.New()
	ref := "ext_rev"

	mock.ExpectExec("UPDATE refunds").
		WithArgs(domain.RefundStatusCompleted, &ref, (*string)(nil), pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.Finalize(context.Background(), id, domain.RefundStatusCompleted, &ref, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// Terminal refunds cannot be finalized twice.
	mock.ExpectExec("UPDATE refunds").
		WithArgs(domain.RefundStatusCompleted, &ref, (*string)(nil), pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err = repo.Finalize(context.Background(), id, domain.RefundStatusCompleted, &ref, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundRepo_GetByID_NotFoundIsNil(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewRefundRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM refunds WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(refundCols))

	got, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}
