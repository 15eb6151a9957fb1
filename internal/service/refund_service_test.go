package service

import (
	"context"
	"testing"
	"time"

	"payment-processor/internal/core/domain"
	"payment-processor/internal/core/ports"
	"payment-processor/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type refundFixture struct {
	refundRepo *mocks.MockRefundRepository
	txRepo     *mocks.MockTransactionRepository
	transactor *mocks.MockDBTransactor
	queue      *mocks.MockTaskQueue
	gateway    *mocks.MockSettlementGateway
	emitter    *mocks.MockEventEmitter
	svc        *RefundServiceImpl
}

func newRefundFixture(t *testing.T, maxAttempts int) *refundFixture {
	ctrl := gomock.NewController(t)
	f := &refundFixture{
		refundRepo: mocks.NewMockRefundRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		queue:      mocks.NewMockTaskQueue(ctrl),
		gateway:    mocks.NewMockSettlementGateway(ctrl),
		emitter:    mocks.NewMockEventEmitter(ctrl),
	}
	f.svc = NewRefundService(
		f.refundRepo, f.txRepo, f.transactor, f.queue, f.gateway, f.emitter,
		maxAttempts, time.Millisecond, time.Minute, zerolog.Nop(),
	)
	return f
}

// beginTx hands out a real pgx.Tx backed by pgxmock so the service can pass it
// through to the repositories and commit or roll it back.
func beginTx(t *testing.T, commit bool) pgx.Tx {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	mockPool.ExpectBegin()
	if commit {
		mockPool.ExpectCommit()
	} else {
		mockPool.ExpectRollback()
	}
	tx, err := mockPool.Begin(context.Background())
	require.NoError(t, err)
	return tx
}

func settledTransaction(merchantID uuid.UUID, amount int64) *domain.Transaction {
	ref := "sim_settled"
	return &domain.Transaction{
		ID:            uuid.New(),
		MerchantID:    merchantID,
		Amount:        amount,
		Currency:      "USD",
		Status:        domain.TransactionStatusSettled,
		SettlementRef: &ref,
	}
}

func TestRefundService_CreateRefund_Success(t *testing.T) {
	f := newRefundFixture(t, 3)
	merchantID := uuid.New()
	parent := settledTransaction(merchantID, 10000)
	tx := beginTx(t, true)

	f.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	f.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, parent.ID).Return(parent, nil)
	f.refundRepo.EXPECT().SumActiveAmount(gomock.Any(), tx, parent.ID).Return(int64(4000), nil)
	f.refundRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, r *domain.Refund) error {
			assert.Equal(t, domain.RefundStatusPending, r.Status)
			assert.Equal(t, int64(6000), r.Amount)
			return nil
		})
	f.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, task ports.Task) error {
			assert.Equal(t, ports.TaskApplyRefund, task.Kind)
			return nil
		})

	refund, err := f.svc.CreateRefund(context.Background(), ports.CreateRefundRequest{
		MerchantID:    merchantID,
		TransactionID: parent.ID,
		Amount:        6000,
		Reason:        "customer request",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RefundStatusPending, refund.Status)
	assert.Equal(t, parent.ID, refund.TransactionID)
}

func TestRefundService_CreateRefund_ExceedsRemainingBalance(t *testing.T) {
	f := newRefundFixture(t, 3)
	merchantID := uuid.New()
	parent := settledTransaction(merchantID, 10000)
	tx := beginTx(t, false)

	f.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	f.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, parent.ID).Return(parent, nil)
	// 6000 already pending or completed, another 5000 would overshoot.
	f.refundRepo.EXPECT().SumActiveAmount(gomock.Any(), tx, parent.ID).Return(int64(6000), nil)

	_, err := f.svc.CreateRefund(context.Background(), ports.CreateRefundRequest{
		MerchantID:    merchantID,
		TransactionID: parent.ID,
		Amount:        5000,
	})
	assertAppError(t, err, "AMOUNT_001")
}

func TestRefundService_CreateRefund_ExactRemainingBalanceAllowed(t *testing.T) {
	f := newRefundFixture(t, 3)
	merchantID := uuid.New()
	parent := settledTransaction(merchantID, 10000)
	tx := beginTx(t, true)

	f.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	f.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, parent.ID).Return(parent, nil)
	f.refundRepo.EXPECT().SumActiveAmount(gomock.Any(), tx, parent.ID).Return(int64(6000), nil)
	f.refundRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(nil)
	f.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil)

	refund, err := f.svc.CreateRefund(context.Background(), ports.CreateRefundRequest{
		MerchantID:    merchantID,
		TransactionID: parent.ID,
		Amount:        4000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4000), refund.Amount)
}

func TestRefundService_CreateRefund_NotSettled(t *testing.T) {
	f := newRefundFixture(t, 3)
	merchantID := uuid.New()
	parent := settledTransaction(merchantID, 10000)
	parent.Status = domain.TransactionStatusProcessing
	tx := beginTx(t, false)

	f.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	f.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, parent.ID).Return(parent, nil)

	_, err := f.svc.CreateRefund(context.Background(), ports.CreateRefundRequest{
		MerchantID:    merchantID,
		TransactionID: parent.ID,
		Amount:        1000,
	})
	assertAppError(t, err, "STATE_001")
}

func TestRefundService_CreateRefund_WrongMerchant(t *testing.T) {
	f := newRefundFixture(t, 3)
	parent := settledTransaction(uuid.New(), 10000)
	tx := beginTx(t, false)

	f.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	f.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, parent.ID).Return(parent, nil)

	_, err := f.svc.CreateRefund(context.Background(), ports.CreateRefundRequest{
		MerchantID:    uuid.New(),
		TransactionID: parent.ID,
		Amount:        1000,
	})
	assertAppError(t, err, "PAY_001")
}

func TestRefundService_CreateRefund_InvalidAmount(t *testing.T) {
	f := newRefundFixture(t, 3)

	_, err := f.svc.CreateRefund(context.Background(), ports.CreateRefundRequest{
		MerchantID:    uuid.New(),
		TransactionID: uuid.New(),
		Amount:        0,
	})
	assertAppError(t, err, "VAL_001")
}

func pendingRefund(merchantID uuid.UUID, transactionID uuid.UUID, amount int64) *domain.Refund {
	return &domain.Refund{
		ID:            uuid.New(),
		TransactionID: transactionID,
		MerchantID:    merchantID,
		Amount:        amount,
		Status:        domain.RefundStatusPending,
	}
}

func TestRefundService_ApplyRefund_Completed(t *testing.T) {
	f := newRefundFixture(t, 3)
	merchantID := uuid.New()
	parent := settledTransaction(merchantID, 10000)
	refund := pendingRefund(merchantID, parent.ID, 4000)

	f.refundRepo.EXPECT().GetByID(gomock.Any(), refund.ID).Return(refund, nil)
	f.refundRepo.EXPECT().Claim(gomock.Any(), refund.ID).Return(true, nil)
	f.txRepo.EXPECT().GetByID(gomock.Any(), parent.ID).Return(parent, nil)
	f.gateway.EXPECT().Reverse(gomock.Any(), *parent.SettlementRef, int64(4000), "USD").
		Return(&ports.SettlementResult{Approved: true, Reference: "sim_rev"}, nil)
	f.refundRepo.EXPECT().Finalize(gomock.Any(), refund.ID, domain.RefundStatusCompleted, gomock.Any(), nil).Return(true, nil)
	f.emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event domain.Event) error {
			assert.Equal(t, domain.EventRefundCompleted, event.Type)
			return nil
		})

	require.NoError(t, f.svc.ApplyRefund(context.Background(), refund.ID))
	assert.Equal(t, domain.RefundStatusCompleted, refund.Status)
	require.NotNil(t, refund.SettlementRef)
	assert.Equal(t, "sim_rev", *refund.SettlementRef)
}

func TestRefundService_ApplyRefund_Rejected(t *testing.T) {
	f := newRefundFixture(t, 3)
	merchantID := uuid.New()
	parent := settledTransaction(merchantID, 10000)
	refund := pendingRefund(merchantID, parent.ID, 4000)

	f.refundRepo.EXPECT().GetByID(gomock.Any(), refund.ID).Return(refund, nil)
	f.refundRepo.EXPECT().Claim(gomock.Any(), refund.ID).Return(true, nil)
	f.txRepo.EXPECT().GetByID(gomock.Any(), parent.ID).Return(parent, nil)
	f.gateway.EXPECT().Reverse(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&ports.SettlementResult{Approved: false, DeclineReason: "capture_expired"}, nil)
	f.refundRepo.EXPECT().Finalize(gomock.Any(), refund.ID, domain.RefundStatusFailed, nil, gomock.Any()).Return(true, nil)
	f.emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event domain.Event) error {
			assert.Equal(t, domain.EventRefundFailed, event.Type)
			return nil
		})

	require.NoError(t, f.svc.ApplyRefund(context.Background(), refund.ID))
	require.NotNil(t, refund.FailureReason)
	assert.Equal(t, "capture_expired", *refund.FailureReason)
}

func TestRefundService_ApplyRefund_TerminalRedeliveryIsNoop(t *testing.T) {
	f := newRefundFixture(t, 3)
	refund := pendingRefund(uuid.New(), uuid.New(), 100)
	refund.Status = domain.RefundStatusCompleted

	f.refundRepo.EXPECT().GetByID(gomock.Any(), refund.ID).Return(refund, nil)

	require.NoError(t, f.svc.ApplyRefund(context.Background(), refund.ID))
}

func TestRefundService_ApplyRefund_LostClaim(t *testing.T) {
	f := newRefundFixture(t, 3)
	refund := pendingRefund(uuid.New(), uuid.New(), 100)

	f.refundRepo.EXPECT().GetByID(gomock.Any(), refund.ID).Return(refund, nil)
	f.refundRepo.EXPECT().Claim(gomock.Any(), refund.ID).Return(false, nil)
	// ClaimedAt is nil in our snapshot, meaning another live worker claimed
	// it after our read. Nothing further happens here.

	require.NoError(t, f.svc.ApplyRefund(context.Background(), refund.ID))
}

func TestRefundService_ApplyRefund_RecentClaimIsNotResumed(t *testing.T) {
	f := newRefundFixture(t, 3)
	refund := pendingRefund(uuid.New(), uuid.New(), 4000)
	claimedAt := time.Now().Add(-time.Second)
	refund.ClaimedAt = &claimedAt

	f.refundRepo.EXPECT().GetByID(gomock.Any(), refund.ID).Return(refund, nil)
	f.refundRepo.EXPECT().Claim(gomock.Any(), refund.ID).Return(false, nil)
	// The claim is younger than the visibility window: a slow but live
	// worker may still finalize it. No second Reverse call is made.

	require.NoError(t, f.svc.ApplyRefund(context.Background(), refund.ID))
}

func TestRefundService_ApplyRefund_ResumesStaleClaim(t *testing.T) {
	f := newRefundFixture(t, 3)
	merchantID := uuid.New()
	parent := settledTransaction(merchantID, 10000)
	refund := pendingRefund(merchantID, parent.ID, 4000)
	claimedAt := time.Now().Add(-10 * time.Minute)
	refund.ClaimedAt = &claimedAt

	f.refundRepo.EXPECT().GetByID(gomock.Any(), refund.ID).Return(refund, nil)
	f.refundRepo.EXPECT().Claim(gomock.Any(), refund.ID).Return(false, nil)
	f.txRepo.EXPECT().GetByID(gomock.Any(), parent.ID).Return(parent, nil)
	f.gateway.EXPECT().Reverse(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&ports.SettlementResult{Approved: true, Reference: "sim_rev"}, nil)
	f.refundRepo.EXPECT().Finalize(gomock.Any(), refund.ID, domain.RefundStatusCompleted, gomock.Any(), nil).Return(true, nil)
	f.emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	require.NoError(t, f.svc.ApplyRefund(context.Background(), refund.ID))
}

func TestRefundService_ApplyRefund_MissingSettlementRef(t *testing.T) {
	f := newRefundFixture(t, 3)
	merchantID := uuid.New()
	parent := settledTransaction(merchantID, 10000)
	parent.SettlementRef = nil
	refund := pendingRefund(merchantID, parent.ID, 4000)

	f.refundRepo.EXPECT().GetByID(gomock.Any(), refund.ID).Return(refund, nil)
	f.refundRepo.EXPECT().Claim(gomock.Any(), refund.ID).Return(true, nil)
	f.txRepo.EXPECT().GetByID(gomock.Any(), parent.ID).Return(parent, nil)
	f.refundRepo.EXPECT().Finalize(gomock.Any(), refund.ID, domain.RefundStatusFailed, nil, gomock.Any()).Return(true, nil)
	f.emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	require.NoError(t, f.svc.ApplyRefund(context.Background(), refund.ID))
}
