package service

import (
	"context"
	"fmt"
	"time"

	"payment-processor/internal/core/domain"
	"payment-processor/internal/core/ports"
	"payment-processor/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RefundServiceImpl implements ports.RefundService. Acceptance locks the
// parent transaction row so the cumulative-amount check and the insert are
// one atomic unit; concurrent refunds against the same transaction serialize
// on that lock and can never jointly exceed the original amount.
type RefundServiceImpl struct {
	refundRepo  ports.RefundRepository
	txRepo      ports.TransactionRepository
	transactor  ports.DBTransactor
	queue       ports.TaskQueue
	gateway     ports.SettlementGateway
	emitter     ports.EventEmitter
	maxAttempts int
	baseDelay   time.Duration
	claimLease  time.Duration
	log         zerolog.Logger
}

// NewRefundService creates a new RefundServiceImpl. claimLease is the task
// queue's visibility timeout: a refund claim older than this belongs to a
// dead worker and may be resumed on redelivery.
func NewRefundService(
	refundRepo ports.RefundRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	queue ports.TaskQueue,
	gateway ports.SettlementGateway,
	emitter ports.EventEmitter,
	maxAttempts int,
	baseDelay time.Duration,
	claimLease time.Duration,
	log zerolog.Logger,
) *RefundServiceImpl {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if claimLease <= 0 {
		claimLease = time.Minute
	}
	return &RefundServiceImpl{
		refundRepo:  refundRepo,
		txRepo:      txRepo,
		transactor:  transactor,
		queue:       queue,
		gateway:     gateway,
		emitter:     emitter,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		claimLease:  claimLease,
		log:         log,
	}
}

// CreateRefund validates and accepts a refund against a settled transaction.
func (s *RefundServiceImpl) CreateRefund(ctx context.Context, req ports.CreateRefundRequest) (*domain.Refund, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	parent, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, req.TransactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if parent == nil || parent.MerchantID != req.MerchantID {
		return nil, apperror.ErrNotFound("transaction")
	}
	if !parent.IsRefundable() {
		return nil, apperror.ErrInvalidState(fmt.Sprintf("transaction is %s, only SETTLED transactions are refundable", parent.Status))
	}

	// Pending refunds count against the limit so two in-flight refunds
	// cannot jointly overshoot it.
	refunded, err := s.refundRepo.SumActiveAmount(ctx, dbTx, parent.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum refunds: %w", err))
	}
	if refunded+req.Amount > parent.Amount {
		return nil, apperror.ErrAmountExceeded()
	}

	now := time.Now().UTC()
	refund := &domain.Refund{
		ID:            uuid.New(),
		TransactionID: parent.ID,
		MerchantID:    req.MerchantID,
		Amount:        req.Amount,
		Reason:        req.Reason,
		Status:        domain.RefundStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.refundRepo.Create(ctx, dbTx, refund); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create refund: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	task := ports.Task{
		ID:         uuid.New(),
		Kind:       ports.TaskApplyRefund,
		EntityID:   refund.ID,
		EnqueuedAt: now,
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.log.Error().Err(err).Str("refund_id", refund.ID.String()).Msg("failed to enqueue refund task")
	}

	s.log.Info().
		Str("refund_id", refund.ID.String()).
		Str("tx_id", parent.ID.String()).
		Int64("amount", req.Amount).
		Msg("refund accepted")

	return refund, nil
}

// GetRefund returns a refund owned by merchantID.
func (s *RefundServiceImpl) GetRefund(ctx context.Context, merchantID, id uuid.UUID) (*domain.Refund, error) {
	refund, err := s.refundRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get refund: %w", err))
	}
	if refund == nil || refund.MerchantID != merchantID {
		return nil, apperror.ErrNotFound("refund")
	}
	return refund, nil
}

// ApplyRefund executes the reverse transfer for an accepted refund. Worker
// entrypoint; the claim marker makes redelivered tasks no-ops while a live
// worker holds the refund.
func (s *RefundServiceImpl) ApplyRefund(ctx context.Context, id uuid.UUID) error {
	refund, err := s.refundRepo.GetByID(ctx, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("load refund: %w", err))
	}
	if refund == nil {
		return apperror.ErrNotFound("refund")
	}
	if refund.IsTerminal() {
		return nil
	}

	claimed, err := s.refundRepo.Claim(ctx, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("claim refund: %w", err))
	}
	if !claimed {
		if refund.ClaimedAt == nil || time.Since(*refund.ClaimedAt) < s.claimLease {
			// A live worker holds the claim (or took it after our read).
			// Only a claim older than the visibility window may be
			// resumed, otherwise two workers would both call the gateway.
			return nil
		}
		// The claimant died before finalizing and the task came back after
		// the visibility timeout. Resume it.
		s.log.Warn().Str("refund_id", id.String()).Msg("resuming refund with stale claim")
	}

	parent, err := s.txRepo.GetByID(ctx, refund.TransactionID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("load parent transaction: %w", err))
	}
	if parent == nil || parent.SettlementRef == nil {
		s.finalize(ctx, refund, domain.RefundStatusFailed, nil, strPtr("parent settlement reference missing"))
		return nil
	}

	result, err := s.reverseWithRetry(ctx, refund, *parent.SettlementRef, parent.Currency)
	if err != nil {
		if apperror.IsTransient(err) {
			s.finalize(ctx, refund, domain.RefundStatusFailed, nil, strPtr(failureReasonUnavailable))
			return nil
		}
		return err
	}

	if result.Approved {
		s.finalize(ctx, refund, domain.RefundStatusCompleted, strPtr(result.Reference), nil)
	} else {
		reason := result.DeclineReason
		if reason == "" {
			reason = "rejected"
		}
		s.finalize(ctx, refund, domain.RefundStatusFailed, nil, strPtr(reason))
	}
	return nil
}

func (s *RefundServiceImpl) reverseWithRetry(ctx context.Context, refund *domain.Refund, settlementRef, currency string) (*ports.SettlementResult, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		result, err := s.gateway.Reverse(ctx, settlementRef, refund.Amount, currency)
		if err == nil {
			return result, nil
		}
		if !apperror.IsTransient(err) {
			return nil, err
		}
		lastErr = err

		s.log.Warn().Err(err).
			Str("refund_id", refund.ID.String()).
			Int("attempt", attempt).
			Msg("refund reversal attempt failed")

		if attempt < s.maxAttempts {
			delay := s.baseDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, apperror.ErrCollaboratorTransient(ctx.Err())
			}
		}
	}
	return nil, lastErr
}

func (s *RefundServiceImpl) finalize(ctx context.Context, refund *domain.Refund, to domain.RefundStatus, settlementRef, failureReason *string) {
	ok, err := s.refundRepo.Finalize(ctx, refund.ID, to, settlementRef, failureReason)
	if err != nil {
		s.log.Error().Err(err).Str("refund_id", refund.ID.String()).Msg("failed to finalize refund")
		return
	}
	if !ok {
		s.log.Info().Str("refund_id", refund.ID.String()).Msg("refund already finalized by another worker")
		return
	}

	refund.Status = to
	refund.SettlementRef = settlementRef
	refund.FailureReason = failureReason
	refund.UpdatedAt = time.Now().UTC()

	if err := s.emitter.Emit(ctx, domain.NewRefundEvent(refund)); err != nil {
		s.log.Error().Err(err).Str("refund_id", refund.ID.String()).Msg("failed to emit refund event")
	}

	s.log.Info().
		Str("refund_id", refund.ID.String()).
		Str("status", string(to)).
		Msg("refund finalized")
}
