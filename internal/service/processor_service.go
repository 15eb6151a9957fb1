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

const failureReasonUnavailable = "settlement_unavailable"

// ProcessorServiceImpl implements ports.TransactionProcessor. It claims a
// pending transaction via compare-and-set, drives it through the settlement
// gateway with bounded retries, and lands it in exactly one terminal status.
// Safe under task redelivery: terminal transactions are acked without effect
// and the claim CAS keeps two live workers off the same row.
type ProcessorServiceImpl struct {
	txRepo      ports.TransactionRepository
	gateway     ports.SettlementGateway
	emitter     ports.EventEmitter
	maxAttempts int
	baseDelay   time.Duration
	log         zerolog.Logger
}

// NewProcessorService creates a new ProcessorServiceImpl.
func NewProcessorService(
	txRepo ports.TransactionRepository,
	gateway ports.SettlementGateway,
	emitter ports.EventEmitter,
	maxAttempts int,
	baseDelay time.Duration,
	log zerolog.Logger,
) *ProcessorServiceImpl {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ProcessorServiceImpl{
		txRepo:      txRepo,
		gateway:     gateway,
		emitter:     emitter,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		log:         log,
	}
}

// ProcessTransaction settles the transaction identified by id.
func (s *ProcessorServiceImpl) ProcessTransaction(ctx context.Context, id uuid.UUID) error {
	txn, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("load transaction: %w", err))
	}
	if txn == nil {
		return apperror.ErrNotFound("transaction")
	}
	if txn.IsTerminal() {
		// Redelivered task for finished work, nothing to do.
		return nil
	}

	if txn.Status == domain.TransactionStatusPending {
		claimed, err := s.txRepo.UpdateStatus(ctx, id, domain.TransactionStatusPending, domain.TransactionStatusProcessing, nil, nil)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("claim transaction: %w", err))
		}
		if !claimed {
			// Lost the race: another worker owns this row now. If that
			// worker dies mid-settlement, the lease expires and the task
			// comes back with the row already PROCESSING.
			return nil
		}
	}
	// A row that was already PROCESSING at load time is a lease-expired
	// redelivery: the claimant died mid-settlement, so we run it again.

	result, err := s.settleWithRetry(ctx, txn)
	if err != nil {
		if apperror.IsTransient(err) {
			s.finalize(ctx, txn, domain.TransactionStatusFailed, nil, strPtr(failureReasonUnavailable))
			return nil
		}
		return err
	}

	if result.Approved {
		s.finalize(ctx, txn, domain.TransactionStatusSettled, strPtr(result.Reference), nil)
	} else {
		reason := result.DeclineReason
		if reason == "" {
			reason = "declined"
		}
		s.finalize(ctx, txn, domain.TransactionStatusFailed, nil, strPtr(reason))
	}
	return nil
}

// settleWithRetry calls the gateway up to maxAttempts times, backing off
// exponentially on transient failures. Business declines return immediately.
func (s *ProcessorServiceImpl) settleWithRetry(ctx context.Context, txn *domain.Transaction) (*ports.SettlementResult, error) {
	req := ports.SettlementRequest{
		TransactionID: txn.ID.String(),
		Amount:        txn.Amount,
		Currency:      txn.Currency,
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		result, err := s.gateway.AuthorizeAndCapture(ctx, req)
		if err == nil {
			return result, nil
		}
		if !apperror.IsTransient(err) {
			return nil, err
		}
		lastErr = err

		s.log.Warn().Err(err).
			Str("tx_id", txn.ID.String()).
			Int("attempt", attempt).
			Msg("settlement attempt failed")

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

// finalize moves the transaction into a terminal status and emits the
// corresponding event, but only when this worker wins the terminal CAS. The
// loser of the race emits nothing, which is what keeps events once-per-
// transition under redelivery.
func (s *ProcessorServiceImpl) finalize(ctx context.Context, txn *domain.Transaction, to domain.TransactionStatus, settlementRef, failureReason *string) {
	ok, err := s.txRepo.UpdateStatus(ctx, txn.ID, domain.TransactionStatusProcessing, to, settlementRef, failureReason)
	if err != nil {
		s.log.Error().Err(err).Str("tx_id", txn.ID.String()).Msg("failed to finalize transaction")
		return
	}
	if !ok {
		s.log.Info().Str("tx_id", txn.ID.String()).Msg("transaction already finalized by another worker")
		return
	}

	txn.Status = to
	txn.SettlementRef = settlementRef
	txn.FailureReason = failureReason
	txn.UpdatedAt = time.Now().UTC()

	if err := s.emitter.Emit(ctx, domain.NewTransactionEvent(txn)); err != nil {
		s.log.Error().Err(err).Str("tx_id", txn.ID.String()).Msg("failed to emit transaction event")
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("status", string(to)).
		Msg("transaction finalized")
}

func strPtr(s string) *string { return &s }
