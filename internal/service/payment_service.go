package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"payment-processor/internal/core/domain"
	"payment-processor/internal/core/ports"
	"payment-processor/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

var supportedCurrencies = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "VND": {}, "JPY": {}, "SGD": {},
}

// PaymentServiceImpl implements ports.PaymentService. Acceptance is the only
// synchronous step: the transaction is persisted as PENDING and a task is
// enqueued; settlement happens on the worker side.
type PaymentServiceImpl struct {
	txRepo     ports.TransactionRepository
	keyRepo    ports.PaymentKeyRepository
	idempCache ports.IdempotencyCache
	queue      ports.TaskQueue
	log        zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	txRepo ports.TransactionRepository,
	keyRepo ports.PaymentKeyRepository,
	idempCache ports.IdempotencyCache,
	queue ports.TaskQueue,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		txRepo:     txRepo,
		keyRepo:    keyRepo,
		idempCache: idempCache,
		queue:      queue,
		log:        log,
	}
}

// CreateTransaction accepts a transaction into the pipeline. A reused
// idempotency key returns the original transaction unchanged, regardless of
// the rest of the request body.
func (s *PaymentServiceImpl) CreateTransaction(ctx context.Context, req ports.CreateTransactionRequest) (*domain.Transaction, bool, error) {
	if req.Amount <= 0 {
		return nil, false, apperror.ErrInvalidAmount()
	}
	if _, ok := supportedCurrencies[req.Currency]; !ok {
		return nil, false, apperror.ErrInvalidCurrency()
	}
	if req.IdempotencyKey == "" {
		return nil, false, apperror.Validation("idempotency_key is required")
	}

	key, err := s.keyRepo.GetByKey(ctx, req.PaymentKey)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("lookup payment key: %w", err))
	}
	if key == nil || !key.Active || key.MerchantID != req.MerchantID {
		return nil, false, apperror.ErrInvalidPaymentKey()
	}

	// Fast path: the Redis cache short-circuits duplicates without touching
	// the database. The unique constraint below remains the source of truth.
	cacheKey := domain.BuildIdempotencyKey(req.MerchantID, req.IdempotencyKey)
	cached, err := s.idempCache.Get(ctx, cacheKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", cacheKey).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		txn := &domain.Transaction{}
		if err := json.Unmarshal(cached, txn); err == nil {
			s.requeueIfPending(ctx, txn)
			return txn, true, nil
		}
		s.log.Warn().Str("key", cacheKey).Msg("discarding unreadable cached idempotency entry")
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:             uuid.New(),
		MerchantID:     req.MerchantID,
		IdempotencyKey: req.IdempotencyKey,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    req.Description,
		Status:         domain.TransactionStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.txRepo.Create(ctx, txn); err != nil {
		if errors.Is(err, ports.ErrDuplicateIdempotencyKey) {
			existing, gerr := s.txRepo.GetByIdempotencyKey(ctx, req.MerchantID, req.IdempotencyKey)
			if gerr != nil {
				return nil, false, apperror.InternalError(fmt.Errorf("load duplicate transaction: %w", gerr))
			}
			if existing == nil {
				return nil, false, apperror.InternalError(fmt.Errorf("duplicate key but transaction missing: %s", cacheKey))
			}
			s.cacheTransaction(ctx, cacheKey, existing)
			s.requeueIfPending(ctx, existing)
			return existing, true, nil
		}
		return nil, false, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	if err := s.enqueueSettlement(ctx, txn.ID); err != nil {
		// The transaction is persisted but the task never entered the
		// queue, so the reaper cannot recover it. Surface this loudly;
		// a replay of the same idempotency key re-enqueues the row.
		s.log.Error().Err(err).Str("tx_id", txn.ID.String()).Msg("failed to enqueue transaction task")
	}

	s.cacheTransaction(ctx, cacheKey, txn)

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("merchant_id", req.MerchantID.String()).
		Int64("amount", req.Amount).
		Str("currency", req.Currency).
		Msg("transaction accepted")

	return txn, false, nil
}

// GetTransaction returns a transaction owned by merchantID.
func (s *PaymentServiceImpl) GetTransaction(ctx context.Context, merchantID, id uuid.UUID) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction: %w", err))
	}
	if txn == nil || txn.MerchantID != merchantID {
		return nil, apperror.ErrNotFound("transaction")
	}
	return txn, nil
}

// ListTransactions returns a filtered page of the merchant's transactions.
func (s *PaymentServiceImpl) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	items, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return items, total, nil
}

func (s *PaymentServiceImpl) enqueueSettlement(ctx context.Context, txID uuid.UUID) error {
	return s.queue.Enqueue(ctx, ports.Task{
		ID:         uuid.New(),
		Kind:       ports.TaskProcessTransaction,
		EntityID:   txID,
		EnqueuedAt: time.Now().UTC(),
	})
}

// requeueIfPending re-enqueues the settlement task when a replayed
// idempotency key finds the original transaction still PENDING. The
// accept-time task may have been lost to an enqueue failure; duplicate tasks
// are harmless because the worker's claim CAS admits only one settlement.
func (s *PaymentServiceImpl) requeueIfPending(ctx context.Context, txn *domain.Transaction) {
	if txn.Status != domain.TransactionStatusPending {
		return
	}
	if err := s.enqueueSettlement(ctx, txn.ID); err != nil {
		s.log.Error().Err(err).Str("tx_id", txn.ID.String()).Msg("failed to re-enqueue pending transaction")
	}
}

func (s *PaymentServiceImpl) cacheTransaction(ctx context.Context, cacheKey string, txn *domain.Transaction) {
	respJSON, err := json.Marshal(txn)
	if err != nil {
		return
	}
	if err := s.idempCache.Set(ctx, cacheKey, respJSON, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache idempotency in redis")
	}
}
