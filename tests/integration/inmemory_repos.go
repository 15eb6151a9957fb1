package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"payment-processor/internal/core/domain"
	"payment-processor/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// In-memory implementations of the persistence ports so the full stack can
// run without PostgreSQL. Each repo is mutex-guarded, and the transactor
// serializes whole database transactions the way SELECT FOR UPDATE does for
// the refund engine in production.

// --- Merchant repo ---

type inMemoryMerchantRepo struct {
	mu        sync.RWMutex
	merchants map[uuid.UUID]domain.Merchant
}

func newInMemoryMerchantRepo() *inMemoryMerchantRepo {
	return &inMemoryMerchantRepo{merchants: make(map[uuid.UUID]domain.Merchant)}
}

func (r *inMemoryMerchantRepo) Create(ctx context.Context, m *domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.merchants {
		if existing.Username == m.Username {
			return &pgconn.PgError{Code: "23505", ConstraintName: "merchants_username_key"}
		}
	}
	r.merchants[m.ID] = *m
	return nil
}

func (r *inMemoryMerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.merchants[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *inMemoryMerchantRepo) GetByUsername(ctx context.Context, username string) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.merchants {
		if m.Username == username {
			copied := m
			return &copied, nil
		}
	}
	return nil, nil
}

// --- Payment key repo ---

type inMemoryPaymentKeyRepo struct {
	mu   sync.RWMutex
	keys map[string]domain.PaymentKey
}

func newInMemoryPaymentKeyRepo() *inMemoryPaymentKeyRepo {
	return &inMemoryPaymentKeyRepo{keys: make(map[string]domain.PaymentKey)}
}

func (r *inMemoryPaymentKeyRepo) Create(ctx context.Context, key *domain.PaymentKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[key.Key] = *key
	return nil
}

func (r *inMemoryPaymentKeyRepo) GetByKey(ctx context.Context, key string) (*domain.PaymentKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[key]
	if !ok {
		return nil, nil
	}
	return &k, nil
}

// --- Transaction repo ---

type idempotencyPair struct {
	merchantID uuid.UUID
	key        string
}

type inMemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]domain.Transaction
	byIdempKey   map[idempotencyPair]uuid.UUID
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{
		transactions: make(map[uuid.UUID]domain.Transaction),
		byIdempKey:   make(map[idempotencyPair]uuid.UUID),
	}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pair := idempotencyPair{t.MerchantID, t.IdempotencyKey}
	if _, taken := r.byIdempKey[pair]; taken {
		return ports.ErrDuplicateIdempotencyKey
	}
	r.byIdempKey[pair] = t.ID
	r.transactions[t.ID] = *t
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transactions[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *inMemoryTransactionRepo) GetByIdempotencyKey(ctx context.Context, merchantID uuid.UUID, key string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byIdempKey[idempotencyPair{merchantID, key}]
	if !ok {
		return nil, nil
	}
	t := r.transactions[id]
	return &t, nil
}

func (r *inMemoryTransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	// Row locking is emulated by the serializing transactor.
	return r.GetByID(ctx, id)
}

func (r *inMemoryTransactionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus, settlementRef, failureReason *string) (bool, error) {
	if !domain.CanTransition(from, to) {
		return false, fmt.Errorf("illegal transaction transition %s -> %s", from, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	t.SettlementRef = settlementRef
	t.FailureReason = failureReason
	t.UpdatedAt = time.Now().UTC()
	r.transactions[id] = t
	return true, nil
}

func (r *inMemoryTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.Transaction
	for _, t := range r.transactions {
		if t.MerchantID != params.MerchantID {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.Currency != nil && t.Currency != *params.Currency {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))

	start := (params.Page - 1) * params.PageSize
	if start >= len(matched) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// --- Refund repo ---

type inMemoryRefundRepo struct {
	mu      sync.RWMutex
	refunds map[uuid.UUID]domain.Refund
}

func newInMemoryRefundRepo() *inMemoryRefundRepo {
	return &inMemoryRefundRepo{refunds: make(map[uuid.UUID]domain.Refund)}
}

func (r *inMemoryRefundRepo) Create(ctx context.Context, tx pgx.Tx, ref *domain.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refunds[ref.ID] = *ref
	return nil
}

func (r *inMemoryRefundRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.refunds[id]
	if !ok {
		return nil, nil
	}
	return &ref, nil
}

func (r *inMemoryRefundRepo) SumActiveAmount(ctx context.Context, tx pgx.Tx, transactionID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, ref := range r.refunds {
		if ref.TransactionID == transactionID && ref.Status != domain.RefundStatusFailed {
			sum += ref.Amount
		}
	}
	return sum, nil
}

func (r *inMemoryRefundRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.refunds[id]
	if !ok || ref.ClaimedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	ref.ClaimedAt = &now
	r.refunds[id] = ref
	return true, nil
}

func (r *inMemoryRefundRepo) Finalize(ctx context.Context, id uuid.UUID, status domain.RefundStatus, settlementRef, failureReason *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.refunds[id]
	if !ok || ref.Status != domain.RefundStatusPending {
		return false, nil
	}
	ref.Status = status
	ref.SettlementRef = settlementRef
	ref.FailureReason = failureReason
	ref.UpdatedAt = time.Now().UTC()
	r.refunds[id] = ref
	return true, nil
}

func (r *inMemoryRefundRepo) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]domain.Refund, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Refund
	for _, ref := range r.refunds {
		if ref.TransactionID == transactionID {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- Webhook subscription repo ---

type inMemorySubscriptionRepo struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]domain.WebhookSubscription
}

func newInMemorySubscriptionRepo() *inMemorySubscriptionRepo {
	return &inMemorySubscriptionRepo{subs: make(map[uuid.UUID]domain.WebhookSubscription)}
}

func (r *inMemorySubscriptionRepo) Create(ctx context.Context, sub *domain.WebhookSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub.ID] = *sub
	return nil
}

func (r *inMemorySubscriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookSubscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (r *inMemorySubscriptionRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.WebhookSubscription, error) {
	return r.list(merchantID, false), nil
}

func (r *inMemorySubscriptionRepo) ListActiveByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.WebhookSubscription, error) {
	return r.list(merchantID, true), nil
}

func (r *inMemorySubscriptionRepo) list(merchantID uuid.UUID, activeOnly bool) []domain.WebhookSubscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.WebhookSubscription
	for _, sub := range r.subs {
		if sub.MerchantID != merchantID {
			continue
		}
		if activeOnly && !sub.Active {
			continue
		}
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *inMemorySubscriptionRepo) Delete(ctx context.Context, merchantID, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok || sub.MerchantID != merchantID {
		return false, nil
	}
	delete(r.subs, id)
	return true, nil
}

// --- Delivery attempt repo ---

type inMemoryDeliveryRepo struct {
	mu       sync.RWMutex
	attempts map[uuid.UUID]domain.WebhookDeliveryAttempt
}

func newInMemoryDeliveryRepo() *inMemoryDeliveryRepo {
	return &inMemoryDeliveryRepo{attempts: make(map[uuid.UUID]domain.WebhookDeliveryAttempt)}
}

func (r *inMemoryDeliveryRepo) CreateBatch(ctx context.Context, attempts []domain.WebhookDeliveryAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range attempts {
		r.attempts[a.ID] = a
	}
	return nil
}

func (r *inMemoryDeliveryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookDeliveryAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *inMemoryDeliveryRepo) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.WebhookDeliveryAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []domain.WebhookDeliveryAttempt
	for _, a := range r.attempts {
		if a.Status == domain.DeliveryStatusPending && !a.NextAttemptAt.After(now) {
			due = append(due, a)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	for _, a := range due {
		claimed := r.attempts[a.ID]
		claimed.NextAttemptAt = now.Add(lease)
		r.attempts[a.ID] = claimed
	}
	return due, nil
}

func (r *inMemoryDeliveryRepo) MarkDelivered(ctx context.Context, id uuid.UUID, attemptCount int, httpStatus int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.attempts[id]
	a.Status = domain.DeliveryStatusDelivered
	a.AttemptCount = attemptCount
	a.LastHTTPStatus = &httpStatus
	a.UpdatedAt = time.Now().UTC()
	r.attempts[id] = a
	return nil
}

func (r *inMemoryDeliveryRepo) ScheduleRetry(ctx context.Context, id uuid.UUID, attemptCount int, nextAttemptAt time.Time, httpStatus *int, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.attempts[id]
	a.AttemptCount = attemptCount
	a.NextAttemptAt = nextAttemptAt
	a.LastHTTPStatus = httpStatus
	a.LastError = &lastError
	a.UpdatedAt = time.Now().UTC()
	r.attempts[id] = a
	return nil
}

func (r *inMemoryDeliveryRepo) MarkExhausted(ctx context.Context, id uuid.UUID, attemptCount int, httpStatus *int, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.attempts[id]
	a.Status = domain.DeliveryStatusExhausted
	a.AttemptCount = attemptCount
	a.LastHTTPStatus = httpStatus
	a.LastError = &lastError
	a.UpdatedAt = time.Now().UTC()
	r.attempts[id] = a
	return nil
}

func (r *inMemoryDeliveryRepo) ListByEventID(ctx context.Context, eventID uuid.UUID) ([]domain.WebhookDeliveryAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.WebhookDeliveryAttempt
	for _, a := range r.attempts {
		if a.EventID == eventID {
			out = append(out, a)
		}
	}
	return out, nil
}

// --- Serializing transactor ---

// serialTransactor hands out one transaction at a time. Holding the lock
// from Begin until Commit/Rollback gives the refund engine the same
// serialization per process that FOR UPDATE row locks give it in postgres.
type serialTransactor struct {
	mu sync.Mutex
}

func newSerialTransactor() *serialTransactor {
	return &serialTransactor{}
}

func (t *serialTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &serialTx{release: &t.mu}, nil
}

// serialTx is a no-op pgx.Tx that releases the transactor lock exactly once,
// on whichever of Commit/Rollback runs first.
type serialTx struct {
	release *sync.Mutex
	done    bool
	mu      sync.Mutex
}

func (t *serialTx) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.done {
		t.done = true
		t.release.Unlock()
	}
}

func (t *serialTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *serialTx) Commit(ctx context.Context) error          { t.finish(); return nil }
func (t *serialTx) Rollback(ctx context.Context) error        { t.finish(); return nil }
func (t *serialTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *serialTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *serialTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *serialTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *serialTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *serialTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *serialTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *serialTx) Conn() *pgx.Conn { return nil }
