package postgres

import (
	"context"
	"errors"
	"fmt"

	"payment-processor/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// PaymentKeyRepo implements ports.PaymentKeyRepository.
type PaymentKeyRepo struct {
	pool Pool
}

// NewPaymentKeyRepo creates a new PaymentKeyRepo.
func NewPaymentKeyRepo(pool Pool) *PaymentKeyRepo {
	return &PaymentKeyRepo{pool: pool}
}

// Create inserts a payment key.
func (r *PaymentKeyRepo) Create(ctx context.Context, k *domain.PaymentKey) error {
	query := `INSERT INTO payment_keys (id, merchant_id, key, active, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query, k.ID, k.MerchantID, k.Key, k.Active, k.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment key: %w", err)
	}
	return nil
}

// GetByKey fetches a payment key by its token value.
func (r *PaymentKeyRepo) GetByKey(ctx context.Context, key string) (*domain.PaymentKey, error) {
	query := `SELECT id, merchant_id, key, active, created_at FROM payment_keys WHERE key = $1`

	k := &domain.PaymentKey{}
	err := r.pool.QueryRow(ctx, query, key).Scan(&k.ID, &k.MerchantID, &k.Key, &k.Active, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment key: %w", err)
	}
	return k, nil
}
