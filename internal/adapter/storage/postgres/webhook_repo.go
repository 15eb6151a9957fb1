package postgres

import (
	"context"
	"errors"
	"fmt"

	"payment-processor/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WebhookSubscriptionRepo implements ports.WebhookSubscriptionRepository.
type WebhookSubscriptionRepo struct {
	pool Pool
}

// NewWebhookSubscriptionRepo creates a new WebhookSubscriptionRepo.
func NewWebhookSubscriptionRepo(pool Pool) *WebhookSubscriptionRepo {
	return &WebhookSubscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, merchant_id, target_url, secret_enc, active, created_at`

// Create inserts a webhook subscription.
func (r *WebhookSubscriptionRepo) Create(ctx context.Context, sub *domain.WebhookSubscription) error {
	query := `INSERT INTO webhook_subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		sub.ID, sub.MerchantID, sub.TargetURL, sub.SecretEnc, sub.Active, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook subscription: %w", err)
	}
	return nil
}

// GetByID fetches a subscription by UUID.
func (r *WebhookSubscriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM webhook_subscriptions WHERE id = $1`
	return r.scanSubscription(r.pool.QueryRow(ctx, query, id))
}

// ListByMerchant fetches all subscriptions for a merchant.
func (r *WebhookSubscriptionRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.WebhookSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM webhook_subscriptions
		WHERE merchant_id = $1 ORDER BY created_at DESC`
	return r.querySubscriptions(ctx, query, merchantID)
}

// ListActiveByMerchant fetches the subscriptions that receive events.
func (r *WebhookSubscriptionRepo) ListActiveByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.WebhookSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM webhook_subscriptions
		WHERE merchant_id = $1 AND active ORDER BY created_at DESC`
	return r.querySubscriptions(ctx, query, merchantID)
}

// Delete removes a subscription owned by merchantID.
func (r *WebhookSubscriptionRepo) Delete(ctx context.Context, merchantID, id uuid.UUID) (bool, error) {
	query := `DELETE FROM webhook_subscriptions WHERE id = $1 AND merchant_id = $2`

	tag, err := r.pool.Exec(ctx, query, id, merchantID)
	if err != nil {
		return false, fmt.Errorf("delete webhook subscription: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *WebhookSubscriptionRepo) querySubscriptions(ctx context.Context, query string, args ...any) ([]domain.WebhookSubscription, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list webhook subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.WebhookSubscription
	for rows.Next() {
		s := domain.WebhookSubscription{}
		if err := rows.Scan(&s.ID, &s.MerchantID, &s.TargetURL, &s.SecretEnc, &s.Active, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook subscription row: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook subscription rows: %w", err)
	}
	return subs, nil
}

func (r *WebhookSubscriptionRepo) scanSubscription(row pgx.Row) (*domain.WebhookSubscription, error) {
	s := &domain.WebhookSubscription{}
	err := row.Scan(&s.ID, &s.MerchantID, &s.TargetURL, &s.SecretEnc, &s.Active, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan webhook subscription: %w", err)
	}
	return s, nil
}
