package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"payment-processor/internal/core/domain"
	"payment-processor/internal/core/ports"
	"payment-processor/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// webhookService implements ports.WebhookService. Signing secrets are stored
// AES-encrypted; the plaintext is returned exactly once at registration.
type webhookService struct {
	subRepo ports.WebhookSubscriptionRepository
	encSvc  ports.EncryptionService
	log     zerolog.Logger
}

// NewWebhookService creates a new webhook subscription service.
func NewWebhookService(
	subRepo ports.WebhookSubscriptionRepository,
	encSvc ports.EncryptionService,
	log zerolog.Logger,
) ports.WebhookService {
	return &webhookService{subRepo: subRepo, encSvc: encSvc, log: log}
}

// Register creates a subscription and returns it with its plaintext secret.
func (s *webhookService) Register(ctx context.Context, merchantID uuid.UUID, targetURL string) (*domain.WebhookSubscription, string, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, "", apperror.Validation("target_url must be a valid http(s) URL")
	}

	secret, err := generateKey("whsec_", 32)
	if err != nil {
		return nil, "", apperror.InternalError(fmt.Errorf("generate webhook secret: %w", err))
	}
	secretEnc, err := s.encSvc.Encrypt(secret)
	if err != nil {
		return nil, "", apperror.ErrEncryptionFailure(fmt.Errorf("encrypt webhook secret: %w", err))
	}

	sub := &domain.WebhookSubscription{
		ID:         uuid.New(),
		MerchantID: merchantID,
		TargetURL:  targetURL,
		SecretEnc:  secretEnc,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, "", apperror.InternalError(fmt.Errorf("create subscription: %w", err))
	}

	s.log.Info().
		Str("subscription_id", sub.ID.String()).
		Str("merchant_id", merchantID.String()).
		Msg("webhook subscription registered")

	return sub, secret, nil
}

// List returns all subscriptions of a merchant.
func (s *webhookService) List(ctx context.Context, merchantID uuid.UUID) ([]domain.WebhookSubscription, error) {
	subs, err := s.subRepo.ListByMerchant(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list subscriptions: %w", err))
	}
	return subs, nil
}

// Delete removes a subscription owned by merchantID. Already-created delivery
// attempts for it keep running until terminal; only future events stop.
func (s *webhookService) Delete(ctx context.Context, merchantID, id uuid.UUID) error {
	deleted, err := s.subRepo.Delete(ctx, merchantID, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("delete subscription: %w", err))
	}
	if !deleted {
		return apperror.ErrNotFound("webhook subscription")
	}
	return nil
}

// generateKey generates a random hex token of n bytes with a prefix.
func generateKey(prefix string, n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(b), nil
}
