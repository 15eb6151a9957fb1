package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payment-processor/internal/core/domain"
	"payment-processor/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// eventEmitter implements ports.EventEmitter. Emission expands one event into
// one persisted delivery attempt per active subscription of the owning
// merchant, all due immediately. The dispatcher owns everything after that.
type eventEmitter struct {
	subRepo      ports.WebhookSubscriptionRepository
	deliveryRepo ports.DeliveryRepository
	log          zerolog.Logger
}

// NewEventEmitter creates a new event emitter.
func NewEventEmitter(
	subRepo ports.WebhookSubscriptionRepository,
	deliveryRepo ports.DeliveryRepository,
	log zerolog.Logger,
) ports.EventEmitter {
	return &eventEmitter{subRepo: subRepo, deliveryRepo: deliveryRepo, log: log}
}

// Emit fans the event out to the merchant's active subscriptions.
func (e *eventEmitter) Emit(ctx context.Context, event domain.Event) error {
	subs, err := e.subRepo.ListActiveByMerchant(ctx, event.MerchantID)
	if err != nil {
		return fmt.Errorf("list active subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	// Snapshot the full envelope at emission time. Later mutations of the
	// transaction or refund never change what subscribers receive.
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	now := time.Now().UTC()
	attempts := make([]domain.WebhookDeliveryAttempt, 0, len(subs))
	for _, sub := range subs {
		attempts = append(attempts, domain.WebhookDeliveryAttempt{
			ID:             uuid.New(),
			SubscriptionID: sub.ID,
			MerchantID:     event.MerchantID,
			EventID:        event.ID,
			EventType:      event.Type,
			Payload:        payload,
			AttemptCount:   0,
			Status:         domain.DeliveryStatusPending,
			NextAttemptAt:  now,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	if err := e.deliveryRepo.CreateBatch(ctx, attempts); err != nil {
		return fmt.Errorf("persist delivery attempts: %w", err)
	}

	e.log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Int("subscriptions", len(subs)).
		Msg("event fanned out to webhook subscriptions")

	return nil
}
