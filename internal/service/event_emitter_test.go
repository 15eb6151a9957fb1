package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"payment-processor/internal/core/domain"
	"payment-processor/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testEvent(merchantID uuid.UUID) domain.Event {
	data, _ := json.Marshal(map[string]string{"id": uuid.NewString()})
	return domain.Event{
		ID:         uuid.New(),
		Type:       domain.EventTransactionSettled,
		MerchantID: merchantID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

func TestEventEmitter_FansOutPerActiveSubscription(t *testing.T) {
	ctrl := gomock.NewController(t)
	subRepo := mocks.NewMockWebhookSubscriptionRepository(ctrl)
	deliveryRepo := mocks.NewMockDeliveryRepository(ctrl)
	emitter := NewEventEmitter(subRepo, deliveryRepo, zerolog.Nop())

	merchantID := uuid.New()
	event := testEvent(merchantID)
	subs := []domain.WebhookSubscription{
		{ID: uuid.New(), MerchantID: merchantID, Active: true},
		{ID: uuid.New(), MerchantID: merchantID, Active: true},
		{ID: uuid.New(), MerchantID: merchantID, Active: true},
	}
	wantPayload, err := json.Marshal(event)
	require.NoError(t, err)

	subRepo.EXPECT().ListActiveByMerchant(gomock.Any(), merchantID).Return(subs, nil)
	deliveryRepo.EXPECT().CreateBatch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, attempts []domain.WebhookDeliveryAttempt) error {
			require.Len(t, attempts, 3)
			seen := map[uuid.UUID]bool{}
			for _, a := range attempts {
				seen[a.SubscriptionID] = true
				assert.Equal(t, event.ID, a.EventID)
				assert.Equal(t, event.Type, a.EventType)
				assert.Equal(t, domain.DeliveryStatusPending, a.Status)
				assert.Zero(t, a.AttemptCount)
				assert.JSONEq(t, string(wantPayload), string(a.Payload))
				assert.False(t, a.NextAttemptAt.After(time.Now().UTC()), "new attempts are due immediately")
			}
			assert.Len(t, seen, 3, "one attempt per subscription")
			return nil
		})

	require.NoError(t, emitter.Emit(context.Background(), event))
}

func TestEventEmitter_NoSubscriptionsNoWrites(t *testing.T) {
	ctrl := gomock.NewController(t)
	subRepo := mocks.NewMockWebhookSubscriptionRepository(ctrl)
	deliveryRepo := mocks.NewMockDeliveryRepository(ctrl)
	emitter := NewEventEmitter(subRepo, deliveryRepo, zerolog.Nop())

	merchantID := uuid.New()
	subRepo.EXPECT().ListActiveByMerchant(gomock.Any(), merchantID).Return(nil, nil)
	// CreateBatch must not be called.

	require.NoError(t, emitter.Emit(context.Background(), testEvent(merchantID)))
}
