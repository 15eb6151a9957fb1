package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTransaction_Transitions(t *testing.T) {
	cases := []struct {
		from, to TransactionStatus
		allowed  bool
	}{
		{TransactionStatusPending, TransactionStatusProcessing, true},
		{TransactionStatusProcessing, TransactionStatusSettled, true},
		{TransactionStatusProcessing, TransactionStatusFailed, true},
		{TransactionStatusPending, TransactionStatusSettled, false},
		{TransactionStatusSettled, TransactionStatusPending, false},
		{TransactionStatusSettled, TransactionStatusFailed, false},
		{TransactionStatusFailed, TransactionStatusProcessing, false},
		{TransactionStatusFailed, TransactionStatusSettled, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.allowed, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTransaction_IsTerminal(t *testing.T) {
	assert.False(t, (&Transaction{Status: TransactionStatusPending}).IsTerminal())
	assert.False(t, (&Transaction{Status: TransactionStatusProcessing}).IsTerminal())
	assert.True(t, (&Transaction{Status: TransactionStatusSettled}).IsTerminal())
	assert.True(t, (&Transaction{Status: TransactionStatusFailed}).IsTerminal())
}

func TestTransaction_IsRefundable(t *testing.T) {
	assert.True(t, (&Transaction{Status: TransactionStatusSettled}).IsRefundable())
	assert.False(t, (&Transaction{Status: TransactionStatusPending}).IsRefundable())
	assert.False(t, (&Transaction{Status: TransactionStatusFailed}).IsRefundable())
}

func TestBuildIdempotencyKey(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, id.String()+":ORDER-001", BuildIdempotencyKey(id, "ORDER-001"))
}

func TestNewTransactionEvent(t *testing.T) {
	tx := &Transaction{
		ID:         uuid.New(),
		MerchantID: uuid.New(),
		Amount:     10000,
		Currency:   "USD",
		Status:     TransactionStatusSettled,
		CreatedAt:  time.Now(),
	}
	ev := NewTransactionEvent(tx)
	assert.Equal(t, EventTransactionSettled, ev.Type)
	assert.Equal(t, tx.MerchantID, ev.MerchantID)
	assert.NotEqual(t, uuid.Nil, ev.ID)

	var decoded Transaction
	assert.NoError(t, json.Unmarshal(ev.Data, &decoded))
	assert.Equal(t, tx.ID, decoded.ID)

	tx.Status = TransactionStatusFailed
	assert.Equal(t, EventTransactionFailed, NewTransactionEvent(tx).Type)
}

func TestNewRefundEvent(t *testing.T) {
	r := &Refund{
		ID:            uuid.New(),
		TransactionID: uuid.New(),
		MerchantID:    uuid.New(),
		Amount:        5000,
		Status:        RefundStatusCompleted,
	}
	assert.Equal(t, EventRefundCompleted, NewRefundEvent(r).Type)
	r.Status = RefundStatusFailed
	assert.Equal(t, EventRefundFailed, NewRefundEvent(r).Type)
}

func TestDeliveryAttempt_IsTerminal(t *testing.T) {
	assert.False(t, (&WebhookDeliveryAttempt{Status: DeliveryStatusPending}).IsTerminal())
	assert.True(t, (&WebhookDeliveryAttempt{Status: DeliveryStatusDelivered}).IsTerminal())
	assert.True(t, (&WebhookDeliveryAttempt{Status: DeliveryStatusExhausted}).IsTerminal())
}

func TestRefund_IsTerminal(t *testing.T) {
	assert.False(t, (&Refund{Status: RefundStatusPending}).IsTerminal())
	assert.True(t, (&Refund{Status: RefundStatusCompleted}).IsTerminal())
	assert.True(t, (&Refund{Status: RefundStatusFailed}).IsTerminal())
}
