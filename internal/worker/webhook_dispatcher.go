package worker

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"payment-processor/internal/core/domain"
	"payment-processor/internal/core/ports"

	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DispatcherConfig holds the delivery and retry policy.
type DispatcherConfig struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Timeout      time.Duration
	BatchSize    int
	PollInterval time.Duration
	ClaimLease   time.Duration
}

// WebhookDispatcher drains due delivery attempts and POSTs them to merchant
// endpoints. All retry state is persisted on the attempt row, so a restart
// resumes exactly where the previous process stopped. Failed deliveries back
// off exponentially until MaxAttempts, then the attempt is marked EXHAUSTED.
type WebhookDispatcher struct {
	deliveryRepo ports.DeliveryRepository
	subRepo      ports.WebhookSubscriptionRepository
	encSvc       ports.EncryptionService
	sigSvc       ports.SignatureService
	httpClient   HTTPClient
	cfg          DispatcherConfig
	log          zerolog.Logger

	wg sync.WaitGroup
}

// NewWebhookDispatcher creates a dispatcher.
func NewWebhookDispatcher(
	deliveryRepo ports.DeliveryRepository,
	subRepo ports.WebhookSubscriptionRepository,
	encSvc ports.EncryptionService,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	cfg DispatcherConfig,
	log zerolog.Logger,
) *WebhookDispatcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 50
	}
	return &WebhookDispatcher{
		deliveryRepo: deliveryRepo,
		subRepo:      subRepo,
		encSvc:       encSvc,
		sigSvc:       sigSvc,
		httpClient:   httpClient,
		cfg:          cfg,
		log:          log,
	}
}

// Start runs the poll loop until ctx is cancelled.
func (d *WebhookDispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx)
	}()
	d.log.Info().Msg("webhook dispatcher started")
}

// Wait blocks until the dispatcher has stopped.
func (d *WebhookDispatcher) Wait() {
	d.wg.Wait()
}

func (d *WebhookDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.drainDue(ctx); err != nil {
				d.log.Error().Err(err).Msg("dispatch cycle failed")
			}
		}
	}
}

// drainDue claims one batch of due attempts and delivers them.
func (d *WebhookDispatcher) drainDue(ctx context.Context) error {
	attempts, err := d.deliveryRepo.ClaimDue(ctx, time.Now().UTC(), d.cfg.ClaimLease, d.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("claim due attempts: %w", err)
	}

	for i := range attempts {
		if ctx.Err() != nil {
			return nil
		}
		d.deliver(ctx, &attempts[i])
	}
	return nil
}

// deliver performs one delivery try and persists the outcome.
func (d *WebhookDispatcher) deliver(ctx context.Context, attempt *domain.WebhookDeliveryAttempt) {
	tryNumber := attempt.AttemptCount + 1
	log := d.log.With().
		Str("attempt_id", attempt.ID.String()).
		Str("event_id", attempt.EventID.String()).
		Int("try", tryNumber).
		Logger()

	sub, err := d.subRepo.GetByID(ctx, attempt.SubscriptionID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load subscription, retrying later")
		// Internal failure: the endpoint was never contacted, so the try
		// budget is not consumed. The attempt count stays as claimed.
		next := time.Now().UTC().Add(d.cfg.BaseDelay)
		if rerr := d.deliveryRepo.ScheduleRetry(ctx, attempt.ID, attempt.AttemptCount, next, nil, "subscription lookup failed"); rerr != nil {
			log.Error().Err(rerr).Msg("failed to reschedule attempt")
		}
		return
	}
	if sub == nil {
		// Subscription deleted after emission. Nothing left to deliver to.
		d.exhaust(ctx, attempt, tryNumber, nil, "subscription deleted")
		return
	}

	status, err := d.post(ctx, sub, attempt)
	if err != nil {
		log.Warn().Err(err).Msg("webhook delivery failed")
		d.recordFailure(ctx, attempt, tryNumber, status, err.Error())
		return
	}

	if err := d.deliveryRepo.MarkDelivered(ctx, attempt.ID, tryNumber, *status); err != nil {
		log.Error().Err(err).Msg("failed to mark attempt delivered")
		return
	}
	log.Info().Int("status", *status).Msg("webhook delivered")
}

// post sends the signed payload. Returns the HTTP status when a response was
// received, and an error for any non-2xx outcome.
func (d *WebhookDispatcher) post(ctx context.Context, sub *domain.WebhookSubscription, attempt *domain.WebhookDeliveryAttempt) (*int, error) {
	secret, err := d.encSvc.Decrypt(sub.SecretEnc)
	if err != nil {
		return nil, fmt.Errorf("decrypt subscription secret: %w", err)
	}
	signature := d.sigSvc.Sign(secret, string(attempt.Payload))

	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, sub.TargetURL, bytes.NewReader(attempt.Payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Webhook-Event-ID", attempt.EventID.String())
	req.Header.Set("X-Webhook-Event-Type", string(attempt.EventType))
	req.Header.Set("X-Webhook-Attempt", strconv.Itoa(attempt.AttemptCount+1))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &resp.StatusCode, fmt.Errorf("endpoint responded %d", resp.StatusCode)
	}
	return &resp.StatusCode, nil
}

// recordFailure schedules the next retry, or exhausts the attempt when the
// budget is spent.
func (d *WebhookDispatcher) recordFailure(ctx context.Context, attempt *domain.WebhookDeliveryAttempt, tryNumber int, httpStatus *int, reason string) {
	if tryNumber >= d.cfg.MaxAttempts {
		d.exhaust(ctx, attempt, tryNumber, httpStatus, reason)
		return
	}

	next := time.Now().UTC().Add(d.backoff(tryNumber))
	if err := d.deliveryRepo.ScheduleRetry(ctx, attempt.ID, tryNumber, next, httpStatus, reason); err != nil {
		d.log.Error().Err(err).Str("attempt_id", attempt.ID.String()).Msg("failed to schedule retry")
	}
}

func (d *WebhookDispatcher) exhaust(ctx context.Context, attempt *domain.WebhookDeliveryAttempt, tryNumber int, httpStatus *int, reason string) {
	if err := d.deliveryRepo.MarkExhausted(ctx, attempt.ID, tryNumber, httpStatus, reason); err != nil {
		d.log.Error().Err(err).Str("attempt_id", attempt.ID.String()).Msg("failed to mark attempt exhausted")
		return
	}
	d.log.Error().
		Str("attempt_id", attempt.ID.String()).
		Str("event_id", attempt.EventID.String()).
		Int("attempts", tryNumber).
		Msg("webhook delivery exhausted")
}

// backoff returns the delay before try n+1: base doubled per failed try,
// capped at MaxDelay.
func (d *WebhookDispatcher) backoff(failedTries int) time.Duration {
	delay := d.cfg.BaseDelay << (failedTries - 1)
	if delay > d.cfg.MaxDelay || delay <= 0 {
		return d.cfg.MaxDelay
	}
	return delay
}
