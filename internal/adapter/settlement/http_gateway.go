package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"payment-processor/internal/core/ports"
	"payment-processor/pkg/apperror"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPGateway implements ports.SettlementGateway against the external
// processor's HTTP API. Transport failures and 5xx responses come back as
// COLLAB_001 (transient, retryable); a 2xx with approved=false is a business
// decline carried in the result.
type HTTPGateway struct {
	baseURL    string
	httpClient HTTPClient
}

// NewHTTPGateway creates a settlement gateway client.
func NewHTTPGateway(baseURL string, httpClient HTTPClient) *HTTPGateway {
	return &HTTPGateway{baseURL: baseURL, httpClient: httpClient}
}

type captureRequest struct {
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentKey    string `json:"payment_key"`
}

type reverseRequest struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type gatewayResponse struct {
	Approved  bool   `json:"approved"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

// AuthorizeAndCapture forwards a capture to the processor.
func (g *HTTPGateway) AuthorizeAndCapture(ctx context.Context, req ports.SettlementRequest) (*ports.SettlementResult, error) {
	body := captureRequest{
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		PaymentKey:    req.PaymentKey,
	}
	return g.post(ctx, g.baseURL+"/v1/captures", body)
}

// Reverse forwards a refund reversal to the processor.
func (g *HTTPGateway) Reverse(ctx context.Context, reference string, amount int64, currency string) (*ports.SettlementResult, error) {
	body := reverseRequest{Reference: reference, Amount: amount, Currency: currency}
	return g.post(ctx, g.baseURL+"/v1/reversals", body)
}

func (g *HTTPGateway) post(ctx context.Context, url string, body any) (*ports.SettlementResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal settlement request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("build settlement request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		// Timeout, connection refused, DNS failure are all retryable.
		return nil, apperror.ErrCollaboratorTransient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, apperror.ErrCollaboratorTransient(fmt.Errorf("settlement responded %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperror.InternalError(fmt.Errorf("settlement responded %d", resp.StatusCode))
	}

	var decoded gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperror.ErrCollaboratorTransient(fmt.Errorf("decode settlement response: %w", err))
	}

	return &ports.SettlementResult{
		Approved:      decoded.Approved,
		Reference:     decoded.Reference,
		DeclineReason: decoded.Reason,
	}, nil
}
