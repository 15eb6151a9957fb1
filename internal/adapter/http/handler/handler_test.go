package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payment-processor/internal/adapter/http/middleware"
	"payment-processor/internal/core/domain"
	"payment-processor/internal/core/ports"
	"payment-processor/internal/core/ports/mocks"
	"payment-processor/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// envelope mirrors both response envelopes; unused fields stay zero.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Timestamp string          `json:"timestamp"`
}

// authAs mimics JWTAuth by planting the merchant id on the context.
func authAs(merchantID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.CtxMerchantID, merchantID)
		c.Next()
	}
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func decodeData(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	require.NotEmpty(t, env.Data)
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func newTransactionRouter(svc ports.PaymentService, merchantID uuid.UUID) *gin.Engine {
	r := gin.New()
	h := NewTransactionHandler(svc)
	g := r.Group("/api/v1/transactions", authAs(merchantID))
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	return r
}

func sampleDomainTransaction(merchantID uuid.UUID) *domain.Transaction {
	now := time.Now().UTC()
	return &domain.Transaction{
		ID:             uuid.New(),
		MerchantID:     merchantID,
		IdempotencyKey: "order-001",
		Amount:         5000,
		Currency:       "USD",
		Description:    "coffee beans",
		Status:         domain.TransactionStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestTransactionHandler_Create(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockPaymentService(ctrl)
	merchantID := uuid.New()
	txn := sampleDomainTransaction(merchantID)

	svc.EXPECT().
		CreateTransaction(gomock.Any(), ports.CreateTransactionRequest{
			MerchantID:     merchantID,
			IdempotencyKey: "order-001",
			PaymentKey:     "pk_test",
			Amount:         5000,
			Currency:       "USD",
			Description:    "coffee beans",
		}).
		Return(txn, false, nil)

	r := newTransactionRouter(svc, merchantID)
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/transactions", gin.H{
		"idempotency_key": "order-001",
		"payment_key":     "pk_test",
		"amount":          5000,
		"currency":        "USD",
		"description":     "coffee beans",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, env.RequestID)

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeData(t, env, &resp)
	assert.Equal(t, txn.ID.String(), resp.ID)
	assert.Equal(t, "PENDING", resp.Status)
}

func TestTransactionHandler_Create_DuplicateReturns200(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockPaymentService(ctrl)
	merchantID := uuid.New()
	txn := sampleDomainTransaction(merchantID)

	svc.EXPECT().
		CreateTransaction(gomock.Any(), gomock.Any()).
		Return(txn, true, nil)

	r := newTransactionRouter(svc, merchantID)
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/transactions", gin.H{
		"idempotency_key": "order-001",
		"payment_key":     "pk_test",
		"amount":          5000,
		"currency":        "USD",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ID string `json:"id"`
	}
	decodeData(t, env, &resp)
	assert.Equal(t, txn.ID.String(), resp.ID)
}

func TestTransactionHandler_Create_BindingErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockPaymentService(ctrl) // no calls expected
	r := newTransactionRouter(svc, uuid.New())

	cases := map[string]gin.H{
		"missing idempotency key": {"payment_key": "pk_test", "amount": 5000, "currency": "USD"},
		"zero amount":             {"idempotency_key": "k1", "payment_key": "pk_test", "amount": 0, "currency": "USD"},
		"bad currency length":     {"idempotency_key": "k1", "payment_key": "pk_test", "amount": 5000, "currency": "DOLLARS"},
		"unsafe idempotency key":  {"idempotency_key": "k1;DROP TABLE", "payment_key": "pk_test", "amount": 5000, "currency": "USD"},
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w, env := doJSON(t, r, http.MethodPost, "/api/v1/transactions", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VAL_001", env.ErrorCode)
		})
	}
}

func TestTransactionHandler_Create_MissingAuth(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockPaymentService(ctrl)

	// No auth middleware: merchant id never lands on the context.
	r := gin.New()
	r.POST("/api/v1/transactions", NewTransactionHandler(svc).Create)

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/transactions", gin.H{
		"idempotency_key": "order-001",
		"payment_key":     "pk_test",
		"amount":          5000,
		"currency":        "USD",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_003", env.ErrorCode)
}

func TestTransactionHandler_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockPaymentService(ctrl)
	merchantID := uuid.New()
	txn := sampleDomainTransaction(merchantID)

	svc.EXPECT().GetTransaction(gomock.Any(), merchantID, txn.ID).Return(txn, nil)

	r := newTransactionRouter(svc, merchantID)
	w, env := doJSON(t, r, http.MethodGet, "/api/v1/transactions/"+txn.ID.String(), nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		ID             string `json:"id"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	decodeData(t, env, &resp)
	assert.Equal(t, txn.ID.String(), resp.ID)
	assert.Equal(t, "order-001", resp.IdempotencyKey)
}

func TestTransactionHandler_Get_InvalidID(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockPaymentService(ctrl)
	r := newTransactionRouter(svc, uuid.New())

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/transactions/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_001", env.ErrorCode)
}

func TestTransactionHandler_Get_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockPaymentService(ctrl)
	merchantID := uuid.New()
	id := uuid.New()

	svc.EXPECT().GetTransaction(gomock.Any(), merchantID, id).
		Return(nil, apperror.ErrNotFound("transaction"))

	r := newTransactionRouter(svc, merchantID)
	w, env := doJSON(t, r, http.MethodGet, "/api/v1/transactions/"+id.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "PAY_001", env.ErrorCode)
}

func TestTransactionHandler_Get_UnknownErrorIs500(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockPaymentService(ctrl)
	merchantID := uuid.New()
	id := uuid.New()

	svc.EXPECT().GetTransaction(gomock.Any(), merchantID, id).
		Return(nil, errors.New("pool exhausted"))

	r := newTransactionRouter(svc, merchantID)
	w, env := doJSON(t, r, http.MethodGet, "/api/v1/transactions/"+id.String(), nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "SYS_000", env.ErrorCode)
	assert.NotContains(t, env.Message, "pool exhausted", "internal detail must not leak")
}

func TestTransactionHandler_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockPaymentService(ctrl)
	merchantID := uuid.New()
	txn := sampleDomainTransaction(merchantID)

	svc.EXPECT().
		ListTransactions(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ interface{}, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
			assert.Equal(t, merchantID, params.MerchantID)
			require.NotNil(t, params.Status)
			assert.Equal(t, domain.TransactionStatusSettled, *params.Status)
			require.NotNil(t, params.Currency)
			assert.Equal(t, "USD", *params.Currency)
			assert.Equal(t, 2, params.Page)
			assert.Equal(t, 10, params.PageSize)
			return []domain.Transaction{*txn}, 25, nil
		})

	r := newTransactionRouter(svc, merchantID)
	w, env := doJSON(t, r, http.MethodGet,
		"/api/v1/transactions?status=SETTLED&currency=USD&page=2&page_size=10", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Items      []json.RawMessage `json:"items"`
		Total      int64             `json:"total"`
		Page       int               `json:"page"`
		TotalPages int               `json:"total_pages"`
	}
	decodeData(t, env, &resp)
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, int64(25), resp.Total)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 3, resp.TotalPages)
}

func TestTransactionHandler_List_InvalidStatusFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockPaymentService(ctrl)
	r := newTransactionRouter(svc, uuid.New())

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/transactions?status=ARCHIVED", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_001", env.ErrorCode)
}

func newRefundRouter(svc ports.RefundService, merchantID uuid.UUID) *gin.Engine {
	r := gin.New()
	h := NewRefundHandler(svc)
	g := r.Group("/api/v1/refunds", authAs(merchantID))
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	return r
}

func TestRefundHandler_Create(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockRefundService(ctrl)
	merchantID := uuid.New()
	transactionID := uuid.New()
	now := time.Now().UTC()
	refund := &domain.Refund{
		ID:            uuid.New(),
		TransactionID: transactionID,
		MerchantID:    merchantID,
		Amount:        2500,
		Reason:        "customer request",
		Status:        domain.RefundStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	svc.EXPECT().
		CreateRefund(gomock.Any(), ports.CreateRefundRequest{
			MerchantID:    merchantID,
			TransactionID: transactionID,
			Amount:        2500,
			Reason:        "customer request",
		}).
		Return(refund, nil)

	r := newRefundRouter(svc, merchantID)
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/refunds", gin.H{
		"transaction_id": transactionID.String(),
		"amount":         2500,
		"reason":         "customer request",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		ID            string `json:"id"`
		TransactionID string `json:"transaction_id"`
		Status        string `json:"status"`
	}
	decodeData(t, env, &resp)
	assert.Equal(t, refund.ID.String(), resp.ID)
	assert.Equal(t, transactionID.String(), resp.TransactionID)
	assert.Equal(t, "PENDING", resp.Status)
}

func TestRefundHandler_Create_AmountExceeded(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockRefundService(ctrl)
	merchantID := uuid.New()

	svc.EXPECT().CreateRefund(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrAmountExceeded())

	r := newRefundRouter(svc, merchantID)
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/refunds", gin.H{
		"transaction_id": uuid.New().String(),
		"amount":         999999,
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "AMOUNT_001", env.ErrorCode)
}

func TestRefundHandler_Create_InvalidTransactionID(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockRefundService(ctrl)
	r := newRefundRouter(svc, uuid.New())

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/refunds", gin.H{
		"transaction_id": "not-a-uuid",
		"amount":         2500,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_001", env.ErrorCode)
}

func TestRefundHandler_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockRefundService(ctrl)
	merchantID := uuid.New()
	ref := "sim_rev_1"
	now := time.Now().UTC()
	refund := &domain.Refund{
		ID:            uuid.New(),
		TransactionID: uuid.New(),
		MerchantID:    merchantID,
		Amount:        2500,
		Status:        domain.RefundStatusCompleted,
		SettlementRef: &ref,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	svc.EXPECT().GetRefund(gomock.Any(), merchantID, refund.ID).Return(refund, nil)

	r := newRefundRouter(svc, merchantID)
	w, env := doJSON(t, r, http.MethodGet, "/api/v1/refunds/"+refund.ID.String(), nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Status        string  `json:"status"`
		SettlementRef *string `json:"settlement_ref"`
	}
	decodeData(t, env, &resp)
	assert.Equal(t, "COMPLETED", resp.Status)
	require.NotNil(t, resp.SettlementRef)
	assert.Equal(t, ref, *resp.SettlementRef)
}

func newWebhookRouter(svc ports.WebhookService, merchantID uuid.UUID) *gin.Engine {
	r := gin.New()
	h := NewWebhookHandler(svc)
	g := r.Group("/api/v1/webhooks", authAs(merchantID))
	g.POST("", h.Register)
	g.GET("", h.List)
	g.DELETE("/:id", h.Delete)
	return r
}

func TestWebhookHandler_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWebhookService(ctrl)
	merchantID := uuid.New()
	sub := &domain.WebhookSubscription{
		ID:         uuid.New(),
		MerchantID: merchantID,
		TargetURL:  "https://example.com/hooks",
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}

	svc.EXPECT().
		Register(gomock.Any(), merchantID, "https://example.com/hooks").
		Return(sub, "whsec_0123abcd", nil)

	r := newWebhookRouter(svc, merchantID)
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/webhooks", gin.H{
		"target_url": "https://example.com/hooks",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		ID        string `json:"id"`
		TargetURL string `json:"target_url"`
		Secret    string `json:"secret"`
		Active    bool   `json:"active"`
	}
	decodeData(t, env, &resp)
	assert.Equal(t, sub.ID.String(), resp.ID)
	assert.Equal(t, "https://example.com/hooks", resp.TargetURL)
	assert.Equal(t, "whsec_0123abcd", resp.Secret, "registration is the only place the secret appears")
	assert.True(t, resp.Active)
}

func TestWebhookHandler_Register_RejectsNonHTTPURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWebhookService(ctrl)
	r := newWebhookRouter(svc, uuid.New())

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/webhooks", gin.H{
		"target_url": "ftp://example.com/hooks",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_001", env.ErrorCode)
}

func TestWebhookHandler_List_OmitsSecret(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWebhookService(ctrl)
	merchantID := uuid.New()
	subs := []domain.WebhookSubscription{
		{ID: uuid.New(), MerchantID: merchantID, TargetURL: "https://a.example.com", SecretEnc: "ciphertext", Active: true, CreatedAt: time.Now().UTC()},
		{ID: uuid.New(), MerchantID: merchantID, TargetURL: "https://b.example.com", SecretEnc: "ciphertext", Active: true, CreatedAt: time.Now().UTC()},
	}

	svc.EXPECT().List(gomock.Any(), merchantID).Return(subs, nil)

	r := newWebhookRouter(svc, merchantID)
	w, env := doJSON(t, r, http.MethodGet, "/api/v1/webhooks", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp []map[string]interface{}
	decodeData(t, env, &resp)
	require.Len(t, resp, 2)
	for _, item := range resp {
		assert.NotContains(t, item, "secret")
	}
}

func TestWebhookHandler_Delete(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWebhookService(ctrl)
	merchantID := uuid.New()
	id := uuid.New()

	svc.EXPECT().Delete(gomock.Any(), merchantID, id).Return(nil)

	r := newWebhookRouter(svc, merchantID)
	w, env := doJSON(t, r, http.MethodDelete, "/api/v1/webhooks/"+id.String(), nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]bool
	decodeData(t, env, &resp)
	assert.True(t, resp["deleted"])
}

func TestWebhookHandler_Delete_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWebhookService(ctrl)
	merchantID := uuid.New()
	id := uuid.New()

	svc.EXPECT().Delete(gomock.Any(), merchantID, id).
		Return(apperror.ErrNotFound("subscription"))

	r := newWebhookRouter(svc, merchantID)
	w, env := doJSON(t, r, http.MethodDelete, "/api/v1/webhooks/"+id.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "PAY_001", env.ErrorCode)
}

func newAuthRouter(svc ports.AuthService, merchantID *uuid.UUID) *gin.Engine {
	r := gin.New()
	h := NewAuthHandler(svc)
	r.POST("/api/v1/auth/register", h.Register)
	r.POST("/api/v1/auth/login", h.Login)
	if merchantID != nil {
		r.POST("/api/v1/payment-keys", authAs(*merchantID), h.CreatePaymentKey)
	}
	return r
}

func TestAuthHandler_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockAuthService(ctrl)
	merchant := &domain.Merchant{
		ID:           uuid.New(),
		Username:     "acme",
		MerchantName: "Acme Corp",
		Status:       domain.MerchantStatusActive,
	}

	svc.EXPECT().
		Register(gomock.Any(), ports.RegisterRequest{
			Username:     "acme",
			Password:     "correct-horse-battery",
			MerchantName: "Acme Corp",
		}).
		Return(merchant, nil)

	r := newAuthRouter(svc, nil)
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", gin.H{
		"username":      "acme",
		"password":      "correct-horse-battery",
		"merchant_name": "Acme Corp",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		MerchantID string `json:"merchant_id"`
		Username   string `json:"username"`
	}
	decodeData(t, env, &resp)
	assert.Equal(t, merchant.ID.String(), resp.MerchantID)
	assert.Equal(t, "acme", resp.Username)
}

func TestAuthHandler_Register_ShortPassword(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockAuthService(ctrl)
	r := newAuthRouter(svc, nil)

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", gin.H{
		"username":      "acme",
		"password":      "short",
		"merchant_name": "Acme Corp",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_001", env.ErrorCode)
}

func TestAuthHandler_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockAuthService(ctrl)
	expiry := time.Now().Add(time.Hour).UTC()

	svc.EXPECT().
		Login(gomock.Any(), "acme", "correct-horse-battery").
		Return("signed.jwt.token", expiry, nil)

	r := newAuthRouter(svc, nil)
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", gin.H{
		"username": "acme",
		"password": "correct-horse-battery",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token  string `json:"token"`
		Expiry int64  `json:"expiry"`
	}
	decodeData(t, env, &resp)
	assert.Equal(t, "signed.jwt.token", resp.Token)
	assert.Equal(t, expiry.Unix(), resp.Expiry)
}

func TestAuthHandler_Login_BadCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockAuthService(ctrl)

	svc.EXPECT().
		Login(gomock.Any(), "acme", "wrong").
		Return("", time.Time{}, apperror.ErrInvalidCredentials())

	r := newAuthRouter(svc, nil)
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", gin.H{
		"username": "acme",
		"password": "wrong",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_001", env.ErrorCode)
}

func TestAuthHandler_CreatePaymentKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockAuthService(ctrl)
	merchantID := uuid.New()
	key := &domain.PaymentKey{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Key:        "pk_generated",
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}

	svc.EXPECT().CreatePaymentKey(gomock.Any(), merchantID).Return(key, nil)

	r := newAuthRouter(svc, &merchantID)
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/payment-keys", nil)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	decodeData(t, env, &resp)
	assert.Equal(t, key.ID.String(), resp.ID)
	assert.Equal(t, "pk_generated", resp.Key)
}

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(context.Context) error { return s.err }
func (s stubChecker) Name() string               { return s.name }

func TestHealthCheck(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		r := gin.New()
		r.GET("/health", HealthCheck(stubChecker{name: "postgres"}, stubChecker{name: "redis"}))

		w, _ := doJSON(t, r, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Status       string                       `json:"status"`
			Dependencies map[string]map[string]string `json:"dependencies"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, "healthy", body.Dependencies["postgres"]["status"])
		assert.Equal(t, "healthy", body.Dependencies["redis"]["status"])
	})

	t.Run("degraded when a dependency is down", func(t *testing.T) {
		r := gin.New()
		r.GET("/health", HealthCheck(
			stubChecker{name: "postgres"},
			stubChecker{name: "redis", err: errors.New("connection refused")},
		))

		w, _ := doJSON(t, r, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var body struct {
			Status       string                       `json:"status"`
			Dependencies map[string]map[string]string `json:"dependencies"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "unhealthy", body.Dependencies["redis"]["status"])
	})
}
