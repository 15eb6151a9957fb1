package handler

import (
	"strconv"

	"payment-processor/internal/adapter/http/dto"
	"payment-processor/internal/core/domain"
	"payment-processor/internal/core/ports"
	"payment-processor/pkg/apperror"
	"payment-processor/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransactionHandler handles transaction endpoints.
type TransactionHandler struct {
	paymentSvc ports.PaymentService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(paymentSvc ports.PaymentService) *TransactionHandler {
	return &TransactionHandler{paymentSvc: paymentSvc}
}

// Create handles POST /api/v1/transactions. A replayed idempotency key
// returns the original transaction with 200 instead of 201.
func (h *TransactionHandler) Create(c *gin.Context) {
	merchantID, ok := currentMerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	txn, duplicate, err := h.paymentSvc.CreateTransaction(c.Request.Context(), ports.CreateTransactionRequest{
		MerchantID:     merchantID,
		IdempotencyKey: req.IdempotencyKey,
		PaymentKey:     req.PaymentKey,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if duplicate {
		response.OK(c, dto.FromTransaction(txn))
		return
	}
	response.Created(c, dto.FromTransaction(txn))
}

// Get handles GET /api/v1/transactions/:id.
func (h *TransactionHandler) Get(c *gin.Context) {
	merchantID, ok := currentMerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid transaction id"))
		return
	}

	txn, err := h.paymentSvc.GetTransaction(c.Request.Context(), merchantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromTransaction(txn))
}

// List handles GET /api/v1/transactions with filters and pagination.
func (h *TransactionHandler) List(c *gin.Context) {
	merchantID, ok := currentMerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	params := ports.TransactionListParams{MerchantID: merchantID}

	if s := c.Query("status"); s != "" {
		status := domain.TransactionStatus(s)
		switch status {
		case domain.TransactionStatusPending, domain.TransactionStatusProcessing,
			domain.TransactionStatusSettled, domain.TransactionStatusFailed:
			params.Status = &status
		default:
			response.Error(c, apperror.Validation("invalid status filter"))
			return
		}
	}
	if cur := c.Query("currency"); cur != "" {
		params.Currency = &cur
	}
	params.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	params.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	items, total, err := h.paymentSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.TransactionListResponse{
		Items:    make([]dto.TransactionResponse, 0, len(items)),
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	for i := range items {
		resp.Items = append(resp.Items, dto.FromTransaction(&items[i]))
	}
	if params.PageSize > 0 {
		resp.TotalPages = int((total + int64(params.PageSize) - 1) / int64(params.PageSize))
	}

	response.OK(c, resp)
}
