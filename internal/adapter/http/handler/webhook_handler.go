package handler

import (
	"payment-processor/internal/adapter/http/dto"
	"payment-processor/internal/core/ports"
	"payment-processor/pkg/apperror"
	"payment-processor/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WebhookHandler handles webhook subscription endpoints.
type WebhookHandler struct {
	webhookSvc ports.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhookSvc ports.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// Register handles POST /api/v1/webhooks. The signing secret appears only in
// this response.
func (h *WebhookHandler) Register(c *gin.Context) {
	merchantID, ok := currentMerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.RegisterWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	sub, secret, err := h.webhookSvc.Register(c.Request.Context(), merchantID, req.TargetURL)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.FromSubscription(sub)
	resp.Secret = secret
	response.Created(c, resp)
}

// List handles GET /api/v1/webhooks.
func (h *WebhookHandler) List(c *gin.Context) {
	merchantID, ok := currentMerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	subs, err := h.webhookSvc.List(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WebhookSubscriptionResponse, 0, len(subs))
	for i := range subs {
		items = append(items, dto.FromSubscription(&subs[i]))
	}
	response.OK(c, items)
}

// Delete handles DELETE /api/v1/webhooks/:id.
func (h *WebhookHandler) Delete(c *gin.Context) {
	merchantID, ok := currentMerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid subscription id"))
		return
	}

	if err := h.webhookSvc.Delete(c.Request.Context(), merchantID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": true})
}
