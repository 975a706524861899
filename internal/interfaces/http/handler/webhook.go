package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"scriptgen-api/internal/infrastructure/messaging"
	"scriptgen-api/internal/interfaces/http/dto"
	"scriptgen-api/pkg/errors"
	"scriptgen-api/pkg/logger"
)

// PaymentPublisher 支付事件投递
type PaymentPublisher interface {
	PublishPaymentEvent(ctx context.Context, evt *messaging.PaymentEventMessage, requestID string) (string, error)
}

// WebhookHandler 支付回调处理器
type WebhookHandler struct {
	publisher PaymentPublisher
}

// NewWebhookHandler 创建支付回调处理器
func NewWebhookHandler(publisher PaymentPublisher) *WebhookHandler {
	return &WebhookHandler{publisher: publisher}
}

// PaymentCompleted 接收已验签的购买事件并入队，由 job-worker 入账
// @Summary 支付回调
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param body body dto.PaymentWebhookRequest true "支付事件"
// @Success 202 {object} dto.Response[dto.PaymentAcceptedResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/webhooks/payments [post]
func (h *WebhookHandler) PaymentCompleted(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	evt := req.ToPaymentEvent()
	if err := evt.Validate(); err != nil {
		respondError(c, err, "invalid payment event")
		return
	}

	msgID, err := h.publisher.PublishPaymentEvent(ctx, &messaging.PaymentEventMessage{
		EventID:  evt.EventID,
		UserID:   evt.UserID,
		Credits:  evt.Credits,
		Provider: evt.Provider,
	}, c.GetString("request_id"))
	if err != nil {
		logger.Error(ctx, "failed to enqueue payment event", err, "event_id", evt.EventID)
		dto.AppError(c, errors.ErrServiceUnavailable.WithDetail("payment queue unavailable"))
		return
	}

	logger.Info(ctx, "payment event enqueued", "event_id", evt.EventID, "message_id", msgID)
	dto.Accepted(c, &dto.PaymentAcceptedResponse{EventID: evt.EventID, MessageID: msgID})
}
