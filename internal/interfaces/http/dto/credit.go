package dto

import (
	"time"

	"scriptgen-api/internal/application/quota"
	"scriptgen-api/internal/domain/entity"
)

// BalanceResponse 额度余额
type BalanceResponse struct {
	FreeCap       int64 `json:"free_cap"`
	FreeUsed      int64 `json:"free_used"`
	FreeRemaining int64 `json:"free_remaining"`
	PaidBalance   int64 `json:"paid_balance"`
	Available     int64 `json:"available"`
	TotalConsumed int64 `json:"total_consumed"`
}

// ToBalanceResponse 转换可用额度
func ToBalanceResponse(a quota.Availability) *BalanceResponse {
	return &BalanceResponse{
		FreeCap:       a.FreeCap,
		FreeUsed:      a.FreeUsed,
		FreeRemaining: a.FreeRemaining,
		PaidBalance:   a.PaidBalance,
		Available:     a.Available,
		TotalConsumed: a.TotalConsumed,
	}
}

// TransactionResponse 额度流水
type TransactionResponse struct {
	ID                 string                 `json:"id"`
	Type               entity.TransactionType `json:"type"`
	Amount             int64                  `json:"amount"`
	FromFree           int64                  `json:"from_free"`
	FromPaid           int64                  `json:"from_paid"`
	PaidBalanceAfter   int64                  `json:"paid_balance_after"`
	TotalConsumedAfter int64                  `json:"total_consumed_after"`
	Reference          string                 `json:"reference,omitempty"`
	Description        string                 `json:"description,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
}

// ToTransactionResponses 转换流水列表
func ToTransactionResponses(items []*entity.CreditTransaction) []*TransactionResponse {
	out := make([]*TransactionResponse, 0, len(items))
	for _, t := range items {
		out = append(out, &TransactionResponse{
			ID:                 t.ID,
			Type:               t.Type,
			Amount:             t.Amount,
			FromFree:           t.FromFree,
			FromPaid:           t.FromPaid,
			PaidBalanceAfter:   t.PaidBalanceAfter,
			TotalConsumedAfter: t.TotalConsumedAfter,
			Reference:          t.Reference,
			Description:        t.Description,
			CreatedAt:          t.CreatedAt,
		})
	}
	return out
}

// RedeemRequest 促销码或推荐码兑换请求
type RedeemRequest struct {
	Code string `json:"code" binding:"required,max=64"`
}

// CreditResultResponse 入账结果，Applied 为 false 表示此前已兑换
type CreditResultResponse struct {
	Applied bool             `json:"applied"`
	Amount  int64            `json:"amount"`
	Balance *BalanceResponse `json:"balance"`
}

// ToCreditResultResponse 转换入账结果
func ToCreditResultResponse(res *quota.CreditResult) *CreditResultResponse {
	out := &CreditResultResponse{
		Applied: res.Applied,
		Balance: ToBalanceResponse(res.Balance),
	}
	if res.Transaction != nil {
		out.Amount = res.Transaction.Amount
	}
	return out
}

// PaymentWebhookRequest 已由支付网关验签的购买事件
type PaymentWebhookRequest struct {
	EventID  string `json:"event_id" binding:"required,max=128"`
	UserID   string `json:"user_id" binding:"required,max=64"`
	Credits  int64  `json:"credits" binding:"required"`
	Provider string `json:"provider"`
}

// ToPaymentEvent 转换为账本事件
func (r *PaymentWebhookRequest) ToPaymentEvent() quota.PaymentEvent {
	return quota.PaymentEvent{
		EventID:  r.EventID,
		UserID:   r.UserID,
		Credits:  r.Credits,
		Provider: r.Provider,
	}
}

// PaymentAcceptedResponse 回调已入队
type PaymentAcceptedResponse struct {
	EventID   string `json:"event_id"`
	MessageID string `json:"message_id"`
}
