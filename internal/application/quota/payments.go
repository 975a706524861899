package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"scriptgen-api/internal/domain/entity"
)

// ErrInvalidPayment 支付事件字段缺失或金额非法
var ErrInvalidPayment = errors.New("invalid payment event")

// MaxPurchaseCredits 单笔购买的入账上限
const MaxPurchaseCredits int64 = 1_000_000

// PaymentEvent 支付网关已验签的购买事件
type PaymentEvent struct {
	EventID  string `json:"event_id"`
	UserID   string `json:"user_id"`
	Credits  int64  `json:"credits"`
	Provider string `json:"provider,omitempty"`
}

// Validate 校验事件
func (e PaymentEvent) Validate() error {
	switch {
	case strings.TrimSpace(e.EventID) == "":
		return fmt.Errorf("%w: event_id is required", ErrInvalidPayment)
	case strings.TrimSpace(e.UserID) == "":
		return fmt.Errorf("%w: user_id is required", ErrInvalidPayment)
	case e.Credits <= 0 || e.Credits > MaxPurchaseCredits:
		return fmt.Errorf("%w: credits must be between 1 and %d", ErrInvalidPayment, MaxPurchaseCredits)
	}
	return nil
}

// Payments 将购买事件记入付费余额
type Payments struct {
	ledger *Ledger
}

// NewPayments 创建支付入账服务
func NewPayments(ledger *Ledger) *Payments {
	return &Payments{ledger: ledger}
}

// Apply 入账购买事件，重复投递的事件不会重复入账
func (p *Payments) Apply(ctx context.Context, evt PaymentEvent) (*CreditResult, error) {
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	desc := "purchase"
	if evt.Provider != "" {
		desc = "purchase via " + evt.Provider
	}
	return p.ledger.Credit(ctx, evt.UserID, evt.Credits, entity.TxPurchase, evt.EventID, desc)
}
