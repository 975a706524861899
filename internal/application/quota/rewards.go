package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/domain/repository"
)

var (
	// ErrUnknownPromoCode 促销码不存在
	ErrUnknownPromoCode = errors.New("unknown promo code")
	// ErrInvalidReferral 推荐码无效或为本人
	ErrInvalidReferral = errors.New("invalid referral code")
)

// Rewards 处理促销码与推荐奖励
type Rewards struct {
	ledger        *Ledger
	users         repository.UserRepository
	tx            repository.Transactor
	promoCodes    map[string]int64
	referralBonus int64
}

// NewRewards 创建奖励服务，促销码按小写匹配
func NewRewards(ledger *Ledger, users repository.UserRepository, tx repository.Transactor, promoCodes map[string]int64, referralBonus int64) *Rewards {
	codes := make(map[string]int64, len(promoCodes))
	for code, amount := range promoCodes {
		codes[strings.ToLower(strings.TrimSpace(code))] = amount
	}
	return &Rewards{
		ledger:        ledger,
		users:         users,
		tx:            tx,
		promoCodes:    codes,
		referralBonus: referralBonus,
	}
}

// PromoEventID 促销码入账事件 ID
func PromoEventID(code string) string {
	return "promo:" + strings.ToLower(strings.TrimSpace(code))
}

// ReferralEventID 推荐奖励事件 ID，以被推荐人为键
func ReferralEventID(referredUserID string) string {
	return "referral:" + referredUserID
}

// RedeemPromo 兑换促销码，同一用户重复兑换不会重复入账
func (r *Rewards) RedeemPromo(ctx context.Context, userID, code string) (*CreditResult, error) {
	key := strings.ToLower(strings.TrimSpace(code))
	amount, ok := r.promoCodes[key]
	if !ok || key == "" {
		return nil, ErrUnknownPromoCode
	}
	return r.ledger.Credit(ctx, userID, amount, entity.TxPromo, PromoEventID(key), "promo code "+key)
}

// ClaimReferral 绑定推荐人并为推荐人发放奖励，绑定与入账在同一事务内
func (r *Rewards) ClaimReferral(ctx context.Context, userID, referralCode string) (*CreditResult, error) {
	if r.referralBonus <= 0 {
		return nil, fmt.Errorf("referral rewards are disabled")
	}
	referrer, err := r.users.GetByReferralCode(ctx, strings.ToUpper(strings.TrimSpace(referralCode)))
	if err != nil {
		return nil, fmt.Errorf("failed to look up referral code: %w", err)
	}
	if referrer == nil || referrer.ID == userID {
		return nil, ErrInvalidReferral
	}

	var result *CreditResult
	err = r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		bound, err := r.users.SetReferredBy(ctx, userID, referrer.ID)
		if err != nil {
			return err
		}
		if !bound {
			result = &CreditResult{Applied: false}
			return nil
		}
		result, err = r.ledger.creditInTx(ctx, referrer.ID, r.referralBonus, entity.TxReferral, ReferralEventID(userID), "referral bonus")
		return err
	})
	if err != nil {
		return nil, err
	}
	// 事件与缓存失效只针对已提交的入账
	if result.Transaction != nil {
		r.ledger.afterCredit(ctx, referrer.ID, result)
	}
	return result, nil
}
