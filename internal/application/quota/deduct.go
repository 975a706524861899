// Package quota 实现免费/付费两级额度账本
package quota

import (
	"errors"
	"fmt"
)

// ErrInsufficientCredits 可用额度不足
var ErrInsufficientCredits = errors.New("insufficient credits")

// InsufficientCreditsError 携带需求与可用额度
type InsufficientCreditsError struct {
	UserID    string
	Required  int64
	Available int64
}

func (e InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: user=%s required=%d available=%d", e.UserID, e.Required, e.Available)
}

func (e InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredits
}

// Deduct 先扣免费额度再扣付费余额。
// 返回从免费额度扣除的数量与新的付费余额；可用不足时不做任何扣减。
func Deduct(freeRemaining, paidBalance, amount int64) (usedFromFree, newPaidBalance int64, err error) {
	if amount < 0 {
		return 0, paidBalance, fmt.Errorf("amount must not be negative: %d", amount)
	}
	freeRemaining = max(0, freeRemaining)
	if freeRemaining+paidBalance < amount {
		return 0, paidBalance, ErrInsufficientCredits
	}
	usedFromFree = min(freeRemaining, amount)
	return usedFromFree, paidBalance - (amount - usedFromFree), nil
}
