package entity

import "time"

// DefaultFreeCap 每个用户的免费额度上限
const DefaultFreeCap int64 = 50

// CreditBalance 用户额度余额
type CreditBalance struct {
	UserID        string    `json:"user_id" gorm:"primaryKey;type:varchar(64)"`
	FreeUsed      int64     `json:"free_used" gorm:"not null;default:0"`
	PaidBalance   int64     `json:"paid_balance" gorm:"not null;default:0"`
	TotalConsumed int64     `json:"total_consumed" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName 表名
func (CreditBalance) TableName() string { return "credit_balances" }

// FreeRemaining 剩余免费额度
func (b *CreditBalance) FreeRemaining(freeCap int64) int64 {
	return max(0, freeCap-b.FreeUsed)
}

// Available 可用额度
func (b *CreditBalance) Available(freeCap int64) int64 {
	return b.FreeRemaining(freeCap) + b.PaidBalance
}

// TransactionType 额度流水类型
type TransactionType string

const (
	TxDebitGeneration   TransactionType = "debit_generation"
	TxDebitRegeneration TransactionType = "debit_regeneration"
	TxPurchase          TransactionType = "purchase"
	TxPromo             TransactionType = "promo"
	TxReferral          TransactionType = "referral"
)

// IsCredit 是否为入账类型
func (t TransactionType) IsCredit() bool {
	return t == TxPurchase || t == TxPromo || t == TxReferral
}

// CreditTransaction 额度流水，按用户+外部事件 ID 唯一
type CreditTransaction struct {
	ID                 string          `json:"id" gorm:"primaryKey;type:varchar(64)"`
	UserID             string          `json:"user_id" gorm:"type:varchar(64);not null;index;uniqueIndex:idx_credit_tx_event,priority:1"`
	Type               TransactionType `json:"type" gorm:"type:varchar(32);not null"`
	Amount             int64           `json:"amount" gorm:"not null"`
	FromFree           int64           `json:"from_free"`
	FromPaid           int64           `json:"from_paid"`
	PaidBalanceAfter   int64           `json:"paid_balance_after"`
	TotalConsumedAfter int64           `json:"total_consumed_after"`
	// EventID 为空时不参与唯一约束（PostgreSQL 中 NULL 互不相等）
	EventID     *string   `json:"event_id,omitempty" gorm:"type:varchar(128);uniqueIndex:idx_credit_tx_event,priority:2"`
	Reference   string    `json:"reference,omitempty" gorm:"type:varchar(128)"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}

// TableName 表名
func (CreditTransaction) TableName() string { return "credit_transactions" }
