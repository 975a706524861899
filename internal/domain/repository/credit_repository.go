package repository

import (
	"context"

	"scriptgen-api/internal/domain/entity"
)

// CreditRepository 额度余额与流水仓储
type CreditRepository interface {
	// Get 读取余额，不存在返回 nil
	Get(ctx context.Context, userID string) (*entity.CreditBalance, error)

	// GetForUpdate 在当前事务内锁定余额行，不存在时先创建
	GetForUpdate(ctx context.Context, userID string) (*entity.CreditBalance, error)

	// Save 写回余额
	Save(ctx context.Context, balance *entity.CreditBalance) error

	// CreateTransaction 追加流水
	CreateTransaction(ctx context.Context, tx *entity.CreditTransaction) error

	// GetTransactionByEvent 按外部事件 ID 查找流水，不存在返回 nil
	GetTransactionByEvent(ctx context.Context, userID, eventID string) (*entity.CreditTransaction, error)

	// ListTransactions 分页列出流水，按时间倒序
	ListTransactions(ctx context.Context, userID string, pagination Pagination) (*PagedResult[*entity.CreditTransaction], error)
}

// TransactionTotals 某用户流水的汇总
type TransactionTotals struct {
	UserID   string
	Credited int64
	Consumed int64
	FromFree int64
	FromPaid int64
	Count    int64
}

// LedgerAuditRepository 对账所需的只读查询
type LedgerAuditRepository interface {
	// ListBalances 按 user_id 升序分批读取余额，afterUserID 为空时从头开始
	ListBalances(ctx context.Context, afterUserID string, limit int) ([]*entity.CreditBalance, error)

	// SumTransactions 汇总用户全部流水
	SumTransactions(ctx context.Context, userID string) (TransactionTotals, error)
}
