package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/domain/repository"
)

// CreditRepository 额度仓储实现
type CreditRepository struct {
	client *Client
}

// NewCreditRepository 创建额度仓储
func NewCreditRepository(client *Client) *CreditRepository {
	return &CreditRepository{client: client}
}

// Get 读取余额
func (r *CreditRepository) Get(ctx context.Context, userID string) (*entity.CreditBalance, error) {
	ctx, span := tracer.Start(ctx, "postgres.CreditRepository.Get")
	defer span.End()

	var b entity.CreditBalance
	if err := getDB(ctx, r.client.db).First(&b, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &b, nil
}

// GetForUpdate 必须在事务内调用；行不存在时先插入再加锁
func (r *CreditRepository) GetForUpdate(ctx context.Context, userID string) (*entity.CreditBalance, error) {
	ctx, span := tracer.Start(ctx, "postgres.CreditRepository.GetForUpdate")
	defer span.End()

	db := getDB(ctx, r.client.db)
	now := time.Now()
	seed := &entity.CreditBalance{UserID: userID, CreatedAt: now, UpdatedAt: now}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to ensure balance row: %w", err)
	}

	var b entity.CreditBalance
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, "user_id = ?", userID).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to lock balance: %w", err)
	}
	return &b, nil
}

// Save 写回余额
func (r *CreditRepository) Save(ctx context.Context, balance *entity.CreditBalance) error {
	ctx, span := tracer.Start(ctx, "postgres.CreditRepository.Save")
	defer span.End()

	if err := getDB(ctx, r.client.db).Save(balance).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

// CreateTransaction 追加流水
func (r *CreditRepository) CreateTransaction(ctx context.Context, tx *entity.CreditTransaction) error {
	ctx, span := tracer.Start(ctx, "postgres.CreditRepository.CreateTransaction")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(tx).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransactionByEvent 按事件 ID 查找流水
func (r *CreditRepository) GetTransactionByEvent(ctx context.Context, userID, eventID string) (*entity.CreditTransaction, error) {
	ctx, span := tracer.Start(ctx, "postgres.CreditRepository.GetTransactionByEvent")
	defer span.End()

	var tx entity.CreditTransaction
	if err := getDB(ctx, r.client.db).First(&tx, "user_id = ? AND event_id = ?", userID, eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get transaction by event: %w", err)
	}
	return &tx, nil
}

// ListTransactions 分页列出流水
func (r *CreditRepository) ListTransactions(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.CreditTransaction], error) {
	ctx, span := tracer.Start(ctx, "postgres.CreditRepository.ListTransactions")
	defer span.End()

	query := getDB(ctx, r.client.db).Model(&entity.CreditTransaction{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	var items []*entity.CreditTransaction
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&items).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return repository.NewPagedResult(items, total, pagination), nil
}

// ListBalances 按 user_id 游标分批读取
func (r *CreditRepository) ListBalances(ctx context.Context, afterUserID string, limit int) ([]*entity.CreditBalance, error) {
	ctx, span := tracer.Start(ctx, "postgres.CreditRepository.ListBalances")
	defer span.End()

	var items []*entity.CreditBalance
	if err := getDB(ctx, r.client.db).
		Where("user_id > ?", afterUserID).
		Order("user_id ASC").
		Limit(limit).
		Find(&items).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	return items, nil
}

// SumTransactions 汇总用户流水
func (r *CreditRepository) SumTransactions(ctx context.Context, userID string) (repository.TransactionTotals, error) {
	ctx, span := tracer.Start(ctx, "postgres.CreditRepository.SumTransactions")
	defer span.End()

	var row struct {
		Credited int64
		Consumed int64
		FromFree int64
		FromPaid int64
		Count    int64
	}
	err := getDB(ctx, r.client.db).
		Model(&entity.CreditTransaction{}).
		Select(`COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS credited,
			COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0) AS consumed,
			COALESCE(SUM(from_free), 0) AS from_free,
			COALESCE(SUM(from_paid), 0) AS from_paid,
			COUNT(*) AS count`).
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		span.RecordError(err)
		return repository.TransactionTotals{}, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return repository.TransactionTotals{
		UserID:   userID,
		Credited: row.Credited,
		Consumed: row.Consumed,
		FromFree: row.FromFree,
		FromPaid: row.FromPaid,
		Count:    row.Count,
	}, nil
}
