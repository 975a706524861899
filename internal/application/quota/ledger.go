package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/domain/repository"
	"scriptgen-api/pkg/logger"
	"scriptgen-api/pkg/metrics"
)

// BalanceCache 余额读缓存，写操作后失效
type BalanceCache interface {
	GetOrLoad(ctx context.Context, userID string, loader func(ctx context.Context) (*entity.CreditBalance, error)) (*entity.CreditBalance, error)
	Invalidate(ctx context.Context, userID string) error
}

// Availability 用户当前可用额度
type Availability struct {
	UserID        string `json:"user_id"`
	FreeCap       int64  `json:"free_cap"`
	FreeUsed      int64  `json:"free_used"`
	FreeRemaining int64  `json:"free_remaining"`
	PaidBalance   int64  `json:"paid_balance"`
	Available     int64  `json:"available"`
	TotalConsumed int64  `json:"total_consumed"`
}

// DebitResult 扣减结果
type DebitResult struct {
	Transaction *entity.CreditTransaction
	Balance     Availability
}

// CreditResult 入账结果，Applied 为 false 表示该事件此前已入账
type CreditResult struct {
	Applied     bool
	Transaction *entity.CreditTransaction
	Balance     Availability
}

// CreditListener 入账生效后的通知，失败不影响入账结果
type CreditListener interface {
	Credited(ctx context.Context, userID string, txn *entity.CreditTransaction) error
}

// Ledger 额度账本，所有变更在行锁事务内完成
type Ledger struct {
	repo      repository.CreditRepository
	tx        repository.Transactor
	cache     BalanceCache
	freeCap   int64
	now       func() time.Time
	listeners []CreditListener
}

// NewLedger 创建账本，cache 可为 nil
func NewLedger(repo repository.CreditRepository, tx repository.Transactor, cache BalanceCache, freeCap int64) *Ledger {
	return &Ledger{
		repo:    repo,
		tx:      tx,
		cache:   cache,
		freeCap: freeCap,
		now:     time.Now,
	}
}

// AddCreditListener 注册入账通知，需在启动阶段调用
func (l *Ledger) AddCreditListener(listener CreditListener) {
	l.listeners = append(l.listeners, listener)
}

// FreeCap 免费额度上限
func (l *Ledger) FreeCap() int64 {
	return l.freeCap
}

func (l *Ledger) availability(userID string, b *entity.CreditBalance) Availability {
	if b == nil {
		b = &entity.CreditBalance{UserID: userID}
	}
	return Availability{
		UserID:        userID,
		FreeCap:       l.freeCap,
		FreeUsed:      b.FreeUsed,
		FreeRemaining: b.FreeRemaining(l.freeCap),
		PaidBalance:   b.PaidBalance,
		Available:     b.Available(l.freeCap),
		TotalConsumed: b.TotalConsumed,
	}
}

// CheckAvailable 查询可用额度，结果可能来自缓存
func (l *Ledger) CheckAvailable(ctx context.Context, userID string) (Availability, error) {
	load := func(ctx context.Context) (*entity.CreditBalance, error) {
		b, err := l.repo.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if b == nil {
			b = &entity.CreditBalance{UserID: userID}
		}
		return b, nil
	}

	var (
		b   *entity.CreditBalance
		err error
	)
	if l.cache != nil {
		b, err = l.cache.GetOrLoad(ctx, userID, load)
	} else {
		b, err = load(ctx)
	}
	if err != nil {
		return Availability{}, fmt.Errorf("failed to load balance: %w", err)
	}
	return l.availability(userID, b), nil
}

// Require 预检可用额度是否覆盖 amount，直接读库不走缓存
func (l *Ledger) Require(ctx context.Context, userID string, amount int64) (Availability, error) {
	b, err := l.repo.Get(ctx, userID)
	if err != nil {
		return Availability{}, fmt.Errorf("failed to load balance: %w", err)
	}
	avail := l.availability(userID, b)
	if avail.Available < amount {
		return avail, InsufficientCreditsError{UserID: userID, Required: amount, Available: avail.Available}
	}
	return avail, nil
}

// Debit 原子扣减：先免费后付费，不足时不做任何变更
func (l *Ledger) Debit(ctx context.Context, userID string, amount int64, txType entity.TransactionType, reference string) (*DebitResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive: %d", amount)
	}
	if txType.IsCredit() {
		return nil, fmt.Errorf("transaction type %s is not a debit", txType)
	}

	var result DebitResult
	err := l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		bal, err := l.repo.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		free := bal.FreeRemaining(l.freeCap)
		usedFree, newPaid, err := Deduct(free, bal.PaidBalance, amount)
		if err != nil {
			if errors.Is(err, ErrInsufficientCredits) {
				return InsufficientCreditsError{UserID: userID, Required: amount, Available: free + bal.PaidBalance}
			}
			return err
		}

		fromPaid := bal.PaidBalance - newPaid
		bal.FreeUsed += usedFree
		bal.PaidBalance = newPaid
		bal.TotalConsumed += amount
		bal.UpdatedAt = l.now()
		if err := l.repo.Save(ctx, bal); err != nil {
			return err
		}

		txn := &entity.CreditTransaction{
			ID:                 uuid.NewString(),
			UserID:             userID,
			Type:               txType,
			Amount:             -amount,
			FromFree:           usedFree,
			FromPaid:           fromPaid,
			PaidBalanceAfter:   bal.PaidBalance,
			TotalConsumedAfter: bal.TotalConsumed,
			Reference:          reference,
			CreatedAt:          l.now(),
		}
		if err := l.repo.CreateTransaction(ctx, txn); err != nil {
			return err
		}

		result = DebitResult{Transaction: txn, Balance: l.availability(userID, bal)}
		return nil
	})
	if err != nil {
		status := "error"
		if errors.Is(err, ErrInsufficientCredits) {
			status = "insufficient"
		}
		metrics.LedgerDebitTotal.WithLabelValues(string(txType), status).Inc()
		return nil, err
	}

	metrics.LedgerDebitTotal.WithLabelValues(string(txType), "success").Inc()
	l.invalidate(ctx, userID)
	logger.Info(ctx, "credits debited",
		"user_id", userID,
		"amount", amount,
		"type", string(txType),
		"from_free", result.Transaction.FromFree,
		"from_paid", result.Transaction.FromPaid,
	)
	return &result, nil
}

// Credit 增加付费余额，同一用户同一事件 ID 至多入账一次
func (l *Ledger) Credit(ctx context.Context, userID string, amount int64, source entity.TransactionType, eventID, description string) (*CreditResult, error) {
	result, err := l.creditInTx(ctx, userID, amount, source, eventID, description)
	if err != nil {
		return nil, err
	}
	l.afterCredit(ctx, userID, result)
	return result, nil
}

// creditInTx 只做事务内的入账；调用方处于外层事务时，须在提交后调用 afterCredit
func (l *Ledger) creditInTx(ctx context.Context, userID string, amount int64, source entity.TransactionType, eventID, description string) (*CreditResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive: %d", amount)
	}
	if !source.IsCredit() {
		return nil, fmt.Errorf("transaction type %s is not a credit", source)
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, fmt.Errorf("credit requires an event id")
	}

	var result CreditResult
	err := l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		// 先锁余额行，同一用户的并发入账在此串行化
		bal, err := l.repo.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		existing, err := l.repo.GetTransactionByEvent(ctx, userID, eventID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = CreditResult{Applied: false, Transaction: existing, Balance: l.availability(userID, bal)}
			return nil
		}

		bal.PaidBalance += amount
		bal.UpdatedAt = l.now()
		if err := l.repo.Save(ctx, bal); err != nil {
			return err
		}

		txn := &entity.CreditTransaction{
			ID:                 uuid.NewString(),
			UserID:             userID,
			Type:               source,
			Amount:             amount,
			PaidBalanceAfter:   bal.PaidBalance,
			TotalConsumedAfter: bal.TotalConsumed,
			EventID:            &eventID,
			Description:        description,
			CreatedAt:          l.now(),
		}
		if err := l.repo.CreateTransaction(ctx, txn); err != nil {
			return err
		}
		result = CreditResult{Applied: true, Transaction: txn, Balance: l.availability(userID, bal)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// afterCredit 入账提交后的缓存失效、指标与通知
func (l *Ledger) afterCredit(ctx context.Context, userID string, result *CreditResult) {
	txn := result.Transaction
	eventID := ""
	if txn != nil && txn.EventID != nil {
		eventID = *txn.EventID
	}
	if !result.Applied {
		logger.Info(ctx, "duplicate credit event ignored", "user_id", userID, "event_id", eventID)
		return
	}

	metrics.LedgerCreditedAmount.WithLabelValues(string(txn.Type)).Add(float64(txn.Amount))
	l.invalidate(ctx, userID)
	logger.Info(ctx, "credits added", "user_id", userID, "amount", txn.Amount, "source", string(txn.Type), "event_id", eventID)
	for _, listener := range l.listeners {
		if err := listener.Credited(ctx, userID, txn); err != nil {
			metrics.LedgerBookkeepingFailures.WithLabelValues("credit_event").Inc()
			logger.Warn(ctx, "credit listener failed", "event_id", eventID, "error", err.Error())
		}
	}
}

// History 分页查询额度流水
func (l *Ledger) History(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.CreditTransaction], error) {
	return l.repo.ListTransactions(ctx, userID, pagination)
}

func (l *Ledger) invalidate(ctx context.Context, userID string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Invalidate(ctx, userID); err != nil {
		logger.Warn(ctx, "failed to invalidate balance cache", "user_id", userID, "error", err.Error())
	}
}
