package quota

import (
	"context"
	"fmt"
	"time"

	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/domain/repository"
	"scriptgen-api/pkg/logger"
	"scriptgen-api/pkg/metrics"
)

const defaultReconcileBatch = 200

// Mismatch 余额行与流水汇总不一致的字段
type Mismatch struct {
	UserID   string `json:"user_id"`
	Field    string `json:"field"`
	Stored   int64  `json:"stored"`
	Expected int64  `json:"expected"`
}

// ReconcileReport 一次对账的结果
type ReconcileReport struct {
	Checked    int           `json:"checked"`
	Mismatches []Mismatch    `json:"mismatches"`
	Duration   time.Duration `json:"duration"`
}

// Reconciler 用流水重算余额并报告差异，不做自动修正
type Reconciler struct {
	repo  repository.LedgerAuditRepository
	batch int
}

// NewReconciler 创建对账器
func NewReconciler(repo repository.LedgerAuditRepository, batch int) *Reconciler {
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &Reconciler{repo: repo, batch: batch}
}

// Reconcile 遍历所有余额行
func (r *Reconciler) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	start := time.Now()
	report := &ReconcileReport{}

	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		balances, err := r.repo.ListBalances(ctx, after, r.batch)
		if err != nil {
			return report, fmt.Errorf("failed to list balances: %w", err)
		}
		for _, b := range balances {
			totals, err := r.repo.SumTransactions(ctx, b.UserID)
			if err != nil {
				return report, fmt.Errorf("failed to sum transactions for %s: %w", b.UserID, err)
			}
			report.Checked++
			report.Mismatches = append(report.Mismatches, compareBalance(b, totals)...)
		}
		if len(balances) < r.batch {
			break
		}
		after = balances[len(balances)-1].UserID
	}

	for _, m := range report.Mismatches {
		metrics.LedgerReconcileMismatches.WithLabelValues(m.Field).Inc()
		logger.Warn(ctx, "ledger balance disagrees with transaction log",
			"user_id", m.UserID,
			"field", m.Field,
			"stored", m.Stored,
			"expected", m.Expected,
		)
	}
	report.Duration = time.Since(start)
	logger.Info(ctx, "ledger reconciliation finished",
		"checked", report.Checked,
		"mismatches", len(report.Mismatches),
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

func compareBalance(b *entity.CreditBalance, t repository.TransactionTotals) []Mismatch {
	var out []Mismatch
	check := func(field string, stored, expected int64) {
		if stored != expected {
			out = append(out, Mismatch{UserID: b.UserID, Field: field, Stored: stored, Expected: expected})
		}
	}
	check("paid_balance", b.PaidBalance, t.Credited-t.FromPaid)
	check("free_used", b.FreeUsed, t.FromFree)
	check("total_consumed", b.TotalConsumed, t.Consumed)
	return out
}
