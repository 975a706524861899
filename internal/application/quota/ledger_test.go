package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/domain/repository"
)

func newTestLedger(t *testing.T) (*Ledger, *memStore, *countingCache) {
	t.Helper()
	store := newMemStore()
	cache := &countingCache{}
	return NewLedger(store, store, cache, entity.DefaultFreeCap), store, cache
}

func seedBalance(store *memStore, userID string, freeUsed, paid int64) {
	store.balances[userID] = entity.CreditBalance{UserID: userID, FreeUsed: freeUsed, PaidBalance: paid}
}

func TestCheckAvailableNewUser(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	got, err := ledger.CheckAvailable(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("CheckAvailable: %v", err)
	}
	if got.FreeRemaining != 50 || got.PaidBalance != 0 || got.Available != 50 {
		t.Fatalf("unexpected availability: %+v", got)
	}
}

func TestDebitInsufficientLeavesBalanceUnchanged(t *testing.T) {
	ledger, store, cache := newTestLedger(t)
	seedBalance(store, "u1", 45, 0)
	ctx := context.Background()

	avail, err := ledger.CheckAvailable(ctx, "u1")
	if err != nil {
		t.Fatalf("CheckAvailable: %v", err)
	}
	if avail.Available != 5 {
		t.Fatalf("expected available 5, got %d", avail.Available)
	}

	_, err = ledger.Debit(ctx, "u1", 10, entity.TxDebitGeneration, "run-1")
	var insufficient InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientCreditsError, got %v", err)
	}
	if insufficient.Available != 5 || insufficient.Required != 10 {
		t.Fatalf("unexpected error details: %+v", insufficient)
	}

	b := store.balances["u1"]
	if b.FreeUsed != 45 || b.PaidBalance != 0 || b.TotalConsumed != 0 {
		t.Fatalf("balance changed after failed debit: %+v", b)
	}
	if n := len(store.transactionsFor("u1")); n != 0 {
		t.Fatalf("expected no transactions, got %d", n)
	}
	if cache.invalidated["u1"] != 0 {
		t.Fatalf("cache should not be invalidated on failure")
	}
}

func TestDebitConsumesFreeFirst(t *testing.T) {
	ledger, store, cache := newTestLedger(t)
	seedBalance(store, "u1", 0, 5)

	res, err := ledger.Debit(context.Background(), "u1", 10, entity.TxDebitGeneration, "run-1")
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	b := store.balances["u1"]
	if b.FreeUsed != 10 || b.PaidBalance != 5 || b.TotalConsumed != 10 {
		t.Fatalf("unexpected balance: %+v", b)
	}
	if res.Transaction.FromFree != 10 || res.Transaction.FromPaid != 0 || res.Transaction.Amount != -10 {
		t.Fatalf("unexpected transaction: %+v", res.Transaction)
	}
	if res.Balance.Available != 45 {
		t.Fatalf("expected available 45 after debit, got %d", res.Balance.Available)
	}
	if cache.invalidated["u1"] != 1 {
		t.Fatalf("expected cache invalidation")
	}
}

func TestDebitSpillsIntoPaid(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	seedBalance(store, "u1", 46, 20)

	res, err := ledger.Debit(context.Background(), "u1", 10, entity.TxDebitRegeneration, "gen-1")
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	b := store.balances["u1"]
	if b.FreeUsed != 50 || b.PaidBalance != 14 || b.TotalConsumed != 10 {
		t.Fatalf("unexpected balance: %+v", b)
	}
	if res.Transaction.FromFree != 4 || res.Transaction.FromPaid != 6 || res.Transaction.PaidBalanceAfter != 14 {
		t.Fatalf("unexpected transaction: %+v", res.Transaction)
	}
}

func TestDebitRejectsCreditTypeAndNonPositive(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	if _, err := ledger.Debit(context.Background(), "u1", 10, entity.TxPurchase, ""); err == nil {
		t.Fatalf("expected error for credit type")
	}
	if _, err := ledger.Debit(context.Background(), "u1", 0, entity.TxDebitGeneration, ""); err == nil {
		t.Fatalf("expected error for zero amount")
	}
}

func TestConcurrentDebitsNeverExceedAvailable(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	seedBalance(store, "u1", 20, 25) // available 55
	const attempts = 40

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ledger.Debit(context.Background(), "u1", 10, entity.TxDebitGeneration, fmt.Sprintf("run-%d", i))
			if err == nil {
				succeeded.Add(10)
				return
			}
			if !errors.Is(err, ErrInsufficientCredits) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded.Load() > 55 {
		t.Fatalf("debited %d exceeds available 55", succeeded.Load())
	}
	if succeeded.Load() != 50 {
		t.Fatalf("expected exactly five successful debits, got %d credits", succeeded.Load())
	}
	b := store.balances["u1"]
	if b.PaidBalance < 0 {
		t.Fatalf("paid balance went negative: %+v", b)
	}
	if b.TotalConsumed != succeeded.Load() {
		t.Fatalf("total consumed %d does not match successful debits %d", b.TotalConsumed, succeeded.Load())
	}
}

func TestCreditIsIdempotentPerEvent(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	ctx := context.Background()

	first, err := ledger.Credit(ctx, "u1", 100, entity.TxPurchase, "evt_1", "pack")
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if !first.Applied || first.Balance.PaidBalance != 100 {
		t.Fatalf("unexpected first result: %+v", first)
	}

	second, err := ledger.Credit(ctx, "u1", 100, entity.TxPurchase, "evt_1", "pack")
	if err != nil {
		t.Fatalf("Credit retry: %v", err)
	}
	if second.Applied {
		t.Fatalf("duplicate event must not be applied")
	}
	if got := store.balances["u1"].PaidBalance; got != 100 {
		t.Fatalf("expected paid balance 100, got %d", got)
	}

	// 同一事件 ID 对其他用户独立
	if res, err := ledger.Credit(ctx, "u2", 100, entity.TxPurchase, "evt_1", "pack"); err != nil || !res.Applied {
		t.Fatalf("expected independent credit for u2, got %+v, %v", res, err)
	}
}

func TestCreditConcurrentDuplicates(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Credit(context.Background(), "u1", 25, entity.TxPurchase, "evt_dup", ""); err != nil {
				t.Errorf("Credit: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := store.balances["u1"].PaidBalance; got != 25 {
		t.Fatalf("expected a single credit of 25, got %d", got)
	}
}

func TestCreditValidation(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()
	if _, err := ledger.Credit(ctx, "u1", 10, entity.TxPurchase, " ", ""); err == nil {
		t.Fatalf("expected error for empty event id")
	}
	if _, err := ledger.Credit(ctx, "u1", 10, entity.TxDebitGeneration, "e", ""); err == nil {
		t.Fatalf("expected error for debit type")
	}
	if _, err := ledger.Credit(ctx, "u1", -5, entity.TxPromo, "e", ""); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestRequire(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	seedBalance(store, "u1", 45, 0)
	if _, err := ledger.Require(context.Background(), "u1", 10); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected insufficient credits, got %v", err)
	}
	if _, err := ledger.Require(context.Background(), "u1", 5); err != nil {
		t.Fatalf("expected 5 to be covered: %v", err)
	}
}

func TestHistory(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	ctx := context.Background()
	seedBalance(store, "u1", 0, 0)
	for i := 0; i < 3; i++ {
		if _, err := ledger.Debit(ctx, "u1", 5, entity.TxDebitGeneration, fmt.Sprintf("r%d", i)); err != nil {
			t.Fatalf("Debit: %v", err)
		}
	}
	page, err := ledger.History(ctx, "u1", repository.NewPagination(1, 2))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.TotalPages != 2 {
		t.Fatalf("unexpected page: total=%d items=%d pages=%d", page.Total, len(page.Items), page.TotalPages)
	}
}
