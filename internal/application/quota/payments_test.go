package quota

import (
	"context"
	"errors"
	"testing"

	"scriptgen-api/internal/domain/entity"
)

type recordingListener struct {
	calls []string
	err   error
}

func (l *recordingListener) Credited(_ context.Context, userID string, txn *entity.CreditTransaction) error {
	l.calls = append(l.calls, userID+":"+*txn.EventID)
	return l.err
}

func TestPaymentsApplyIsIdempotent(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	listener := &recordingListener{}
	ledger.AddCreditListener(listener)
	payments := NewPayments(ledger)
	ctx := context.Background()

	evt := PaymentEvent{EventID: "evt_42", UserID: "u1", Credits: 100, Provider: "stripe"}
	first, err := payments.Apply(ctx, evt)
	if err != nil || !first.Applied {
		t.Fatalf("first delivery should apply: %+v, %v", first, err)
	}
	second, err := payments.Apply(ctx, evt)
	if err != nil || second.Applied {
		t.Fatalf("redelivery must be a no-op: %+v, %v", second, err)
	}

	if b := store.balances["u1"]; b.PaidBalance != 100 {
		t.Fatalf("expected paid balance 100, got %d", b.PaidBalance)
	}
	if len(store.transactionsFor("u1")) != 1 {
		t.Fatalf("expected a single purchase transaction")
	}
	if len(listener.calls) != 1 || listener.calls[0] != "u1:evt_42" {
		t.Fatalf("listener should fire once per applied credit: %v", listener.calls)
	}
}

func TestPaymentsListenerFailureKeepsCredit(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	ledger.AddCreditListener(&recordingListener{err: errors.New("broker down")})

	res, err := NewPayments(ledger).Apply(context.Background(), PaymentEvent{EventID: "e1", UserID: "u1", Credits: 5})
	if err != nil || !res.Applied {
		t.Fatalf("listener errors must not fail the credit: %+v, %v", res, err)
	}
	if store.balances["u1"].PaidBalance != 5 {
		t.Fatalf("credit not applied")
	}
}

func TestPaymentEventValidate(t *testing.T) {
	cases := []PaymentEvent{
		{UserID: "u1", Credits: 10},
		{EventID: "e1", Credits: 10},
		{EventID: "e1", UserID: "u1"},
		{EventID: "e1", UserID: "u1", Credits: -5},
		{EventID: "e1", UserID: "u1", Credits: MaxPurchaseCredits + 1},
	}
	for _, evt := range cases {
		if err := evt.Validate(); !errors.Is(err, ErrInvalidPayment) {
			t.Fatalf("expected ErrInvalidPayment for %+v, got %v", evt, err)
		}
	}
}
