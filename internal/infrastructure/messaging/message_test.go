package messaging

import (
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Max: 10 * time.Second, Multiplier: 2}
	cases := map[int]time.Duration{
		0: time.Second,
		1: 2 * time.Second,
		3: 8 * time.Second,
		4: 10 * time.Second,
		9: 10 * time.Second,
	}
	for retry, want := range cases {
		if got := cfg.CalculateBackoff(retry); got != want {
			t.Fatalf("CalculateBackoff(%d) = %s, want %s", retry, got, want)
		}
	}
}

func TestPaymentMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage("evt_1", TypeCreditPurchase, "u1", &PaymentEventMessage{EventID: "evt_1", UserID: "u1", Credits: 100})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	msg.SetMetadata("request_id", "req-1")

	var evt PaymentEventMessage
	if err := msg.UnmarshalPayload(&evt); err != nil {
		t.Fatalf("UnmarshalPayload: %v", err)
	}
	if evt.Credits != 100 || evt.UserID != "u1" || msg.GetMetadata("request_id") != "req-1" {
		t.Fatalf("unexpected message: %+v %+v", msg, evt)
	}
	if StreamCreditPurchase.DLQStream() != "dlq:stream:credits:purchase" {
		t.Fatalf("unexpected dlq stream %s", StreamCreditPurchase.DLQStream())
	}
}
