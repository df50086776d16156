package paylov

import (
	"encoding/json"
	"testing"

	"github.com/sherzodn/edupay/core/payment"
	"github.com/shopspring/decimal"
)

func TestFlexibleID(t *testing.T) {
	var p webhookParams

	body := `{"account": {"order_id": "6a9cbe2b-40e6-47fb-9e01-5b04b39a6f29"}, "amount": 1000}`
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("decoding string order_id: %v", err)
	}
	if string(p.Account.OrderID) != "6a9cbe2b-40e6-47fb-9e01-5b04b39a6f29" {
		t.Fatalf("unexpected order id %q", p.Account.OrderID)
	}

	body = `{"account": {"order_id": 42}, "amount": 1000}`
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("decoding numeric order_id: %v", err)
	}
	if string(p.Account.OrderID) != "42" {
		t.Fatalf("unexpected numeric order id %q", p.Account.OrderID)
	}
}

func TestWebhookEnvelopeDecode(t *testing.T) {
	// A real delivery is JSON-RPC 2.0: it carries the jsonrpc member and
	// this provider family adds params members like "time". Neither may
	// break decoding.
	body := `{
		"jsonrpc": "2.0",
		"id": 3,
		"method": "PerformTransaction",
		"params": {
			"account": {"order_id": "6a9cbe2b-40e6-47fb-9e01-5b04b39a6f29"},
			"amount": 1000,
			"transaction_id": "abc123",
			"time": 1693400000000
		}
	}`

	var env webhookEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if env.Method != MethodPerformTransaction {
		t.Fatalf("unexpected method %q", env.Method)
	}
	if env.ID == nil || *env.ID != 3 {
		t.Fatalf("unexpected id %v", env.ID)
	}
	if string(env.Params.Account.OrderID) != "6a9cbe2b-40e6-47fb-9e01-5b04b39a6f29" {
		t.Fatalf("unexpected order id %q", env.Params.Account.OrderID)
	}
	if env.Params.Amount != 1000 || env.Params.TransactionID != "abc123" {
		t.Fatalf("unexpected params %+v", env.Params)
	}
}

func TestValidateTransaction(t *testing.T) {
	pending := func(amount string) payment.Transaction {
		return payment.Transaction{
			Status: payment.TransactionPending,
			Amount: decimal.RequireFromString(amount),
		}
	}

	tests := []struct {
		name     string
		trx      payment.Transaction
		amount   int64
		wantStop bool
		wantCode int
	}{
		{"pending exact", pending("100000.00"), 100000, false, CodeSuccess},

		// Comparison truncates the fractional part on our side, so a
		// stored 1000.50 matches an incoming 1000.
		{"fraction truncated", pending("1000.50"), 1000, false, CodeSuccess},

		{"amount mismatch", pending("100000.00"), 50000, true, CodeInvalidAmount},

		{
			"already completed",
			payment.Transaction{Status: payment.TransactionCompleted, Amount: decimal.RequireFromString("100000.00")},
			100000, true, CodeOrderAlreadyPaid,
		},

		// When both checks fire the amount check wins.
		{
			"completed with wrong amount",
			payment.Transaction{Status: payment.TransactionCompleted, Amount: decimal.RequireFromString("100000.00")},
			50000, true, CodeInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stop, code := validateTransaction(tt.trx, tt.amount)
			if stop != tt.wantStop || code != tt.wantCode {
				t.Fatalf("got (%v, %d), want (%v, %d)", stop, code, tt.wantStop, tt.wantCode)
			}
		})
	}
}
