package payment

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"100000.00", 100000},
		{"1000.50", 1000},
		{"1000.99", 1000},
		{"0.99", 0},
	}

	for _, tt := range tests {
		trx := Transaction{Amount: decimal.RequireFromString(tt.amount)}
		if got := trx.MinorUnits(); got != tt.want {
			t.Fatalf("MinorUnits(%s) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}

func TestExtraDataScan(t *testing.T) {
	var e ExtraData
	if err := e.Scan([]byte(`{"cancel_reason": "user requested"}`)); err != nil {
		t.Fatalf("scanning extra data: %v", err)
	}
	if e["cancel_reason"] != "user requested" {
		t.Fatalf("unexpected extra data %v", e)
	}

	if err := e.Scan(nil); err != nil {
		t.Fatalf("scanning nil extra data: %v", err)
	}
	if len(e) != 0 {
		t.Fatalf("nil source must scan to an empty map, got %v", e)
	}

	v, err := ExtraData(nil).Value()
	if err != nil {
		t.Fatalf("valuing nil extra data: %v", err)
	}
	if string(v.([]byte)) != "{}" {
		t.Fatalf("nil extra data must serialize as {}, got %s", v)
	}
}
