package tradelog

import (
	"os"
	"path/filepath"
	"testing"
)

func f(v float64) *float64 { return &v }

func TestTailSkipsMalformedAndForeignLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.jsonl")
	raw := `{"type":"trade_close","symbol":"AAPL","pnl_pct":-1.5}
not json at all
{"type":"order","symbol":"NVDA"}
{"type":"trade_close","symbol":"MSFT","pnl_pct":2.0}
`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	closes, err := New(path).Tail(10)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(closes) != 2 {
		t.Fatalf("expected 2 records, got %d", len(closes))
	}
	if closes[0].Symbol != "AAPL" || closes[1].Symbol != "MSFT" {
		t.Errorf("unexpected records: %+v", closes)
	}
}

func TestTailReturnsMostRecent(t *testing.T) {
	log := New(filepath.Join(t.TempDir(), "trades.jsonl"))
	for _, sym := range []string{"A", "B", "C", "D", "E"} {
		if err := log.AppendClose(Close{Symbol: sym, PnLPct: f(1)}); err != nil {
			t.Fatal(err)
		}
	}

	closes, err := log.Tail(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(closes) != 3 {
		t.Fatalf("expected 3, got %d", len(closes))
	}
	if closes[0].Symbol != "C" || closes[2].Symbol != "E" {
		t.Errorf("expected the 3 most recent oldest-first, got %+v", closes)
	}
}

func TestTailMissingFile(t *testing.T) {
	closes, err := New(filepath.Join(t.TempDir(), "absent.jsonl")).Tail(3)
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(closes) != 0 {
		t.Errorf("expected empty history, got %+v", closes)
	}
}

func TestIsLoss(t *testing.T) {
	testCases := []struct {
		name string
		c    Close
		want bool
	}{
		{"negative_pct", Close{PnLPct: f(-0.1)}, true},
		{"positive_pct", Close{PnLPct: f(0.1)}, false},
		{"breakeven_is_not_a_loss", Close{PnLPct: f(0)}, false},
		{"usd_fallback_loss", Close{PnLUSD: f(-12.50)}, true},
		{"no_pnl_fields", Close{}, false},
		{"pct_takes_precedence", Close{PnLPct: f(0.5), PnLUSD: f(-1)}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.c.IsLoss(); got != tc.want {
				t.Errorf("IsLoss() = %v, want %v", got, tc.want)
			}
		})
	}
}
