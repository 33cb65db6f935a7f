package exchange

import (
	"testing"

	"github.com/aaronyhsoh33/market-maker-bot/pkg/types"
)

func TestParseOrderUpdate(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		"channel": "order",
		"data": {
			"id": "ord-7",
			"status": "PARTIALLY_FILLED",
			"ticker": "BTCUSD",
			"filledQuantity": "0.0004",
			"timestamp": 1700000000123
		}
	}`)

	evt, err := parseOrderUpdate(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if evt.ID != "ord-7" {
		t.Errorf("id = %q", evt.ID)
	}
	if evt.Status != types.StatusPartiallyFilled {
		t.Errorf("status = %q", evt.Status)
	}
	if evt.Instrument != "BTCUSD" {
		t.Errorf("instrument = %q", evt.Instrument)
	}
	if evt.FilledQty != 0.0004 {
		t.Errorf("filled = %v", evt.FilledQty)
	}
	if evt.TimestampMs != 1_700_000_000_123 {
		t.Errorf("timestamp = %d", evt.TimestampMs)
	}
}

func TestParseOrderUpdateMissingFill(t *testing.T) {
	t.Parallel()

	evt, err := parseOrderUpdate([]byte(`{"channel":"order","data":{"id":"x","status":"CANCELED"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if evt.FilledQty != 0 {
		t.Errorf("filled = %v, want 0", evt.FilledQty)
	}
	if !evt.Status.Terminal() {
		t.Error("CANCELED should be terminal")
	}
}

func TestNormalizeStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want types.OrderStatus
	}{
		{"NEW", types.StatusNew},
		{"OPEN", types.StatusNew},
		{"SUBMITTED", types.StatusNew},
		{"PARTIALLY_FILLED", types.StatusPartiallyFilled},
		{"PARTIAL", types.StatusPartiallyFilled},
		{"FILLED", types.StatusFilled},
		{"CANCELED", types.StatusCanceled},
		{"CANCELLED", types.StatusCanceled},
		{"EXPIRED", types.StatusExpired},
		{"WEIRD", types.OrderStatus("WEIRD")},
	}
	for _, tc := range cases {
		if got := normalizeStatus(tc.in); got != tc.want {
			t.Errorf("normalizeStatus(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
