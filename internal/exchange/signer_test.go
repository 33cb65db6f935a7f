package exchange

import (
	"strings"
	"testing"

	"github.com/aaronyhsoh33/market-maker-bot/pkg/types"
)

// Throwaway key used only in tests.
const testKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

func testOrderRequest() types.OrderRequest {
	return types.OrderRequest{
		ClientOrderID: "11111111-2222-3333-4444-555555555555",
		Instrument:    "BTCUSD",
		ProductID:     "BTCUSD_PERP",
		OrderType:     types.OrderTypeLimit,
		Quantity:      0.001,
		Side:          types.Bid,
		Price:         49_950,
		TimeInForce:   types.TIFGoodTillDate,
		ExpiresAtSec:  1_700_000_300,
	}
}

func TestNewSignerParsesKey(t *testing.T) {
	t.Parallel()

	for _, key := range []string{testKey, "0x" + testKey} {
		s, err := NewSigner(key)
		if err != nil {
			t.Fatalf("NewSigner(%q): %v", key[:6], err)
		}
		if s.Address().Hex() == "" {
			t.Error("expected a derived address")
		}
	}

	if _, err := NewSigner("not-a-key"); err == nil {
		t.Error("expected error for malformed key")
	}
}

func TestSignOrderDeterministic(t *testing.T) {
	t.Parallel()
	s, err := NewSigner(testKey)
	if err != nil {
		t.Fatal(err)
	}

	req := testOrderRequest()
	sig1, err := s.SignOrder(req, "primary")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig2, err := s.SignOrder(req, "primary")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if sig1 != sig2 {
		t.Error("same payload must produce the same signature")
	}
	if !strings.HasPrefix(sig1, "0x") || len(sig1) != 2+65*2 {
		t.Errorf("signature %q has unexpected shape", sig1)
	}
}

func TestSignOrderVariesWithPayload(t *testing.T) {
	t.Parallel()
	s, err := NewSigner(testKey)
	if err != nil {
		t.Fatal(err)
	}

	base := testOrderRequest()
	sigBase, err := s.SignOrder(base, "primary")
	if err != nil {
		t.Fatal(err)
	}

	moved := base
	moved.Price = 49_951
	sigMoved, err := s.SignOrder(moved, "primary")
	if err != nil {
		t.Fatal(err)
	}
	if sigBase == sigMoved {
		t.Error("different prices must sign differently")
	}

	sigOther, err := s.SignOrder(base, "secondary")
	if err != nil {
		t.Fatal(err)
	}
	if sigBase == sigOther {
		t.Error("different subaccounts must sign differently")
	}
}

func TestSignCancel(t *testing.T) {
	t.Parallel()
	s, err := NewSigner(testKey)
	if err != nil {
		t.Fatal(err)
	}

	sig1, err := s.SignCancel(types.CancelRequest{OrderIDs: []string{"a", "b"}, Subaccount: "primary"})
	if err != nil {
		t.Fatalf("sign cancel: %v", err)
	}
	sig2, err := s.SignCancel(types.CancelRequest{OrderIDs: []string{"a"}, Subaccount: "primary"})
	if err != nil {
		t.Fatalf("sign cancel: %v", err)
	}
	if sig1 == sig2 {
		t.Error("different id lists must sign differently")
	}
}

func TestScaleAmount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   float64
		want string
	}{
		{1, "1000000000"},
		{0.001, "1000000"},
		{49_950, "49950000000000"},
		{0, "0"},
	}
	for _, tc := range cases {
		if got := scaleAmount(tc.in).String(); got != tc.want {
			t.Errorf("scaleAmount(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
