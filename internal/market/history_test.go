package market

import (
	"testing"

	"github.com/aaronyhsoh33/market-maker-bot/pkg/types"
)

func TestHistoryCapBounded(t *testing.T) {
	t.Parallel()
	h := NewHistory()

	for i := 0; i < historyCap*3; i++ {
		h.Push(types.Tick{Instrument: "BTCUSD", Price: float64(i), TimestampMs: int64(i)})
	}

	if got := h.Len("BTCUSD"); got != historyCap {
		t.Fatalf("Len = %d, want %d", got, historyCap)
	}
}

func TestHistoryFIFOOrder(t *testing.T) {
	t.Parallel()
	h := NewHistory()

	for i := 0; i < historyCap+25; i++ {
		h.Push(types.Tick{Instrument: "BTCUSD", Price: float64(i), TimestampMs: int64(i)})
	}

	tail := h.Tail("BTCUSD", 10)
	if len(tail) != 10 {
		t.Fatalf("tail length = %d, want 10", len(tail))
	}
	// Last push was price 124; the 10-tick tail runs 115..124 oldest-first.
	for i, tick := range tail {
		want := float64(historyCap + 15 + i)
		if tick.Price != want {
			t.Errorf("tail[%d].Price = %v, want %v", i, tick.Price, want)
		}
	}
}

func TestHistoryTailLargerThanContents(t *testing.T) {
	t.Parallel()
	h := NewHistory()

	h.Push(types.Tick{Instrument: "ETHUSD", Price: 1})
	h.Push(types.Tick{Instrument: "ETHUSD", Price: 2})

	tail := h.Tail("ETHUSD", 50)
	if len(tail) != 2 || tail[0].Price != 1 || tail[1].Price != 2 {
		t.Errorf("tail = %+v, want the two pushed ticks oldest-first", tail)
	}
}

func TestHistoryLatest(t *testing.T) {
	t.Parallel()
	h := NewHistory()

	if _, ok := h.Latest("BTCUSD"); ok {
		t.Error("expected no latest for empty history")
	}

	h.Push(types.Tick{Instrument: "BTCUSD", Price: 1})
	h.Push(types.Tick{Instrument: "BTCUSD", Price: 2})

	tick, ok := h.Latest("BTCUSD")
	if !ok || tick.Price != 2 {
		t.Errorf("Latest = %+v ok=%v, want price 2", tick, ok)
	}
}

func TestHistoryPerInstrumentIsolation(t *testing.T) {
	t.Parallel()
	h := NewHistory()

	h.Push(types.Tick{Instrument: "BTCUSD", Price: 1})
	h.Push(types.Tick{Instrument: "ETHUSD", Price: 2})

	if h.Len("BTCUSD") != 1 || h.Len("ETHUSD") != 1 {
		t.Errorf("per-instrument lengths wrong: btc=%d eth=%d", h.Len("BTCUSD"), h.Len("ETHUSD"))
	}
}
