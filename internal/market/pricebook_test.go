package market

import (
	"testing"

	"github.com/aaronyhsoh33/market-maker-bot/pkg/types"
)

func TestPriceBookUpsertOverwrites(t *testing.T) {
	t.Parallel()
	b := NewPriceBook()

	b.Upsert(types.Tick{Instrument: "BTCUSD", Price: 50_000, TimestampMs: 1})
	b.Upsert(types.Tick{Instrument: "BTCUSD", Price: 50_100, TimestampMs: 2})
	b.Upsert(types.Tick{Instrument: "ETHUSD", Price: 3_000, TimestampMs: 3})

	tick, ok := b.Latest("BTCUSD")
	if !ok {
		t.Fatal("expected BTCUSD tick")
	}
	if tick.Price != 50_100 || tick.TimestampMs != 2 {
		t.Errorf("latest BTCUSD = %+v, want the second upsert", tick)
	}

	if b.Len() != 2 {
		t.Errorf("Len = %d, want 2", b.Len())
	}
}

func TestPriceBookLatestMissing(t *testing.T) {
	t.Parallel()
	b := NewPriceBook()

	if _, ok := b.Latest("SOLUSD"); ok {
		t.Error("expected no tick for unknown instrument")
	}
}

func TestPriceBookEach(t *testing.T) {
	t.Parallel()
	b := NewPriceBook()

	b.Upsert(types.Tick{Instrument: "BTCUSD", Price: 50_000})
	b.Upsert(types.Tick{Instrument: "ETHUSD", Price: 3_000})

	seen := make(map[string]float64)
	b.Each(func(tick types.Tick) { seen[tick.Instrument] = tick.Price })

	if len(seen) != 2 || seen["BTCUSD"] != 50_000 || seen["ETHUSD"] != 3_000 {
		t.Errorf("Each visited %v", seen)
	}
}
