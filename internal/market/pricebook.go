// Package market provides the in-memory market-data layer: the latest-tick
// store written by the oracle feed and the bounded per-instrument tick
// history kept for observability.
//
// PriceBook holds exactly one tick per instrument — the freshest. The feed
// goroutine upserts concurrently with cadence-loop reads, so all access is
// RWMutex protected.
package market

import (
	"sync"

	"github.com/aaronyhsoh33/market-maker-bot/pkg/types"
)

// PriceBook maps instrument → latest oracle tick.
type PriceBook struct {
	mu     sync.RWMutex
	latest map[string]types.Tick
}

// NewPriceBook creates an empty price book.
func NewPriceBook() *PriceBook {
	return &PriceBook{latest: make(map[string]types.Tick)}
}

// Upsert stores the tick as the latest for its instrument, overwriting any
// previous one.
func (b *PriceBook) Upsert(t types.Tick) {
	b.mu.Lock()
	b.latest[t.Instrument] = t
	b.mu.Unlock()
}

// Latest returns the freshest tick for the instrument, if any.
func (b *PriceBook) Latest(instrument string) (types.Tick, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.latest[instrument]
	return t, ok
}

// Each calls fn with a copy of the latest tick for every instrument.
// fn must not call back into the book.
func (b *PriceBook) Each(fn func(types.Tick)) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, t := range b.latest {
		fn(t)
	}
}

// Len returns the number of instruments with at least one tick.
func (b *PriceBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.latest)
}
