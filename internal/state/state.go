// Package state holds the authoritative per-instrument trading state: the
// bid/ask order slots, inventory observed at warmup, and the single-flight
// locks that keep the cadence loop and the event callbacks from issuing
// overlapping network operations.
//
// All mutations go through an instrument-scoped mutex. The registry itself
// is read-mostly: instruments are created lazily on first reference and
// survive for the process lifetime.
package state

import (
	"fmt"
	"sync"

	"github.com/aaronyhsoh33/market-maker-bot/pkg/types"
)

// Snapshot is a consistent copy of one instrument's state, safe to read
// without holding the instrument lock.
type Snapshot struct {
	Instrument     string
	Bid            *types.Order
	Ask            *types.Order
	LongInventory  *types.Inventory
	ShortInventory *types.Inventory
}

// Instrument is the mutable record for a single traded instrument.
// At most one order occupies each side; a slot holding a synthetic
// position-derived order counts as occupied.
type Instrument struct {
	mu     sync.Mutex
	symbol string

	bid *types.Order
	ask *types.Order

	longInv  *types.Inventory
	shortInv *types.Inventory

	placing      bool // a placement round is in flight
	cancelingBid bool // a bid cancel is in flight
	cancelingAsk bool // an ask cancel is in flight
}

func newInstrument(symbol string) *Instrument {
	return &Instrument{symbol: symbol}
}

// Symbol returns the instrument ticker.
func (s *Instrument) Symbol() string { return s.symbol }

// Snapshot returns a copy of the current slots and inventory.
func (s *Instrument) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Instrument: s.symbol}
	if s.bid != nil {
		o := *s.bid
		snap.Bid = &o
	}
	if s.ask != nil {
		o := *s.ask
		snap.Ask = &o
	}
	if s.longInv != nil {
		inv := *s.longInv
		snap.LongInventory = &inv
	}
	if s.shortInv != nil {
		inv := *s.shortInv
		snap.ShortInventory = &inv
	}
	return snap
}

// Order returns a copy of the order occupying the given side, if any.
func (s *Instrument) Order(side types.Side) (types.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := s.slot(side)
	if *slot == nil {
		return types.Order{}, false
	}
	return **slot, true
}

// InstallPlaced occupies the side's slot with a freshly-placed order.
// The slot must be empty and the order's side must match.
func (s *Instrument) InstallPlaced(side types.Side, o types.Order) error {
	if o.Side != side {
		return fmt.Errorf("install %s order into %s slot", o.Side, side)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.slot(side)
	if *slot != nil {
		return fmt.Errorf("%s: %s slot already holds order %s", s.symbol, side, (*slot).ID)
	}
	*slot = &o
	return nil
}

// Clear empties the side's slot.
func (s *Instrument) Clear(side types.Side) {
	s.mu.Lock()
	*s.slot(side) = nil
	s.mu.Unlock()
}

// ApplyStatus locates the slot holding orderID and applies the status
// transition: terminal statuses clear the slot, everything else updates the
// status (and fill quantity) in place. Returns false if neither slot holds
// the order. Reapplying the same status is a no-op.
func (s *Instrument) ApplyStatus(orderID string, status types.OrderStatus, filledQty float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, slot := range []**types.Order{&s.bid, &s.ask} {
		if *slot == nil || (*slot).ID != orderID {
			continue
		}
		if status.Terminal() {
			*slot = nil
		} else {
			(*slot).Status = status
			if filledQty > (*slot).FilledQty {
				(*slot).FilledQty = filledQty
			}
		}
		return true
	}
	return false
}

// PairedFillCleanup clears both slots when both hold Filled orders — the
// completed round-trip bookkeeping that lets the next cycle quote afresh.
// Synthetic position orders participate like any other Filled order, so a
// real fill opposite a warmed-up position releases the inventory side too.
func (s *Instrument) PairedFillCleanup() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bid == nil || s.ask == nil {
		return false
	}
	if s.bid.Status != types.StatusFilled || s.ask.Status != types.StatusFilled {
		return false
	}
	s.bid = nil
	s.ask = nil
	return true
}

// SetInventory records a warmup inventory observation on the matching side.
func (s *Instrument) SetInventory(inv types.Inventory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := inv
	if inv.Direction == types.Long {
		s.longInv = &cp
	} else {
		s.shortInv = &cp
	}
}

// TryBeginPlacing acquires the instrument-wide placement lock. It returns
// false if a placement round is already in flight.
func (s *Instrument) TryBeginPlacing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.placing {
		return false
	}
	s.placing = true
	return true
}

// EndPlacing releases the placement lock.
func (s *Instrument) EndPlacing() {
	s.mu.Lock()
	s.placing = false
	s.mu.Unlock()
}

// TryBeginCancel acquires the side's cancel lock. With at most one order per
// side, the side lock is exactly the per-(instrument, side, order) guard.
func (s *Instrument) TryBeginCancel(side types.Side) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	flag := s.cancelFlag(side)
	if *flag {
		return false
	}
	*flag = true
	return true
}

// EndCancel releases the side's cancel lock.
func (s *Instrument) EndCancel(side types.Side) {
	s.mu.Lock()
	*s.cancelFlag(side) = false
	s.mu.Unlock()
}

// ResetLocks force-clears every in-flight lock. Used at shutdown so pending
// reconciliation is never blocked behind abandoned operations.
func (s *Instrument) ResetLocks() {
	s.mu.Lock()
	s.placing = false
	s.cancelingBid = false
	s.cancelingAsk = false
	s.mu.Unlock()
}

// slot returns the address of the side's order pointer. Caller holds mu.
func (s *Instrument) slot(side types.Side) **types.Order {
	if side == types.Bid {
		return &s.bid
	}
	return &s.ask
}

// cancelFlag returns the address of the side's cancel lock. Caller holds mu.
func (s *Instrument) cancelFlag(side types.Side) *bool {
	if side == types.Bid {
		return &s.cancelingBid
	}
	return &s.cancelingAsk
}

// ————————————————————————————————————————————————————————————————————————
// Registry
// ————————————————————————————————————————————————————————————————————————

// Registry maps instrument ticker → state, creating entries lazily.
type Registry struct {
	mu          sync.RWMutex
	instruments map[string]*Instrument
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{instruments: make(map[string]*Instrument)}
}

// Get returns the state for the instrument, creating it on first reference.
func (r *Registry) Get(symbol string) *Instrument {
	r.mu.RLock()
	s, ok := r.instruments[symbol]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.instruments[symbol]; ok {
		return s
	}
	s = newInstrument(symbol)
	r.instruments[symbol] = s
	return s
}

// Each calls fn for every known instrument.
func (r *Registry) Each(fn func(*Instrument)) {
	r.mu.RLock()
	states := make([]*Instrument, 0, len(r.instruments))
	for _, s := range r.instruments {
		states = append(states, s)
	}
	r.mu.RUnlock()

	for _, s := range states {
		fn(s)
	}
}

// LiveOrders collects every order across instruments that is cancellable on
// the venue: non-synthetic, with status New or not yet reported.
func (r *Registry) LiveOrders() []types.Order {
	var live []types.Order
	r.Each(func(s *Instrument) {
		snap := s.Snapshot()
		for _, o := range []*types.Order{snap.Bid, snap.Ask} {
			if o == nil || o.Synthetic() {
				continue
			}
			if o.Status == types.StatusNew || o.Status == "" {
				live = append(live, *o)
			}
		}
	})
	return live
}

// ClearAll empties every slot across all instruments.
func (r *Registry) ClearAll() {
	r.Each(func(s *Instrument) {
		s.Clear(types.Bid)
		s.Clear(types.Ask)
	})
}

// ResetAllLocks force-clears every instrument's in-flight locks.
func (r *Registry) ResetAllLocks() {
	r.Each(func(s *Instrument) { s.ResetLocks() })
}
