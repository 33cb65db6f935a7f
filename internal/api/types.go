// Package api runs the observability HTTP server: health, a JSON snapshot of
// every quoted instrument, Prometheus metrics, and a WebSocket stream of
// quote-cycle events for the dashboard.
package api

import (
	"time"

	"github.com/aaronyhsoh33/market-maker-bot/pkg/types"
)

// StreamEvent is the wrapper for all events pushed to dashboard clients.
type StreamEvent struct {
	Type       string      `json:"type"` // "snapshot", "cycle", "reconcile"
	Timestamp  time.Time   `json:"timestamp"`
	Instrument string      `json:"instrument,omitempty"`
	Data       interface{} `json:"data"`
}

// OrderView is the dashboard representation of one order slot.
type OrderView struct {
	ID        string  `json:"id"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	FilledQty float64 `json:"filled_qty"`
	Status    string  `json:"status"`
	Synthetic bool    `json:"synthetic"`
}

// InventoryView is the dashboard representation of a warmup position.
type InventoryView struct {
	Direction  string  `json:"direction"`
	Quantity   float64 `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
}

// InstrumentStatus is the per-instrument row in the snapshot.
type InstrumentStatus struct {
	Instrument     string          `json:"instrument"`
	Mid            float64         `json:"mid"`
	TickAgeMs      int64           `json:"tick_age_ms"`
	Bid            *OrderView      `json:"bid,omitempty"`
	Ask            *OrderView      `json:"ask,omitempty"`
	LongInventory  *InventoryView  `json:"long_inventory,omitempty"`
	ShortInventory *InventoryView  `json:"short_inventory,omitempty"`
	RecentTicks    []TickView      `json:"recent_ticks,omitempty"`
}

// TickView is one history entry in the snapshot.
type TickView struct {
	Price       float64 `json:"price"`
	Confidence  float64 `json:"confidence"`
	TimestampMs int64   `json:"timestamp_ms"`
}

// Snapshot aggregates the state of every quoted instrument.
type Snapshot struct {
	Timestamp   time.Time          `json:"timestamp"`
	Instruments []InstrumentStatus `json:"instruments"`
}

// CycleEvent summarizes one quote cycle for an instrument.
type CycleEvent struct {
	Mid            float64 `json:"mid"`
	CancelledBid   bool    `json:"cancelled_bid"`
	CancelledAsk   bool    `json:"cancelled_ask"`
	PlacedBid      bool    `json:"placed_bid"`
	PlacedAsk      bool    `json:"placed_ask"`
	PairedCleanup  bool    `json:"paired_cleanup"`
	InventoryDrift bool    `json:"inventory_drift"`
}

// SnapshotProvider exposes engine state to the server without the server
// depending on the engine package.
type SnapshotProvider interface {
	Snapshot() Snapshot
}

// NewOrderView converts an order into its dashboard shape.
func NewOrderView(o *types.Order) *OrderView {
	if o == nil {
		return nil
	}
	return &OrderView{
		ID:        o.ID,
		Side:      o.Side.String(),
		Price:     o.Price,
		Quantity:  o.Quantity,
		FilledQty: o.FilledQty,
		Status:    string(o.Status),
		Synthetic: o.Synthetic(),
	}
}

// NewInventoryView converts an inventory record into its dashboard shape.
func NewInventoryView(inv *types.Inventory) *InventoryView {
	if inv == nil {
		return nil
	}
	return &InventoryView{
		Direction:  string(inv.Direction),
		Quantity:   inv.Quantity,
		EntryPrice: inv.EntryPrice,
	}
}
