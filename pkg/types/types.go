// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the bot — ticks, orders,
// inventory, instrument configuration, and the wire payloads exchanged with
// the venue. It has no dependencies on internal packages, so it can be
// imported by any layer.
package types

import "strings"

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order. The numeric values match the
// venue's wire encoding: 0 = buy (bid), 1 = sell (ask).
type Side int

const (
	Bid Side = 0
	Ask Side = 1
)

// String returns the human-readable side name used in logs.
func (s Side) String() string {
	if s == Bid {
		return "BID"
	}
	return "ASK"
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// OrderStatus enumerates the order lifecycle states reported by the venue.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusExpired         OrderStatus = "EXPIRED"
)

// Terminal reports whether the status ends the order's life on the book.
// A terminal status frees the order's slot immediately on reconciliation.
func (s OrderStatus) Terminal() bool {
	return s == StatusCanceled || s == StatusExpired
}

// Direction is the sign of an inventory position.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// OrderType enumerates the supported order kinds. The quoting engine only
// ever posts resting limits.
type OrderType string

const (
	OrderTypeLimit OrderType = "LIMIT"
)

// TimeInForce enumerates order expiry policies. Quotes are Good-Till-Date so
// the venue garbage-collects them if the bot dies without cancelling.
type TimeInForce string

const (
	TIFGoodTillDate TimeInForce = "GTD"
)

// ————————————————————————————————————————————————————————————————————————
// Market data
// ————————————————————————————————————————————————————————————————————————

// Tick is one normalized oracle price observation for an instrument.
// The feed overwrites the latest tick per instrument; the cadence loop reads
// the freshest one each cycle.
type Tick struct {
	Instrument  string  // e.g. "BTCUSD"
	Price       float64 // oracle mid price
	Confidence  float64 // oracle confidence interval (absolute)
	TimestampMs int64   // publish time, unix milliseconds
}

// MarketProjection is the per-cycle view of where quotes should sit for one
// instrument. BidTarget/AskTarget split the spread amount across the two
// sides; placement offsets the full spread amount per side. The asymmetry is
// intentional and load-bearing for the cancel threshold.
type MarketProjection struct {
	Instrument      string
	Mid             float64
	BidTarget       float64
	AskTarget       float64
	MaxDeviationAbs float64 // absolute price distance that triggers a cancel
	ComputedMs      int64
}

// ————————————————————————————————————————————————————————————————————————
// Orders and inventory
// ————————————————————————————————————————————————————————————————————————

// SyntheticIDPrefix marks orders synthesized from pre-existing positions
// during warmup. Synthetic orders live only in memory: they are never sent to
// the venue, neither for placement nor for cancellation.
const SyntheticIDPrefix = "position-"

// Order is a live (or synthetic) order tracked in an instrument's slot.
type Order struct {
	ID         string
	Instrument string
	Side       Side
	Price      float64
	Quantity   float64
	FilledQty  float64
	Status     OrderStatus
	CreatedMs  int64
}

// Synthetic reports whether the order was derived from a position at warmup
// rather than placed on the venue.
func (o Order) Synthetic() bool {
	return strings.HasPrefix(o.ID, SyntheticIDPrefix)
}

// Inventory records a pre-existing position observed at warmup. Quantity is
// always positive; Direction carries the sign.
type Inventory struct {
	Instrument string
	Direction  Direction
	Quantity   float64
	EntryPrice float64
	ObservedMs int64
}

// InstrumentConfig is the immutable per-instrument trading configuration,
// assembled once at startup from env config plus the venue product catalog.
type InstrumentConfig struct {
	Instrument      string  // ticker, e.g. "BTCUSD"
	OrderSize       float64 // quote size per side, base units
	SpreadBps       int     // quote offset in basis points
	MaxDeviationPct float64 // cancel threshold as % of mid
	TickSize        float64 // venue price increment
	MinQty          float64 // venue minimum order quantity
	MaxQty          float64 // venue maximum order quantity
	ProductID       string  // venue product identifier
}

// ————————————————————————————————————————————————————————————————————————
// Exchange wire types
// ————————————————————————————————————————————————————————————————————————
// Prices and quantities cross the wire as decimal strings to preserve
// precision; the adapter formats and parses them with shopspring/decimal.

// OrderRequest is the high-level placement request handed to the exchange
// adapter, which signs it and converts it to the REST payload.
type OrderRequest struct {
	ClientOrderID string      // uuid, for idempotent submission
	Instrument    string      // ticker (logging / routing)
	ProductID     string      // venue product identifier
	OrderType     OrderType   // LIMIT
	Quantity      float64     // base units
	Side          Side        // 0 = buy, 1 = sell
	Price         float64     // limit price
	TimeInForce   TimeInForce // GTD
	ExpiresAtSec  int64       // unix seconds; venue expires the order here
}

// OrderAck is the parsed placement response. An empty OrderID means the venue
// did not accept the order; the caller must not track it.
type OrderAck struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// CancelRequest cancels one or more orders for a subaccount in a single call.
type CancelRequest struct {
	OrderIDs   []string `json:"orderIds"`
	Subaccount string   `json:"subaccount"`
}

// CancelResult is the per-order outcome inside a CancelResponse.
type CancelResult struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// CancelResponse is the parsed venue response for a cancel call.
type CancelResponse struct {
	Results []CancelResult `json:"results"`
}

// Position is the raw positions-query row. Quantity is a signed decimal
// string: positive = long, negative = short.
type Position struct {
	ProductID  string `json:"productId"`
	Quantity   string `json:"quantity"`
	EntryPrice string `json:"entryPrice"`
	UpdatedAt  int64  `json:"updatedAt"`
}

// Product is a catalog entry describing one listed perpetual.
type Product struct {
	ID       string `json:"id"`
	Ticker   string `json:"ticker"`
	TickSize string `json:"tickSize"`
	MinQty   string `json:"minQuantity"`
	MaxQty   string `json:"maxQuantity"`
}

// ————————————————————————————————————————————————————————————————————————
// Event stream payloads
// ————————————————————————————————————————————————————————————————————————

// OrderStatusEvent is an order lifecycle transition from the venue's event
// stream. Status events are authoritative for reconciliation.
type OrderStatusEvent struct {
	ID          string      `json:"id"`
	Status      OrderStatus `json:"status"`
	Instrument  string      `json:"ticker"`
	FilledQty   float64     `json:"filledQuantity"`
	TimestampMs int64       `json:"timestamp"`
}

// FillEvent is an execution notification. Fills are informational; the
// engine treats status events as the source of truth.
type FillEvent struct {
	OrderID     string  `json:"orderId"`
	Instrument  string  `json:"ticker"`
	Side        Side    `json:"side"`
	Price       float64 `json:"price,string"`
	Quantity    float64 `json:"quantity,string"`
	TimestampMs int64   `json:"timestamp"`
}
