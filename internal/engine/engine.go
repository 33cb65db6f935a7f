// Package engine is the quoting orchestrator.
//
// It wires together all subsystems:
//
//  1. The oracle feed pushes normalized ticks into the PriceBook.
//  2. A timer fires every refresh cycle; for each instrument with a tick in
//     the PriceBook the engine runs the risk pass (deviation cancels), the placement
//     pass (re-quote empty sides), and paired-fill cleanup.
//  3. The venue event stream reports order status transitions, which are
//     reconciled into per-instrument state as they arrive.
//  4. On shutdown every live venue order is cancelled in a single bulk call.
//
// Concurrency contract: the cadence loop owns placements and cancels; event
// callbacks only mutate in-memory state. Placement is single-flight per
// instrument, cancellation single-flight per side. Position warmup runs once
// before any quoting starts.
//
// Lifecycle: New() → Start() → [runs until signal] → Stop()
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aaronyhsoh33/market-maker-bot/internal/api"
	"github.com/aaronyhsoh33/market-maker-bot/internal/config"
	"github.com/aaronyhsoh33/market-maker-bot/internal/market"
	"github.com/aaronyhsoh33/market-maker-bot/internal/metrics"
	"github.com/aaronyhsoh33/market-maker-bot/internal/pricing"
	"github.com/aaronyhsoh33/market-maker-bot/internal/risk"
	"github.com/aaronyhsoh33/market-maker-bot/internal/state"
	"github.com/aaronyhsoh33/market-maker-bot/pkg/types"
)

// orderTTL is the GTD expiry attached to every quote. The venue expires
// stale quotes on its own if the bot dies without cancelling them.
const orderTTL = 5 * time.Minute

// ExchangeAdapter is the order-management surface the engine needs from the
// venue.
type ExchangeAdapter interface {
	PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.OrderAck, error)
	CancelOrders(ctx context.Context, req types.CancelRequest) (*types.CancelResponse, error)
	Positions(ctx context.Context, subaccountID string, productIDs []string) ([]types.Position, error)
}

// OracleFeed is the streaming price source.
type OracleFeed interface {
	Run(ctx context.Context) error
	Subscribe(instruments []string) error
	Ticks() <-chan types.Tick
	Close() error
}

// EventStream delivers order lifecycle events for a subaccount.
type EventStream interface {
	Run(ctx context.Context) error
	SubscribeOrderUpdates(subaccountID string) error
	SubscribeOrderFills(subaccountID string) error
	OrderUpdates() <-chan types.OrderStatusEvent
	Fills() <-chan types.FillEvent
	Close() error
}

// Engine runs the quoting state machine across all configured instruments.
type Engine struct {
	cfg         config.Config
	instruments map[string]types.InstrumentConfig // ticker → config

	client ExchangeAdapter
	oracle OracleFeed
	events EventStream

	book    *market.PriceBook
	history *market.History
	states  *state.Registry
	metrics *metrics.Set

	// streamEvents feeds the observability server. Nil when disabled.
	streamEvents chan api.StreamEvent

	// now is stubbed in tests.
	now func() time.Time

	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires an engine from its collaborators. instruments must be fully
// resolved (catalog fields included) before construction; the table is
// immutable afterwards.
func New(
	cfg config.Config,
	instruments map[string]types.InstrumentConfig,
	client ExchangeAdapter,
	oracle OracleFeed,
	events EventStream,
	m *metrics.Set,
	logger *slog.Logger,
) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	var streamEvents chan api.StreamEvent
	if cfg.Dashboard.Enabled {
		streamEvents = make(chan api.StreamEvent, 100)
	}

	return &Engine{
		cfg:          cfg,
		instruments:  instruments,
		client:       client,
		oracle:       oracle,
		events:       events,
		book:         market.NewPriceBook(),
		history:      market.NewHistory(),
		states:       state.NewRegistry(),
		metrics:      m,
		streamEvents: streamEvents,
		now:          time.Now,
		logger:       logger.With("component", "engine"),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// StreamEvents returns the observability event channel (may be nil).
func (e *Engine) StreamEvents() <-chan api.StreamEvent {
	return e.streamEvents
}

// Start warms up positions, subscribes the feeds, and launches the cadence
// loop. An error here is a boot failure; the process should exit.
func (e *Engine) Start() error {
	warmupCtx, warmupCancel := context.WithTimeout(e.ctx, e.cfg.Exchange.Timeout)
	defer warmupCancel()
	if err := e.warmupPositions(warmupCtx); err != nil {
		return err
	}

	if err := e.events.SubscribeOrderUpdates(e.cfg.Exchange.SubaccountID); err != nil {
		return err
	}
	if err := e.events.SubscribeOrderFills(e.cfg.Exchange.SubaccountID); err != nil {
		return err
	}

	tickers := make([]string, 0, len(e.instruments))
	for sym := range e.instruments {
		tickers = append(tickers, sym)
	}
	sort.Strings(tickers)
	if err := e.oracle.Subscribe(tickers); err != nil {
		return err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.oracle.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("oracle feed error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.events.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("event stream error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.consumeTicks()
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.consumeEvents()
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runLoop()
	}()

	e.logger.Info("engine started",
		"instruments", len(e.instruments),
		"refresh_cycle", e.cfg.RefreshCycle,
	)
	return nil
}

// Stop shuts the engine down cleanly: the cadence timer stops first so no
// new placements start, every in-flight lock is force-cleared so pending
// reconciliation is never blocked, then all live venue orders are cancelled
// in one bulk call before the feeds disconnect.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")

	e.cancel()

	e.states.ResetAllLocks()

	live := e.states.LiveOrders()
	if len(live) > 0 {
		if e.cfg.Exchange.Subaccount == "" {
			e.logger.Error("no subaccount configured, skipping shutdown cancel", "orders", len(live))
		} else {
			ids := make([]string, len(live))
			for i, o := range live {
				ids[i] = o.ID
			}

			cancelCtx, cancelCancel := context.WithTimeout(context.Background(), e.cfg.Exchange.Timeout)
			if _, err := e.client.CancelOrders(cancelCtx, types.CancelRequest{
				OrderIDs:   ids,
				Subaccount: e.cfg.Exchange.Subaccount,
			}); err != nil {
				e.logger.Error("shutdown cancel failed", "error", err, "orders", len(ids))
			} else {
				e.logger.Info("shutdown cancel submitted", "orders", len(ids))
			}
			cancelCancel()
		}
	}

	e.states.ClearAll()

	e.oracle.Close()
	e.events.Close()

	e.wg.Wait()

	if e.streamEvents != nil {
		close(e.streamEvents)
	}

	e.logger.Info("shutdown complete")
}

// warmupPositions queries existing positions and seeds per-instrument state:
// each nonzero position becomes an inventory record plus a synthetic Filled
// order on the matching side, so quoting accounts for exposure the bot did
// not create this session.
func (e *Engine) warmupPositions(ctx context.Context) error {
	productIDs := make([]string, 0, len(e.instruments))
	tickerByProduct := make(map[string]string, len(e.instruments))
	for sym, ic := range e.instruments {
		productIDs = append(productIDs, ic.ProductID)
		tickerByProduct[ic.ProductID] = sym
	}
	sort.Strings(productIDs)

	positions, err := e.client.Positions(ctx, e.cfg.Exchange.SubaccountID, productIDs)
	if err != nil {
		return err
	}

	nowMs := e.now().UnixMilli()
	for _, p := range positions {
		qty, entry, err := parseSignedPosition(p)
		if err != nil {
			e.logger.Error("skipping unparsable position", "product", p.ProductID, "error", err)
			continue
		}
		if qty == 0 {
			continue
		}

		ticker, ok := tickerByProduct[p.ProductID]
		if !ok {
			e.logger.Warn("position for unconfigured product", "product", p.ProductID)
			continue
		}

		side := types.Bid
		direction := types.Long
		idSide := "bid"
		if qty < 0 {
			side = types.Ask
			direction = types.Short
			idSide = "ask"
			qty = -qty
		}

		st := e.states.Get(ticker)
		st.SetInventory(types.Inventory{
			Instrument: ticker,
			Direction:  direction,
			Quantity:   qty,
			EntryPrice: entry,
			ObservedMs: nowMs,
		})

		synthetic := types.Order{
			ID:         types.SyntheticIDPrefix + idSide + "-" + p.ProductID,
			Instrument: ticker,
			Side:       side,
			Price:      entry,
			Quantity:   qty,
			FilledQty:  qty,
			Status:     types.StatusFilled,
			CreatedMs:  nowMs,
		}
		if err := st.InstallPlaced(side, synthetic); err != nil {
			e.logger.Error("install synthetic order", "instrument", ticker, "error", err)
			continue
		}

		e.logger.Info("position warmed up",
			"instrument", ticker,
			"direction", direction,
			"quantity", qty,
			"entry_price", entry,
		)
	}

	return nil
}

// consumeTicks applies oracle ticks to the price book as they arrive.
func (e *Engine) consumeTicks() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case t := <-e.oracle.Ticks():
			e.book.Upsert(t)
			e.metrics.TicksApplied.WithLabelValues(t.Instrument).Inc()
			e.metrics.LastMid.WithLabelValues(t.Instrument).Set(t.Price)
		}
	}
}

// consumeEvents applies order status events to instrument state. Fills are
// informational; status events are authoritative.
func (e *Engine) consumeEvents() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case evt := <-e.events.OrderUpdates():
			e.reconcile(evt)
		case fill := <-e.events.Fills():
			e.logger.Debug("fill",
				"order", fill.OrderID,
				"instrument", fill.Instrument,
				"side", fill.Side,
				"price", fill.Price,
				"quantity", fill.Quantity,
			)
		}
	}
}

// reconcile locates the slot holding the event's order and applies the
// transition. Order ids are globally unique, so the first match wins.
func (e *Engine) reconcile(evt types.OrderStatusEvent) {
	applied := false
	e.states.Each(func(s *state.Instrument) {
		if applied {
			return
		}
		if s.ApplyStatus(evt.ID, evt.Status, evt.FilledQty) {
			applied = true
			e.metrics.ReconcileEvents.WithLabelValues(string(evt.Status)).Inc()
			e.logger.Info("order status applied",
				"instrument", s.Symbol(),
				"order", evt.ID,
				"status", evt.Status,
			)
		}
	})

	if !applied {
		e.logger.Debug("status event for unknown order", "order", evt.ID, "status", evt.Status)
		return
	}

	e.metrics.LiveOrders.Set(float64(len(e.states.LiveOrders())))
}

// runLoop fires the quote cycle on the configured cadence.
func (e *Engine) runLoop() {
	ticker := time.NewTicker(e.cfg.RefreshCycle)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.runCycle(e.ctx)
		}
	}
}

// runCycle processes every instrument that has a tick. Instruments with no
// tick in the price book yet are skipped entirely; the age of the latest
// tick is not checked here.
func (e *Engine) runCycle(ctx context.Context) {
	symbols := make([]string, 0, len(e.instruments))
	for sym := range e.instruments {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		if ctx.Err() != nil {
			return
		}
		ic := e.instruments[sym]
		tick, ok := e.book.Latest(sym)
		if !ok {
			continue
		}
		e.history.Push(tick)

		proj := pricing.Project(sym, tick.Price, ic.SpreadBps, ic.MaxDeviationPct, e.now().UnixMilli())
		e.quoteCycle(ctx, ic, proj)
	}
}

// quoteCycle runs one instrument through the risk pass, the placement pass,
// and paired-fill cleanup. The risk pass goes first so a cancelled slot can
// be requoted within the same cycle; placement re-reads slot state at entry
// and does not depend on cancel completion.
func (e *Engine) quoteCycle(ctx context.Context, ic types.InstrumentConfig, proj types.MarketProjection) {
	st := e.states.Get(ic.Instrument)

	assessment := risk.Evaluate(st.Snapshot(), proj)
	if assessment.CloseInventory {
		// Reported for operators; no automatic inventory close.
		e.logger.Warn("inventory beyond deviation threshold",
			"instrument", ic.Instrument,
			"mid", proj.Mid,
		)
	}

	evt := api.CycleEvent{Mid: proj.Mid, InventoryDrift: assessment.CloseInventory}

	if assessment.CancelBid {
		evt.CancelledBid = e.cancelSide(ctx, st, types.Bid, proj)
	}
	if assessment.CancelAsk {
		evt.CancelledAsk = e.cancelSide(ctx, st, types.Ask, proj)
	}

	evt.PlacedBid, evt.PlacedAsk = e.placeMissing(ctx, st, ic, proj.Mid)

	if st.PairedFillCleanup() {
		evt.PairedCleanup = true
		e.logger.Info("paired fill cleanup", "instrument", ic.Instrument)
	}

	e.metrics.LiveOrders.Set(float64(len(e.states.LiveOrders())))
	e.emitStreamEvent(api.StreamEvent{
		Type:       "cycle",
		Timestamp:  e.now(),
		Instrument: ic.Instrument,
		Data:       evt,
	})
}

// cancelSide pulls one deviated quote. The side lock makes the cancel
// single-flight; a held lock means a previous cycle's cancel is still in
// flight and this one is skipped.
func (e *Engine) cancelSide(ctx context.Context, st *state.Instrument, side types.Side, proj types.MarketProjection) bool {
	ord, ok := st.Order(side)
	if !ok || ord.Synthetic() {
		return false
	}

	if !st.TryBeginCancel(side) {
		e.logger.Debug("cancel already in flight, skipping",
			"instrument", st.Symbol(),
			"side", side,
			"order", ord.ID,
		)
		return false
	}
	defer st.EndCancel(side)

	e.metrics.CancelsIssued.WithLabelValues(st.Symbol(), side.String()).Inc()
	e.logger.Info("cancelling deviated quote",
		"instrument", st.Symbol(),
		"side", side,
		"order", ord.ID,
		"price", ord.Price,
		"mid", proj.Mid,
	)

	_, err := e.client.CancelOrders(ctx, types.CancelRequest{
		OrderIDs:   []string{ord.ID},
		Subaccount: e.cfg.Exchange.Subaccount,
	})
	if err != nil {
		// Leave the slot occupied; the terminal status event will clear it.
		e.metrics.CancelsFailed.WithLabelValues(st.Symbol(), side.String()).Inc()
		e.logger.Error("cancel failed",
			"instrument", st.Symbol(),
			"side", side,
			"order", ord.ID,
			"error", err,
		)
		return false
	}

	st.Clear(side)
	return true
}

// placeMissing quotes any empty side. The instrument-wide placement lock
// keeps at most one placement round in flight per instrument.
func (e *Engine) placeMissing(ctx context.Context, st *state.Instrument, ic types.InstrumentConfig, mid float64) (placedBid, placedAsk bool) {
	if !st.TryBeginPlacing() {
		e.logger.Debug("placement already in flight, skipping", "instrument", ic.Instrument)
		return false, false
	}
	defer st.EndPlacing()

	if _, occupied := st.Order(types.Bid); !occupied {
		price := pricing.RoundToTick(pricing.BidTarget(mid, ic.SpreadBps), ic.TickSize)
		placedBid = e.placeOrder(ctx, st, ic, types.Bid, price)
	}
	if _, occupied := st.Order(types.Ask); !occupied {
		price := pricing.RoundToTick(pricing.AskTarget(mid, ic.SpreadBps), ic.TickSize)
		placedAsk = e.placeOrder(ctx, st, ic, types.Ask, price)
	}
	return placedBid, placedAsk
}

// placeOrder submits one limit quote and installs it on success. A response
// without an order id is a rejection: nothing is installed and the next
// cycle retries.
func (e *Engine) placeOrder(ctx context.Context, st *state.Instrument, ic types.InstrumentConfig, side types.Side, price float64) bool {
	if ic.MinQty > 0 && ic.OrderSize < ic.MinQty {
		e.logger.Warn("order size below venue minimum, not quoting",
			"instrument", ic.Instrument,
			"order_size", ic.OrderSize,
			"min_qty", ic.MinQty,
		)
		return false
	}

	req := types.OrderRequest{
		ClientOrderID: uuid.NewString(),
		Instrument:    ic.Instrument,
		ProductID:     ic.ProductID,
		OrderType:     types.OrderTypeLimit,
		Quantity:      ic.OrderSize,
		Side:          side,
		Price:         price,
		TimeInForce:   types.TIFGoodTillDate,
		ExpiresAtSec:  e.now().Add(orderTTL).Unix(),
	}

	ack, err := e.client.PlaceOrder(ctx, req)
	if err != nil {
		e.metrics.OrdersRejected.WithLabelValues(ic.Instrument, side.String()).Inc()
		e.logger.Error("placement failed",
			"instrument", ic.Instrument,
			"side", side,
			"price", price,
			"error", err,
		)
		return false
	}
	if ack == nil || ack.OrderID == "" {
		e.metrics.OrdersRejected.WithLabelValues(ic.Instrument, side.String()).Inc()
		e.logger.Warn("placement returned no order id",
			"instrument", ic.Instrument,
			"side", side,
			"price", price,
		)
		return false
	}

	order := types.Order{
		ID:         ack.OrderID,
		Instrument: ic.Instrument,
		Side:       side,
		Price:      price,
		Quantity:   ic.OrderSize,
		Status:     types.StatusNew,
		CreatedMs:  e.now().UnixMilli(),
	}
	if err := st.InstallPlaced(side, order); err != nil {
		e.logger.Error("install placed order", "instrument", ic.Instrument, "error", err)
		return false
	}

	e.metrics.OrdersPlaced.WithLabelValues(ic.Instrument, side.String()).Inc()
	e.logger.Info("order placed",
		"instrument", ic.Instrument,
		"side", side,
		"order", ack.OrderID,
		"price", price,
		"quantity", ic.OrderSize,
	)
	return true
}

// Snapshot implements api.SnapshotProvider.
func (e *Engine) Snapshot() api.Snapshot {
	symbols := make([]string, 0, len(e.instruments))
	for sym := range e.instruments {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	now := e.now()
	snap := api.Snapshot{Timestamp: now, Instruments: make([]api.InstrumentStatus, 0, len(symbols))}

	for _, sym := range symbols {
		status := api.InstrumentStatus{Instrument: sym}

		if tick, ok := e.book.Latest(sym); ok {
			status.Mid = tick.Price
			status.TickAgeMs = now.UnixMilli() - tick.TimestampMs
		}

		st := e.states.Get(sym).Snapshot()
		status.Bid = api.NewOrderView(st.Bid)
		status.Ask = api.NewOrderView(st.Ask)
		status.LongInventory = api.NewInventoryView(st.LongInventory)
		status.ShortInventory = api.NewInventoryView(st.ShortInventory)

		for _, t := range e.history.Tail(sym, 20) {
			status.RecentTicks = append(status.RecentTicks, api.TickView{
				Price:       t.Price,
				Confidence:  t.Confidence,
				TimestampMs: t.TimestampMs,
			})
		}

		snap.Instruments = append(snap.Instruments, status)
	}

	return snap
}

// emitStreamEvent forwards an event to the observability server without
// blocking the cadence loop.
func (e *Engine) emitStreamEvent(evt api.StreamEvent) {
	if e.streamEvents == nil {
		return
	}
	select {
	case e.streamEvents <- evt:
	default:
		// Dashboard can't keep up, drop event
	}
}

// parseSignedPosition parses a position row's decimal strings. Positive
// quantity = long, negative = short.
func parseSignedPosition(p types.Position) (qty, entry float64, err error) {
	q, err := decimal.NewFromString(p.Quantity)
	if err != nil {
		return 0, 0, err
	}
	ep, err := decimal.NewFromString(p.EntryPrice)
	if err != nil {
		return 0, 0, err
	}
	qty, _ = q.Float64()
	entry, _ = ep.Float64()
	return qty, entry, nil
}
