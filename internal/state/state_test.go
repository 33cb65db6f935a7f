package state

import (
	"testing"

	"github.com/aaronyhsoh33/market-maker-bot/pkg/types"
)

func bidOrder(id string, status types.OrderStatus) types.Order {
	return types.Order{ID: id, Instrument: "BTCUSD", Side: types.Bid, Price: 49_950, Quantity: 0.001, Status: status}
}

func askOrder(id string, status types.OrderStatus) types.Order {
	return types.Order{ID: id, Instrument: "BTCUSD", Side: types.Ask, Price: 50_050, Quantity: 0.001, Status: status}
}

func TestInstallPlacedOccupiesSlot(t *testing.T) {
	t.Parallel()
	s := newInstrument("BTCUSD")

	if err := s.InstallPlaced(types.Bid, bidOrder("b1", types.StatusNew)); err != nil {
		t.Fatalf("install: %v", err)
	}

	ord, ok := s.Order(types.Bid)
	if !ok || ord.ID != "b1" {
		t.Fatalf("bid slot = %+v ok=%v, want b1", ord, ok)
	}

	// Occupied slot rejects a second install.
	if err := s.InstallPlaced(types.Bid, bidOrder("b2", types.StatusNew)); err == nil {
		t.Error("expected error installing into occupied slot")
	}
}

func TestInstallPlacedSideMismatch(t *testing.T) {
	t.Parallel()
	s := newInstrument("BTCUSD")

	if err := s.InstallPlaced(types.Ask, bidOrder("b1", types.StatusNew)); err == nil {
		t.Error("expected error installing bid order into ask slot")
	}
}

func TestApplyStatusTerminalClearsSlot(t *testing.T) {
	t.Parallel()

	for _, status := range []types.OrderStatus{types.StatusCanceled, types.StatusExpired} {
		s := newInstrument("BTCUSD")
		s.InstallPlaced(types.Bid, bidOrder("b1", types.StatusNew))

		if !s.ApplyStatus("b1", status, 0) {
			t.Fatalf("ApplyStatus(%s) did not find the order", status)
		}
		if _, ok := s.Order(types.Bid); ok {
			t.Errorf("slot should be empty after %s", status)
		}
	}
}

func TestApplyStatusUpdatesInPlace(t *testing.T) {
	t.Parallel()
	s := newInstrument("BTCUSD")
	s.InstallPlaced(types.Ask, askOrder("a1", types.StatusNew))

	if !s.ApplyStatus("a1", types.StatusPartiallyFilled, 0.0004) {
		t.Fatal("ApplyStatus did not find the order")
	}

	ord, _ := s.Order(types.Ask)
	if ord.Status != types.StatusPartiallyFilled || ord.FilledQty != 0.0004 {
		t.Errorf("order = %+v, want partially filled 0.0004", ord)
	}
}

func TestApplyStatusIdempotent(t *testing.T) {
	t.Parallel()
	s := newInstrument("BTCUSD")
	s.InstallPlaced(types.Bid, bidOrder("b1", types.StatusNew))

	s.ApplyStatus("b1", types.StatusNew, 0)
	first, _ := s.Order(types.Bid)
	s.ApplyStatus("b1", types.StatusNew, 0)
	second, _ := s.Order(types.Bid)

	if first != second {
		t.Errorf("repeated identical ApplyStatus changed state: %+v vs %+v", first, second)
	}
}

func TestApplyStatusUnknownOrder(t *testing.T) {
	t.Parallel()
	s := newInstrument("BTCUSD")
	s.InstallPlaced(types.Bid, bidOrder("b1", types.StatusNew))

	if s.ApplyStatus("nope", types.StatusCanceled, 0) {
		t.Error("unknown id should not match")
	}
	if _, ok := s.Order(types.Bid); !ok {
		t.Error("existing order must be untouched")
	}
}

func TestPairedFillCleanup(t *testing.T) {
	t.Parallel()
	s := newInstrument("BTCUSD")
	s.InstallPlaced(types.Bid, bidOrder("b1", types.StatusFilled))
	s.InstallPlaced(types.Ask, askOrder("a1", types.StatusFilled))

	if !s.PairedFillCleanup() {
		t.Fatal("expected cleanup with both sides filled")
	}
	if _, ok := s.Order(types.Bid); ok {
		t.Error("bid slot should be cleared")
	}
	if _, ok := s.Order(types.Ask); ok {
		t.Error("ask slot should be cleared")
	}
}

func TestPairedFillCleanupRequiresBothFilled(t *testing.T) {
	t.Parallel()

	s := newInstrument("BTCUSD")
	s.InstallPlaced(types.Bid, bidOrder("b1", types.StatusFilled))
	s.InstallPlaced(types.Ask, askOrder("a1", types.StatusNew))
	if s.PairedFillCleanup() {
		t.Error("cleanup must not fire with one side still NEW")
	}

	s2 := newInstrument("BTCUSD")
	s2.InstallPlaced(types.Bid, bidOrder("b1", types.StatusFilled))
	if s2.PairedFillCleanup() {
		t.Error("cleanup must not fire with an empty ask slot")
	}
}

func TestPairedFillCleanupDropsSyntheticOrders(t *testing.T) {
	t.Parallel()
	s := newInstrument("BTCUSD")

	synthetic := types.Order{
		ID:     types.SyntheticIDPrefix + "bid-prod-1",
		Side:   types.Bid,
		Price:  45_000,
		Status: types.StatusFilled,
	}
	s.InstallPlaced(types.Bid, synthetic)
	s.InstallPlaced(types.Ask, askOrder("a1", types.StatusFilled))

	if !s.PairedFillCleanup() {
		t.Fatal("cleanup should treat a synthetic filled order like any other")
	}
	if _, ok := s.Order(types.Bid); ok {
		t.Error("synthetic bid should be released, re-enabling quoting on that side")
	}
}

func TestPlacingLockSingleFlight(t *testing.T) {
	t.Parallel()
	s := newInstrument("BTCUSD")

	if !s.TryBeginPlacing() {
		t.Fatal("first acquire should succeed")
	}
	if s.TryBeginPlacing() {
		t.Fatal("second acquire while held should fail")
	}
	s.EndPlacing()
	if !s.TryBeginPlacing() {
		t.Fatal("acquire after release should succeed")
	}
}

func TestCancelLocksPerSide(t *testing.T) {
	t.Parallel()
	s := newInstrument("BTCUSD")

	if !s.TryBeginCancel(types.Bid) {
		t.Fatal("bid cancel acquire should succeed")
	}
	if s.TryBeginCancel(types.Bid) {
		t.Fatal("bid cancel is held")
	}
	if !s.TryBeginCancel(types.Ask) {
		t.Fatal("ask cancel lock is independent of bid")
	}
	s.EndCancel(types.Bid)
	if !s.TryBeginCancel(types.Bid) {
		t.Fatal("bid cancel acquire after release should succeed")
	}
}

func TestResetLocks(t *testing.T) {
	t.Parallel()
	s := newInstrument("BTCUSD")

	s.TryBeginPlacing()
	s.TryBeginCancel(types.Bid)
	s.TryBeginCancel(types.Ask)

	s.ResetLocks()

	if !s.TryBeginPlacing() || !s.TryBeginCancel(types.Bid) || !s.TryBeginCancel(types.Ask) {
		t.Error("all locks should be free after ResetLocks")
	}
}

func TestSetInventoryByDirection(t *testing.T) {
	t.Parallel()
	s := newInstrument("BTCUSD")

	s.SetInventory(types.Inventory{Instrument: "BTCUSD", Direction: types.Long, Quantity: 0.005, EntryPrice: 45_000})
	s.SetInventory(types.Inventory{Instrument: "BTCUSD", Direction: types.Short, Quantity: 0.002, EntryPrice: 58_000})

	snap := s.Snapshot()
	if snap.LongInventory == nil || snap.LongInventory.Quantity != 0.005 {
		t.Errorf("long inventory = %+v", snap.LongInventory)
	}
	if snap.ShortInventory == nil || snap.ShortInventory.Quantity != 0.002 {
		t.Errorf("short inventory = %+v", snap.ShortInventory)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()
	s := newInstrument("BTCUSD")
	s.InstallPlaced(types.Bid, bidOrder("b1", types.StatusNew))

	snap := s.Snapshot()
	snap.Bid.Status = types.StatusFilled

	ord, _ := s.Order(types.Bid)
	if ord.Status != types.StatusNew {
		t.Error("mutating a snapshot must not affect live state")
	}
}

func TestRegistryLazyCreate(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	a := r.Get("BTCUSD")
	b := r.Get("BTCUSD")
	if a != b {
		t.Error("Get should return the same instance per symbol")
	}

	count := 0
	r.Each(func(*Instrument) { count++ })
	if count != 1 {
		t.Errorf("registry has %d instruments, want 1", count)
	}
}

func TestRegistryLiveOrdersSkipsSyntheticAndTerminalBound(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	btc := r.Get("BTCUSD")
	btc.InstallPlaced(types.Bid, bidOrder("b1", types.StatusNew))
	btc.InstallPlaced(types.Ask, askOrder("a1", ""))

	eth := r.Get("ETHUSD")
	eth.InstallPlaced(types.Ask, types.Order{
		ID:     types.SyntheticIDPrefix + "ask-prod-2",
		Side:   types.Ask,
		Status: types.StatusFilled,
	})

	sol := r.Get("SOLUSD")
	sol.InstallPlaced(types.Bid, bidOrder("b2", types.StatusFilled))

	live := r.LiveOrders()
	if len(live) != 2 {
		t.Fatalf("live orders = %d, want 2 (b1 and a1)", len(live))
	}
	ids := map[string]bool{live[0].ID: true, live[1].ID: true}
	if !ids["b1"] || !ids["a1"] {
		t.Errorf("live order ids = %v, want b1 and a1", ids)
	}
}

func TestRegistryClearAll(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	r.Get("BTCUSD").InstallPlaced(types.Bid, bidOrder("b1", types.StatusNew))
	r.Get("ETHUSD").InstallPlaced(types.Ask, askOrder("a1", types.StatusNew))

	r.ClearAll()

	if len(r.LiveOrders()) != 0 {
		t.Error("expected no live orders after ClearAll")
	}
}
