// Package risk decides which live quotes to pull when the market moves away
// from them.
//
// The evaluation is pure: given an instrument's state snapshot and the
// current market projection, it reports which sides should be cancelled and
// whether held inventory has drifted past the deviation threshold. Only
// orders still resting as NEW are cancel candidates — partially filled and
// filled orders are left for reconciliation. The threshold comparison is
// strictly greater-than: a quote sitting exactly at the limit stays.
package risk

import (
	"github.com/aaronyhsoh33/market-maker-bot/internal/pricing"
	"github.com/aaronyhsoh33/market-maker-bot/internal/state"
	"github.com/aaronyhsoh33/market-maker-bot/pkg/types"
)

// Assessment is the outcome of one risk pass over an instrument.
// CloseInventory is surfaced for policy layers; the quoting engine reports
// it but takes no action on it.
type Assessment struct {
	CancelBid      bool
	CancelAsk      bool
	CloseInventory bool
}

// Evaluate runs the deviation checks for one instrument against the current
// projection.
func Evaluate(snap state.Snapshot, proj types.MarketProjection) Assessment {
	return Assessment{
		CancelBid:      orderDeviates(snap.Bid, proj),
		CancelAsk:      orderDeviates(snap.Ask, proj),
		CloseInventory: inventoryDeviates(snap.LongInventory, proj) || inventoryDeviates(snap.ShortInventory, proj),
	}
}

func orderDeviates(o *types.Order, proj types.MarketProjection) bool {
	if o == nil || o.Status != types.StatusNew {
		return false
	}
	return pricing.Deviation(o.Price, proj.Mid) > proj.MaxDeviationAbs
}

func inventoryDeviates(inv *types.Inventory, proj types.MarketProjection) bool {
	if inv == nil {
		return false
	}
	return pricing.Deviation(inv.EntryPrice, proj.Mid) > proj.MaxDeviationAbs
}
