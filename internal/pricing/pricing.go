// Package pricing holds the pure quote arithmetic: basis-point spreads,
// tick-size rounding, and deviation thresholds.
//
// Two spread conventions coexist and must not be unified:
//
//   - Placement targets offset the FULL spread amount on each side:
//     bid = mid − mid·bp, ask = mid + mid·bp.
//   - The risk projection splits the spread amount across the sides:
//     bid = mid − mid·bp/2, ask = mid + mid·bp/2.
//
// The cancel threshold does not depend on either form: it is a percentage
// of mid (MaxDeviationAbs).
package pricing

import (
	"math"

	"github.com/aaronyhsoh33/market-maker-bot/pkg/types"
)

// BpToDecimal converts basis points to a decimal fraction. 100 bp = 1%.
func BpToDecimal(bp float64) float64 {
	return bp / 10_000
}

// BidTarget returns the placement price for the bid side: the full
// spread-fraction below mid.
func BidTarget(mid float64, spreadBps int) float64 {
	return mid - mid*BpToDecimal(float64(spreadBps))
}

// AskTarget returns the placement price for the ask side: the full
// spread-fraction above mid.
func AskTarget(mid float64, spreadBps int) float64 {
	return mid + mid*BpToDecimal(float64(spreadBps))
}

// RoundToTick snaps a price to the nearest multiple of the venue tick size,
// half away from zero. A non-positive tick returns the price unchanged.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}

// MaxDeviationAbs converts a percentage threshold into an absolute price
// distance at the given reference price.
func MaxDeviationAbs(price, pct float64) float64 {
	return price * pct / 100
}

// Deviation returns the absolute distance between two prices.
func Deviation(a, b float64) float64 {
	return math.Abs(a - b)
}

// Project builds the per-cycle market projection for an instrument. The
// projection's bid/ask targets use the half-spread form and are not used for
// placement; the risk pass reads only Mid and MaxDeviationAbs.
func Project(instrument string, mid float64, spreadBps int, maxDevPct float64, nowMs int64) types.MarketProjection {
	spreadAmount := mid * BpToDecimal(float64(spreadBps))
	return types.MarketProjection{
		Instrument:      instrument,
		Mid:             mid,
		BidTarget:       mid - spreadAmount/2,
		AskTarget:       mid + spreadAmount/2,
		MaxDeviationAbs: MaxDeviationAbs(mid, maxDevPct),
		ComputedMs:      nowMs,
	}
}
