// Package pnl computes unrealized profit/loss for leveraged hedge positions.
// Calculate is a pure function with no storage or network access so malformed
// rows degrade to a neutral result instead of an error.
package pnl

import (
	"math"

	"github.com/alanyoungcy/hedgecore/internal/domain"
)

// liquidationProximity is the relative distance to the liquidation price
// below which a position is flagged as near liquidation.
const liquidationProximity = 0.10

// Result holds the outcome of a single PnL computation.
type Result struct {
	UnrealizedPnL     float64
	PnLPercentage     float64
	CapitalUsed       float64
	CurrentPrice      float64
	IsNearLiquidation bool
}

// Calculate maps (position, current price) to unrealized PnL, percentage
// return on margin, and liquidation proximity.
//
// LONG return is (current-entry)/entry, SHORT is (entry-current)/entry;
// unrealized PnL is notional * return * leverage. A zero or negative entry
// price short-circuits to a neutral result: PnL display must stay available
// for malformed historical rows.
func Calculate(p domain.Position, currentPrice float64) Result {
	res := Result{
		CurrentPrice: currentPrice,
		CapitalUsed:  p.CapitalUsed(),
	}

	if p.EntryPrice <= 0 || p.Leverage <= 0 {
		return res
	}

	var directional float64
	switch p.Side {
	case domain.SideShort:
		directional = (p.EntryPrice - currentPrice) / p.EntryPrice
	default:
		directional = (currentPrice - p.EntryPrice) / p.EntryPrice
	}

	res.UnrealizedPnL = p.NotionalValue * directional * p.Leverage
	res.PnLPercentage = directional * p.Leverage * 100

	if p.LiquidationPrice != nil && *p.LiquidationPrice > 0 {
		dist := math.Abs(currentPrice-*p.LiquidationPrice) / *p.LiquidationPrice
		res.IsNearLiquidation = dist < liquidationProximity
	}

	return res
}
