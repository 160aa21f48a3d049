package domain

import "time"

// PositionSide is the direction of a leveraged hedge.
type PositionSide string

const (
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
)

// PositionStatus tracks the lifecycle of a hedge position. A position moves
// ACTIVE -> CLOSED or ACTIVE -> LIQUIDATED exactly once; PnL fields are only
// mutated while ACTIVE.
type PositionStatus string

const (
	StatusPending    PositionStatus = "PENDING"
	StatusActive     PositionStatus = "ACTIVE"
	StatusClosed     PositionStatus = "CLOSED"
	StatusLiquidated PositionStatus = "LIQUIDATED"
	StatusCancelled  PositionStatus = "CANCELLED"
)

// Position represents a leveraged hedge position. NotionalValue is the
// quote-currency exposure; NotionalValue / Leverage is the capital at risk
// used in all PnL math. The equality notional = size * entry is not enforced
// at write time.
type Position struct {
	OrderID          string
	Asset            string
	Side             PositionSide
	Size             float64
	NotionalValue    float64
	Leverage         float64
	EntryPrice       float64
	LiquidationPrice *float64
	Status           PositionStatus
	CurrentPnL       float64
	RealizedPnL      float64

	// Wallet is the address the position is reported under. When the
	// position was opened through a proxy, Wallet holds the proxy address
	// and the true owner is recoverable only via OwnerBindingHash.
	Wallet           string
	OwnerBindingHash *string
	OwnerCommitment  *string

	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
}

// IsOpen reports whether the position is still accruing unrealized PnL.
func (p *Position) IsOpen() bool {
	return p.Status == StatusActive
}

// CapitalUsed returns the margin at risk for the position.
func (p *Position) CapitalUsed() float64 {
	if p.Leverage <= 0 {
		return 0
	}
	return p.NotionalValue / p.Leverage
}
