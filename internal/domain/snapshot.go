package domain

import "time"

// AssetBalance is one per-asset wallet balance recorded inside a snapshot.
type AssetBalance struct {
	Asset    string  `json:"asset"`
	Amount   float64 `json:"amount"`
	ValueUSD float64 `json:"value_usd"`
}

// HedgeSummary is the typed open-hedge breakdown stored with a snapshot.
// The core only ever manipulates this struct; serialization to JSON happens
// in the storage adapter.
type HedgeSummary struct {
	OpenCount     int     `json:"open_count"`
	TotalNotional float64 `json:"total_notional"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	LongNotional  float64 `json:"long_notional"`
	ShortNotional float64 `json:"short_notional"`
}

// PortfolioSnapshot is an immutable point-in-time record of a wallet's
// portfolio. Snapshots are append-only; this core never updates or deletes
// them.
type PortfolioSnapshot struct {
	ID             string
	Wallet         string
	SnapshotTime   time.Time
	TotalValue     float64
	PositionsValue float64
	HedgesValue    float64
	UnrealizedPnL  float64
	RealizedPnL    float64
	Balances       []AssetBalance
	Hedges         *HedgeSummary
	BlockNumber    *int64
}

// PortfolioMetrics is the cached aggregate row for a wallet, re-derived from
// the full snapshot history on every accepted snapshot and upserted whole.
type PortfolioMetrics struct {
	Wallet        string
	CurrentValue  float64
	InitialValue  float64
	HighestValue  float64
	LowestValue   float64
	TotalPnL      float64
	TotalPnLPct   float64
	DailyPnL      float64
	DailyPnLPct   float64
	WeeklyPnL     float64
	WeeklyPnLPct  float64
	MonthlyPnL    float64
	MonthlyPnLPct float64
	Volatility    float64 // annualized, percent
	SharpeRatio   float64
	MaxDrawdown   float64 // percent, peak-to-trough
	WinRate       float64 // percent of positive daily returns
	UpdatedAt     time.Time
}

// HistoryRange is a symbolic lookback window for snapshot history queries.
type HistoryRange string

const (
	Range1D  HistoryRange = "1D"
	Range1W  HistoryRange = "1W"
	Range1M  HistoryRange = "1M"
	Range3M  HistoryRange = "3M"
	Range1Y  HistoryRange = "1Y"
	RangeAll HistoryRange = "ALL"
)

// Lookback returns the duration covered by the range. RangeAll (and any
// unknown value) returns 0, meaning "no lower bound".
func (r HistoryRange) Lookback() time.Duration {
	switch r {
	case Range1D:
		return 24 * time.Hour
	case Range1W:
		return 7 * 24 * time.Hour
	case Range1M:
		return 30 * 24 * time.Hour
	case Range3M:
		return 90 * 24 * time.Hour
	case Range1Y:
		return 365 * 24 * time.Hour
	default:
		return 0
	}
}
