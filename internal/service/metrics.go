package service

import (
	"math"
	"time"

	"github.com/alanyoungcy/hedgecore/internal/domain"
)

// riskFreeRate is the fixed annual risk-free rate used in the Sharpe ratio.
const riskFreeRate = 0.05

// ComputeMetrics derives the aggregate performance metrics for a wallet from
// its full snapshot history, oldest to newest. An empty history yields the
// neutral result: all zeros with a 50% win rate.
func ComputeMetrics(wallet string, history []domain.PortfolioSnapshot, now time.Time) domain.PortfolioMetrics {
	m := domain.PortfolioMetrics{
		Wallet:    wallet,
		WinRate:   50,
		UpdatedAt: now,
	}
	if len(history) == 0 {
		return m
	}

	m.InitialValue = history[0].TotalValue
	m.CurrentValue = history[len(history)-1].TotalValue

	m.HighestValue = math.Inf(-1)
	m.LowestValue = math.Inf(1)
	for _, snap := range history {
		if snap.TotalValue > m.HighestValue {
			m.HighestValue = snap.TotalValue
		}
		if snap.TotalValue < m.LowestValue {
			m.LowestValue = snap.TotalValue
		}
	}

	m.TotalPnL = m.CurrentValue - m.InitialValue
	if m.InitialValue != 0 {
		m.TotalPnLPct = m.TotalPnL / m.InitialValue * 100
	}

	m.DailyPnL, m.DailyPnLPct = horizonPnL(history, m.CurrentValue, now.Add(-24*time.Hour))
	m.WeeklyPnL, m.WeeklyPnLPct = horizonPnL(history, m.CurrentValue, now.Add(-7*24*time.Hour))
	m.MonthlyPnL, m.MonthlyPnLPct = horizonPnL(history, m.CurrentValue, now.Add(-30*24*time.Hour))

	returns := dailyReturns(history)
	m.Volatility = annualizedVolatility(returns)
	m.SharpeRatio = sharpeRatio(returns, m.Volatility)
	m.MaxDrawdown = maxDrawdown(history)
	if len(returns) > 0 {
		wins := 0
		for _, r := range returns {
			if r > 0 {
				wins++
			}
		}
		m.WinRate = float64(wins) / float64(len(returns)) * 100
	}

	return m
}

// horizonPnL finds the snapshot closest in time to the target instant and
// returns PnL and percentage change from that snapshot's value to current.
func horizonPnL(history []domain.PortfolioSnapshot, currentValue float64, target time.Time) (float64, float64) {
	if len(history) == 0 {
		return 0, 0
	}

	best := history[0]
	bestDist := absDuration(history[0].SnapshotTime.Sub(target))
	for _, snap := range history[1:] {
		if d := absDuration(snap.SnapshotTime.Sub(target)); d < bestDist {
			best = snap
			bestDist = d
		}
	}

	pnl := currentValue - best.TotalValue
	if best.TotalValue == 0 {
		return pnl, 0
	}
	return pnl, pnl / best.TotalValue * 100
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// dailyReturns builds the period-over-period return series across consecutive
// snapshots, skipping pairs whose starting value is zero.
func dailyReturns(history []domain.PortfolioSnapshot) []float64 {
	var returns []float64
	for i := 1; i < len(history); i++ {
		prev := history[i-1].TotalValue
		if prev == 0 {
			continue
		}
		returns = append(returns, (history[i].TotalValue-prev)/prev)
	}
	return returns
}

// annualizedVolatility is the sample standard deviation of daily returns
// annualized by sqrt(365), as a percentage. Fewer than two returns yield 0.
func annualizedVolatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance) * math.Sqrt(365) * 100
}

// sharpeRatio is (annualized mean daily return - riskFreeRate) / volatility.
// It is 0 when there are fewer than 2 returns or volatility is 0.
func sharpeRatio(returns []float64, volatilityPct float64) float64 {
	if len(returns) < 2 || volatilityPct == 0 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	meanAnnualized := sum / float64(len(returns)) * 365

	return (meanAnnualized - riskFreeRate) / (volatilityPct / 100)
}

// maxDrawdown is the largest peak-to-trough percentage decline of the value
// series, tracked with a running peak.
func maxDrawdown(history []domain.PortfolioSnapshot) float64 {
	var peak, worst float64
	for _, snap := range history {
		if snap.TotalValue > peak {
			peak = snap.TotalValue
		}
		if peak > 0 {
			if dd := (peak - snap.TotalValue) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst * 100
}
