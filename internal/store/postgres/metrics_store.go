package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/hedgecore/internal/domain"
)

// MetricsStore implements domain.MetricsStore on PostgreSQL. One row per
// wallet, replaced whole on every refresh.
type MetricsStore struct {
	pool *pgxpool.Pool
}

// NewMetricsStore creates a MetricsStore and provisions its table.
func NewMetricsStore(ctx context.Context, pool *pgxpool.Pool) (*MetricsStore, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS portfolio_metrics (
			wallet          TEXT PRIMARY KEY,
			current_value   DOUBLE PRECISION NOT NULL DEFAULT 0,
			initial_value   DOUBLE PRECISION NOT NULL DEFAULT 0,
			highest_value   DOUBLE PRECISION NOT NULL DEFAULT 0,
			lowest_value    DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_pnl       DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_pnl_pct   DOUBLE PRECISION NOT NULL DEFAULT 0,
			daily_pnl       DOUBLE PRECISION NOT NULL DEFAULT 0,
			daily_pnl_pct   DOUBLE PRECISION NOT NULL DEFAULT 0,
			weekly_pnl      DOUBLE PRECISION NOT NULL DEFAULT 0,
			weekly_pnl_pct  DOUBLE PRECISION NOT NULL DEFAULT 0,
			monthly_pnl     DOUBLE PRECISION NOT NULL DEFAULT 0,
			monthly_pnl_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
			volatility      DOUBLE PRECISION NOT NULL DEFAULT 0,
			sharpe_ratio    DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_drawdown    DOUBLE PRECISION NOT NULL DEFAULT 0,
			win_rate        DOUBLE PRECISION NOT NULL DEFAULT 0,
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`

	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("postgres: provision portfolio_metrics: %w", err)
	}
	return &MetricsStore{pool: pool}, nil
}

// Upsert replaces the cached metrics row for the wallet.
func (s *MetricsStore) Upsert(ctx context.Context, m domain.PortfolioMetrics) error {
	const query = `
		INSERT INTO portfolio_metrics (
			wallet, current_value, initial_value, highest_value, lowest_value,
			total_pnl, total_pnl_pct, daily_pnl, daily_pnl_pct,
			weekly_pnl, weekly_pnl_pct, monthly_pnl, monthly_pnl_pct,
			volatility, sharpe_ratio, max_drawdown, win_rate, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)
		ON CONFLICT (wallet) DO UPDATE SET
			current_value   = EXCLUDED.current_value,
			initial_value   = EXCLUDED.initial_value,
			highest_value   = EXCLUDED.highest_value,
			lowest_value    = EXCLUDED.lowest_value,
			total_pnl       = EXCLUDED.total_pnl,
			total_pnl_pct   = EXCLUDED.total_pnl_pct,
			daily_pnl       = EXCLUDED.daily_pnl,
			daily_pnl_pct   = EXCLUDED.daily_pnl_pct,
			weekly_pnl      = EXCLUDED.weekly_pnl,
			weekly_pnl_pct  = EXCLUDED.weekly_pnl_pct,
			monthly_pnl     = EXCLUDED.monthly_pnl,
			monthly_pnl_pct = EXCLUDED.monthly_pnl_pct,
			volatility      = EXCLUDED.volatility,
			sharpe_ratio    = EXCLUDED.sharpe_ratio,
			max_drawdown    = EXCLUDED.max_drawdown,
			win_rate        = EXCLUDED.win_rate,
			updated_at      = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		m.Wallet, m.CurrentValue, m.InitialValue, m.HighestValue, m.LowestValue,
		m.TotalPnL, m.TotalPnLPct, m.DailyPnL, m.DailyPnLPct,
		m.WeeklyPnL, m.WeeklyPnLPct, m.MonthlyPnL, m.MonthlyPnLPct,
		m.Volatility, m.SharpeRatio, m.MaxDrawdown, m.WinRate, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert metrics for %s: %w", m.Wallet, err)
	}
	return nil
}

// Get returns the cached metrics row for the wallet.
func (s *MetricsStore) Get(ctx context.Context, wallet string) (domain.PortfolioMetrics, error) {
	const query = `
		SELECT wallet, current_value, initial_value, highest_value, lowest_value,
			total_pnl, total_pnl_pct, daily_pnl, daily_pnl_pct,
			weekly_pnl, weekly_pnl_pct, monthly_pnl, monthly_pnl_pct,
			volatility, sharpe_ratio, max_drawdown, win_rate, updated_at
		FROM portfolio_metrics WHERE wallet = $1`

	var m domain.PortfolioMetrics
	err := s.pool.QueryRow(ctx, query, wallet).Scan(
		&m.Wallet, &m.CurrentValue, &m.InitialValue, &m.HighestValue, &m.LowestValue,
		&m.TotalPnL, &m.TotalPnLPct, &m.DailyPnL, &m.DailyPnLPct,
		&m.WeeklyPnL, &m.WeeklyPnLPct, &m.MonthlyPnL, &m.MonthlyPnLPct,
		&m.Volatility, &m.SharpeRatio, &m.MaxDrawdown, &m.WinRate, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PortfolioMetrics{}, domain.ErrNotFound
		}
		return domain.PortfolioMetrics{}, fmt.Errorf("postgres: get metrics for %s: %w", wallet, err)
	}
	return m, nil
}

var _ domain.MetricsStore = (*MetricsStore)(nil)
