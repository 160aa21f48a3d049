package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/hedgecore/internal/crypto"
	"github.com/alanyoungcy/hedgecore/internal/domain"
	"github.com/alanyoungcy/hedgecore/internal/marketdata"
	"github.com/alanyoungcy/hedgecore/internal/pnl"
)

// defaultSnapshotInterval is the minimum spacing between accepted snapshots
// for a single wallet.
const defaultSnapshotInterval = 5 * time.Minute

// PortfolioService records throttled portfolio snapshots and maintains the
// cached aggregate metrics row per wallet.
type PortfolioService struct {
	snapshots domain.SnapshotStore
	metrics   domain.MetricsStore
	positions domain.PositionStore
	prices    domain.PriceCache
	interval  time.Duration
	logger    *slog.Logger

	// lastRecorded is the advisory throttle, holding the time of each
	// wallet's last accepted snapshot. It only advances after a successful
	// append, so a failed attempt never silences retries. Two
	// near-simultaneous calls for the same wallet may both pass the check;
	// the snapshot table absorbs an occasional extra row rather than relying
	// on this map for exclusivity.
	mu           sync.Mutex
	lastRecorded map[string]time.Time

	now func() time.Time
}

// NewPortfolioService creates a PortfolioService. A non-positive interval
// falls back to the 5-minute default.
func NewPortfolioService(
	snapshots domain.SnapshotStore,
	metrics domain.MetricsStore,
	positions domain.PositionStore,
	prices domain.PriceCache,
	interval time.Duration,
	logger *slog.Logger,
) *PortfolioService {
	if interval <= 0 {
		interval = defaultSnapshotInterval
	}
	return &PortfolioService{
		snapshots:    snapshots,
		metrics:      metrics,
		positions:    positions,
		prices:       prices,
		interval:     interval,
		logger:       logger.With(slog.String("component", "portfolio_service")),
		lastRecorded: make(map[string]time.Time),
		now:          time.Now,
	}
}

// RecordSnapshot appends a point-in-time snapshot for the wallet and
// synchronously refreshes its cached metrics row. A call within the throttle
// interval of the wallet's last accepted snapshot is a silent no-op and
// returns false. When hedges is nil the open-hedge summary is built from the
// position store and the shared price cache.
func (s *PortfolioService) RecordSnapshot(
	ctx context.Context,
	wallet string,
	balances []domain.AssetBalance,
	hedges *domain.HedgeSummary,
	blockNumber *int64,
) (bool, error) {
	norm, err := crypto.NormalizeAddress(wallet)
	if err != nil {
		return false, fmt.Errorf("portfolio_service: record snapshot: %w", err)
	}

	now := s.now().UTC()

	s.mu.Lock()
	if last, ok := s.lastRecorded[norm]; ok && now.Sub(last) < s.interval {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "snapshot throttled",
			slog.String("wallet", norm),
			slog.Time("last_recorded", last),
		)
		return false, nil
	}
	s.mu.Unlock()

	if hedges == nil {
		built, err := s.BuildHedgeSummary(ctx, norm)
		if err != nil {
			return false, fmt.Errorf("portfolio_service: build hedge summary: %w", err)
		}
		hedges = built
	}

	var positionsValue float64
	for _, b := range balances {
		positionsValue += b.ValueUSD
	}

	realized, err := s.realizedPnL(ctx, norm)
	if err != nil {
		s.logger.WarnContext(ctx, "realized pnl lookup failed, recording 0",
			slog.String("wallet", norm),
			slog.String("error", err.Error()),
		)
		realized = 0
	}

	snap := domain.PortfolioSnapshot{
		ID:             uuid.NewString(),
		Wallet:         norm,
		SnapshotTime:   now,
		PositionsValue: positionsValue,
		HedgesValue:    hedges.TotalNotional,
		UnrealizedPnL:  hedges.UnrealizedPnL,
		RealizedPnL:    realized,
		TotalValue:     positionsValue + hedges.TotalNotional + hedges.UnrealizedPnL,
		Balances:       balances,
		Hedges:         hedges,
		BlockNumber:    blockNumber,
	}

	if err := s.snapshots.Append(ctx, snap); err != nil {
		return false, fmt.Errorf("portfolio_service: append snapshot: %w", err)
	}

	s.mu.Lock()
	s.lastRecorded[norm] = now
	s.mu.Unlock()

	if err := s.refreshMetrics(ctx, norm, now); err != nil {
		// The snapshot is already durable; a failed recompute self-heals on
		// the next accepted snapshot.
		s.logger.WarnContext(ctx, "metrics refresh failed",
			slog.String("wallet", norm),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "snapshot recorded",
		slog.String("wallet", norm),
		slog.Float64("total_value", snap.TotalValue),
		slog.Int("open_hedges", hedges.OpenCount),
	)

	return true, nil
}

// History returns the wallet's snapshots within the symbolic range, ascending
// by time.
func (s *PortfolioService) History(ctx context.Context, wallet string, r domain.HistoryRange) ([]domain.PortfolioSnapshot, error) {
	norm, err := crypto.NormalizeAddress(wallet)
	if err != nil {
		return nil, fmt.Errorf("portfolio_service: history: %w", err)
	}

	var since time.Time
	if lookback := r.Lookback(); lookback > 0 {
		since = s.now().UTC().Add(-lookback)
	}

	snaps, err := s.snapshots.ListByWallet(ctx, norm, since)
	if err != nil {
		return nil, fmt.Errorf("portfolio_service: list history for %q: %w", norm, err)
	}
	return snaps, nil
}

// Metrics returns the wallet's aggregate metrics. Steady-state reads hit the
// cached row; when it is absent the metrics are computed on demand from the
// snapshot history, and an empty history yields the neutral result.
func (s *PortfolioService) Metrics(ctx context.Context, wallet string) (domain.PortfolioMetrics, error) {
	norm, err := crypto.NormalizeAddress(wallet)
	if err != nil {
		return domain.PortfolioMetrics{}, fmt.Errorf("portfolio_service: metrics: %w", err)
	}

	cached, err := s.metrics.Get(ctx, norm)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.PortfolioMetrics{}, fmt.Errorf("portfolio_service: get metrics for %q: %w", norm, err)
	}

	history, err := s.snapshots.ListByWallet(ctx, norm, time.Time{})
	if err != nil {
		return domain.PortfolioMetrics{}, fmt.Errorf("portfolio_service: list snapshots for %q: %w", norm, err)
	}
	return ComputeMetrics(norm, history, s.now().UTC()), nil
}

// BuildHedgeSummary values the wallet's open hedges against the shared price
// cache. Positions whose asset has no cached price contribute their last
// computed PnL instead of a repriced one; with no cache at all every open
// position does.
func (s *PortfolioService) BuildHedgeSummary(ctx context.Context, wallet string) (*domain.HedgeSummary, error) {
	positions, err := s.positions.ListByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}

	summary := &domain.HedgeSummary{}

	var open []domain.Position
	assetSet := make(map[string]struct{})
	for _, p := range positions {
		if !p.IsOpen() {
			continue
		}
		open = append(open, p)
		assetSet[marketdata.NormalizeSymbol(p.Asset)] = struct{}{}
	}
	if len(open) == 0 {
		return summary, nil
	}

	priceMap := map[string]float64{}
	if s.prices != nil {
		assets := make([]string, 0, len(assetSet))
		for a := range assetSet {
			assets = append(assets, a)
		}
		priceMap, err = s.prices.GetPrices(ctx, assets)
		if err != nil {
			s.logger.WarnContext(ctx, "price cache read failed, using stored pnl",
				slog.String("wallet", wallet),
				slog.String("error", err.Error()),
			)
			priceMap = map[string]float64{}
		}
	}

	for _, p := range open {
		summary.OpenCount++
		summary.TotalNotional += p.NotionalValue
		if p.Side == domain.SideShort {
			summary.ShortNotional += p.NotionalValue
		} else {
			summary.LongNotional += p.NotionalValue
		}

		if price, ok := priceMap[marketdata.NormalizeSymbol(p.Asset)]; ok {
			summary.UnrealizedPnL += pnl.Calculate(p, price).UnrealizedPnL
		} else {
			summary.UnrealizedPnL += p.CurrentPnL
		}
	}

	return summary, nil
}

// realizedPnL sums realized PnL across every position the wallet has held.
func (s *PortfolioService) realizedPnL(ctx context.Context, wallet string) (float64, error) {
	positions, err := s.positions.ListByWallet(ctx, wallet)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, p := range positions {
		sum += p.RealizedPnL
	}
	return sum, nil
}

// refreshMetrics recomputes the wallet's metrics from its full snapshot
// history and upserts the cached row whole.
func (s *PortfolioService) refreshMetrics(ctx context.Context, wallet string, now time.Time) error {
	history, err := s.snapshots.ListByWallet(ctx, wallet, time.Time{})
	if err != nil {
		return err
	}
	return s.metrics.Upsert(ctx, ComputeMetrics(wallet, history, now))
}
