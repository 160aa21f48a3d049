package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/hedgecore/internal/domain"
	"github.com/alanyoungcy/hedgecore/internal/marketdata"
	"github.com/alanyoungcy/hedgecore/internal/notify"
	"github.com/alanyoungcy/hedgecore/internal/pnl"
)

const (
	defaultTickInterval  = 10 * time.Second
	defaultFetchTimeout  = 5 * time.Second
	defaultMaxConcurrent = 8

	// notableMovePct flags positions whose PnL percentage crossed this
	// magnitude since it is worth surfacing in logs.
	notableMovePct = 10.0
)

// TrackerConfig tunes the position tracker. Zero values fall back to
// defaults.
type TrackerConfig struct {
	TickInterval  time.Duration
	FetchTimeout  time.Duration
	MaxConcurrent int
}

// Tracker keeps every ACTIVE position's unrealized PnL fresh against live
// prices. It owns its own scheduler: Start arms the periodic tick, Stop
// cancels it and waits for an in-flight tick to finish. Multiple independent
// Tracker instances can coexist; each runs at most one loop.
type Tracker struct {
	positions domain.PositionStore
	provider  domain.PriceProvider
	prices    domain.PriceCache
	notifier  *notify.Notifier
	cfg       TrackerConfig
	logger    *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	nearLiq map[string]bool
}

// NewTracker creates a Tracker. prices and notifier may be nil: without a
// price cache the tracker skips write-through, without a notifier liquidation
// proximity is only logged.
func NewTracker(
	positions domain.PositionStore,
	provider domain.PriceProvider,
	prices domain.PriceCache,
	notifier *notify.Notifier,
	cfg TrackerConfig,
	logger *slog.Logger,
) *Tracker {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	return &Tracker{
		positions: positions,
		provider:  provider,
		prices:    prices,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "tracker")),
		nearLiq:   make(map[string]bool),
	}
}

// Start performs one immediate tick and arms the periodic re-trigger.
// Starting an already-running tracker is a no-op with a warning.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		t.logger.WarnContext(ctx, "tracker already running, start ignored")
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	done := make(chan struct{})
	t.done = done
	t.mu.Unlock()

	t.logger.InfoContext(ctx, "tracker starting",
		slog.Duration("interval", t.cfg.TickInterval),
	)

	go func() {
		defer close(done)

		t.runTick()

		ticker := time.NewTicker(t.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				t.runTick()
			}
		}
	}()
}

// Stop cancels the periodic tick and blocks until any in-flight tick has
// finished. It is idempotent.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	done := t.done
	t.cancel = nil
	t.done = nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	t.logger.Info("tracker stopped")
}

// Active reports whether the tracking loop is running.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// runTick executes one tick on a fresh context so that stopping the tracker
// never aborts a tick mid-price-fetch. The tick is bounded by its own
// deadline instead.
func (t *Tracker) runTick() {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.TickInterval+t.cfg.FetchTimeout)
	defer cancel()

	if err := t.Tick(ctx); err != nil {
		t.logger.ErrorContext(ctx, "tick failed", slog.String("error", err.Error()))
		if t.notifier != nil {
			if nerr := t.notifier.Notify(ctx, notify.EventTrackerError, "Tracker tick failed", err.Error()); nerr != nil {
				t.logger.WarnContext(ctx, "tracker error notification failed",
					slog.String("error", nerr.Error()),
				)
			}
		}
	}
}

// Tick refreshes PnL for every ACTIVE position whose asset price resolves.
// Per-asset fetch failures and per-position persistence failures are logged
// and isolated; they never abort the rest of the batch. Positions whose
// price could not be resolved keep their stale PnL and are retried next tick.
func (t *Tracker) Tick(ctx context.Context) error {
	positions, err := t.positions.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("tracker: list active positions: %w", err)
	}
	if len(positions) == 0 {
		return nil
	}

	priceMap := t.fetchPrices(ctx, distinctAssets(positions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.MaxConcurrent)
	for _, pos := range positions {
		pos := pos
		price, ok := priceMap[marketdata.NormalizeSymbol(pos.Asset)]
		if !ok {
			t.logger.DebugContext(ctx, "no price this tick, pnl left stale",
				slog.String("order_id", pos.OrderID),
				slog.String("asset", pos.Asset),
			)
			continue
		}

		g.Go(func() error {
			t.updatePosition(gctx, pos, price)
			return nil
		})
	}
	_ = g.Wait()

	return nil
}

// fetchPrices fans out one provider request per distinct asset with a bounded
// concurrency limit and a per-fetch timeout. Failed assets are logged and
// omitted from the returned map; a missing price is never treated as zero.
func (t *Tracker) fetchPrices(ctx context.Context, assets []string) map[string]float64 {
	var mu sync.Mutex
	priceMap := make(map[string]float64, len(assets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.MaxConcurrent)
	for _, asset := range assets {
		asset := asset
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, t.cfg.FetchTimeout)
			defer cancel()

			price, err := t.provider.GetPrice(fetchCtx, asset)
			if err != nil {
				t.logger.WarnContext(ctx, "price fetch failed",
					slog.String("asset", asset),
					slog.String("error", err.Error()),
				)
				return nil
			}

			mu.Lock()
			priceMap[asset] = price
			mu.Unlock()

			if t.prices != nil {
				if cacheErr := t.prices.SetPrice(ctx, asset, price, time.Now().UTC()); cacheErr != nil {
					t.logger.WarnContext(ctx, "price cache write failed",
						slog.String("asset", asset),
						slog.String("error", cacheErr.Error()),
					)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return priceMap
}

// updatePosition recomputes and persists one position's PnL and surfaces
// liquidation proximity and notable moves.
func (t *Tracker) updatePosition(ctx context.Context, pos domain.Position, price float64) {
	res := pnl.Calculate(pos, price)

	if err := t.positions.UpdatePnL(ctx, pos.OrderID, res.UnrealizedPnL); err != nil {
		t.logger.ErrorContext(ctx, "pnl update failed",
			slog.String("order_id", pos.OrderID),
			slog.String("asset", pos.Asset),
			slog.String("error", err.Error()),
		)
		return
	}

	if math.Abs(res.PnLPercentage) >= notableMovePct {
		t.logger.InfoContext(ctx, "notable pnl move",
			slog.String("order_id", pos.OrderID),
			slog.String("asset", pos.Asset),
			slog.Float64("pnl_pct", res.PnLPercentage),
			slog.Float64("unrealized_pnl", res.UnrealizedPnL),
		)
	}

	t.mu.Lock()
	wasNear := t.nearLiq[pos.OrderID]
	t.nearLiq[pos.OrderID] = res.IsNearLiquidation
	t.mu.Unlock()

	if res.IsNearLiquidation && !wasNear {
		t.logger.WarnContext(ctx, "position near liquidation",
			slog.String("order_id", pos.OrderID),
			slog.String("asset", pos.Asset),
			slog.Float64("current_price", price),
		)
		if t.notifier != nil {
			msg := fmt.Sprintf("%s %s @ %.4f is within 10%% of its liquidation price", pos.Asset, pos.Side, price)
			if err := t.notifier.Notify(ctx, notify.EventLiquidationWarning, "Liquidation warning", msg); err != nil {
				t.logger.WarnContext(ctx, "liquidation notification failed",
					slog.String("order_id", pos.OrderID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// distinctAssets returns the deduplicated set of normalized base symbols
// referenced by the positions.
func distinctAssets(positions []domain.Position) []string {
	set := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		set[marketdata.NormalizeSymbol(p.Asset)] = struct{}{}
	}
	assets := make([]string, 0, len(set))
	for a := range set {
		assets = append(assets, a)
	}
	return assets
}
