package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/hedgecore/internal/domain"
	"github.com/alanyoungcy/hedgecore/internal/notify"
)

func activePosition(orderID, asset string, side domain.PositionSide) domain.Position {
	return domain.Position{
		OrderID:       orderID,
		Asset:         asset,
		Side:          side,
		NotionalValue: 10_000,
		Leverage:      2,
		EntryPrice:    100,
		Status:        domain.StatusActive,
		Wallet:        "0xab5801a7d398351b8be11c439e05c5b3259aec9b",
	}
}

func TestTickUpdatesPnL(t *testing.T) {
	store := newFakePositionStore()
	provider := newFakeProvider()
	prices := newFakePriceCache()

	store.positions["p1"] = activePosition("p1", "BTC-PERP", domain.SideLong)
	store.positions["p2"] = activePosition("p2", "BTCUSDT", domain.SideShort)
	provider.prices["BTC"] = 110

	tr := NewTracker(store, provider, prices, nil, TrackerConfig{}, testLogger())
	if err := tr.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	// Both positions share the normalized BTC symbol: one fetch serves both.
	if provider.calls["BTC"] != 1 {
		t.Errorf("provider called %d times for BTC, want 1", provider.calls["BTC"])
	}

	p1, _ := store.GetByID(context.Background(), "p1")
	if p1.CurrentPnL != 2000 {
		t.Errorf("long pnl = %v, want 2000", p1.CurrentPnL)
	}
	p2, _ := store.GetByID(context.Background(), "p2")
	if p2.CurrentPnL != -2000 {
		t.Errorf("short pnl = %v, want -2000", p2.CurrentPnL)
	}

	// Prices were written through to the shared cache.
	cached, _, err := prices.GetPrice(context.Background(), "BTC")
	if err != nil || cached != 110 {
		t.Errorf("cached price = %v (%v), want 110", cached, err)
	}
}

func TestTickIsolatesFetchFailures(t *testing.T) {
	store := newFakePositionStore()
	provider := newFakeProvider()

	stale := activePosition("p1", "ETH", domain.SideLong)
	stale.CurrentPnL = 123
	store.positions["p1"] = stale
	store.positions["p2"] = activePosition("p2", "BTC", domain.SideLong)

	provider.prices["BTC"] = 105
	provider.errs["ETH"] = errors.New("provider down")

	tr := NewTracker(store, provider, nil, nil, TrackerConfig{}, testLogger())
	if err := tr.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	// ETH keeps its stale PnL; a missing price is never a zero price.
	p1, _ := store.GetByID(context.Background(), "p1")
	if p1.CurrentPnL != 123 {
		t.Errorf("stale pnl = %v, want untouched 123", p1.CurrentPnL)
	}
	p2, _ := store.GetByID(context.Background(), "p2")
	if p2.CurrentPnL != 1000 {
		t.Errorf("btc pnl = %v, want 1000", p2.CurrentPnL)
	}
}

func TestTickIsolatesPersistFailures(t *testing.T) {
	store := newFakePositionStore()
	provider := newFakeProvider()

	store.positions["p1"] = activePosition("p1", "BTC", domain.SideLong)
	store.positions["p2"] = activePosition("p2", "BTC", domain.SideShort)
	store.failPnLUpdates = map[string]error{"p1": errors.New("write failed")}
	provider.prices["BTC"] = 110

	tr := NewTracker(store, provider, nil, nil, TrackerConfig{}, testLogger())
	if err := tr.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	p2, _ := store.GetByID(context.Background(), "p2")
	if p2.CurrentPnL != -2000 {
		t.Errorf("p2 pnl = %v, want -2000 despite p1 write failure", p2.CurrentPnL)
	}
}

type captureSender struct {
	mu     sync.Mutex
	titles []string
}

func (c *captureSender) Send(_ context.Context, title, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles = append(c.titles, title)
	return nil
}

func (c *captureSender) Name() string { return "capture" }

func TestTickFailureRaisesTrackerError(t *testing.T) {
	store := newFakePositionStore()
	store.failListActive = errors.New("db down")
	sender := &captureSender{}
	notifier := notify.NewNotifier([]notify.Sender{sender}, []string{notify.EventTrackerError}, testLogger())

	tr := NewTracker(store, newFakeProvider(), nil, notifier, TrackerConfig{}, testLogger())
	tr.runTick()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.titles) != 1 || sender.titles[0] != "Tracker tick failed" {
		t.Errorf("alerts = %v, want one tracker failure alert", sender.titles)
	}
}

func TestTrackerLifecycle(t *testing.T) {
	store := newFakePositionStore()
	provider := newFakeProvider()

	tr := NewTracker(store, provider, nil, nil, TrackerConfig{TickInterval: time.Hour}, testLogger())
	if tr.Active() {
		t.Error("tracker active before start")
	}

	ctx := context.Background()
	tr.Start(ctx)
	if !tr.Active() {
		t.Error("tracker not active after start")
	}

	// Second start is a warn-level no-op.
	tr.Start(ctx)
	if !tr.Active() {
		t.Error("tracker stopped by duplicate start")
	}

	tr.Stop()
	if tr.Active() {
		t.Error("tracker active after stop")
	}

	// Stop is idempotent.
	tr.Stop()

	// The tracker can be restarted after a stop.
	tr.Start(ctx)
	if !tr.Active() {
		t.Error("tracker not active after restart")
	}
	tr.Stop()
}

func TestStartRunsImmediateTick(t *testing.T) {
	store := newFakePositionStore()
	provider := newFakeProvider()
	store.positions["p1"] = activePosition("p1", "BTC", domain.SideLong)
	provider.prices["BTC"] = 120

	tr := NewTracker(store, provider, nil, nil, TrackerConfig{TickInterval: time.Hour}, testLogger())
	tr.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for {
		p, _ := store.GetByID(context.Background(), "p1")
		if p.CurrentPnL == 4000 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("immediate tick never updated pnl, got %v", p.CurrentPnL)
		}
		time.Sleep(10 * time.Millisecond)
	}
	tr.Stop()
}
