package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/hedgecore/internal/domain"
)

// fakePositionStore is an in-memory domain.PositionStore for tests.
type fakePositionStore struct {
	mu             sync.Mutex
	positions      map[string]domain.Position
	binding        bool
	failPnLUpdates map[string]error
	failListActive error
}

func newFakePositionStore() *fakePositionStore {
	return &fakePositionStore{
		positions: make(map[string]domain.Position),
		binding:   true,
	}
}

func (f *fakePositionStore) Create(_ context.Context, pos domain.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions[pos.OrderID] = pos
	return nil
}

func (f *fakePositionStore) Update(_ context.Context, pos domain.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.positions[pos.OrderID]; !ok {
		return domain.ErrNotFound
	}
	f.positions[pos.OrderID] = pos
	return nil
}

func (f *fakePositionStore) UpdatePnL(_ context.Context, orderID string, pnl float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failPnLUpdates[orderID]; ok {
		return err
	}
	pos, ok := f.positions[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	pos.CurrentPnL = pnl
	pos.UpdatedAt = time.Now().UTC()
	f.positions[orderID] = pos
	return nil
}

func (f *fakePositionStore) Close(_ context.Context, orderID string, realizedPnL float64, liquidated bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pos, ok := f.positions[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	if pos.Status != domain.StatusActive {
		return domain.ErrPositionClosed
	}
	now := time.Now().UTC()
	pos.RealizedPnL = realizedPnL
	pos.ClosedAt = &now
	pos.Status = domain.StatusClosed
	if liquidated {
		pos.Status = domain.StatusLiquidated
	}
	f.positions[orderID] = pos
	return nil
}

func (f *fakePositionStore) GetByID(_ context.Context, orderID string) (domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pos, ok := f.positions[orderID]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return pos, nil
}

func (f *fakePositionStore) list(filter func(domain.Position) bool) []domain.Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Position
	for _, pos := range f.positions {
		if filter(pos) {
			out = append(out, pos)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

func (f *fakePositionStore) ListActive(context.Context) ([]domain.Position, error) {
	f.mu.Lock()
	failErr := f.failListActive
	f.mu.Unlock()
	if failErr != nil {
		return nil, failErr
	}
	return f.list(func(p domain.Position) bool { return p.Status == domain.StatusActive }), nil
}

func (f *fakePositionStore) ListByWallet(_ context.Context, wallet string) ([]domain.Position, error) {
	return f.list(func(p domain.Position) bool { return p.Wallet == wallet }), nil
}

func (f *fakePositionStore) ListBound(context.Context) ([]domain.Position, error) {
	if !f.binding {
		return nil, nil
	}
	return f.list(func(p domain.Position) bool { return p.OwnerBindingHash != nil }), nil
}

func (f *fakePositionStore) BindingSupported() bool { return f.binding }

// fakeSnapshotStore is an in-memory domain.SnapshotStore for tests.
type fakeSnapshotStore struct {
	mu        sync.Mutex
	snaps     []domain.PortfolioSnapshot
	appendErr error // consumed by the next Append
}

func (f *fakeSnapshotStore) Append(_ context.Context, snap domain.PortfolioSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		err := f.appendErr
		f.appendErr = nil
		return err
	}
	f.snaps = append(f.snaps, snap)
	return nil
}

func (f *fakeSnapshotStore) ListByWallet(_ context.Context, wallet string, since time.Time) ([]domain.PortfolioSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PortfolioSnapshot
	for _, s := range f.snaps {
		if s.Wallet != wallet {
			continue
		}
		if !since.IsZero() && s.SnapshotTime.Before(since) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SnapshotTime.Before(out[j].SnapshotTime) })
	return out, nil
}

func (f *fakeSnapshotStore) ListBetween(_ context.Context, after, before time.Time, limit int) ([]domain.PortfolioSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PortfolioSnapshot
	for _, s := range f.snaps {
		if s.SnapshotTime.After(after) && s.SnapshotTime.Before(before) {
			out = append(out, s)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// fakeMetricsStore is an in-memory domain.MetricsStore for tests.
type fakeMetricsStore struct {
	mu   sync.Mutex
	rows map[string]domain.PortfolioMetrics
}

func newFakeMetricsStore() *fakeMetricsStore {
	return &fakeMetricsStore{rows: make(map[string]domain.PortfolioMetrics)}
}

func (f *fakeMetricsStore) Upsert(_ context.Context, m domain.PortfolioMetrics) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[m.Wallet] = m
	return nil
}

func (f *fakeMetricsStore) Get(_ context.Context, wallet string) (domain.PortfolioMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[wallet]
	if !ok {
		return domain.PortfolioMetrics{}, domain.ErrNotFound
	}
	return m, nil
}

// fakePriceCache is an in-memory domain.PriceCache for tests.
type fakePriceCache struct {
	mu     sync.Mutex
	prices map[string]float64
}

func newFakePriceCache() *fakePriceCache {
	return &fakePriceCache{prices: make(map[string]float64)}
}

func (f *fakePriceCache) SetPrice(_ context.Context, asset string, price float64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[asset] = price
	return nil
}

func (f *fakePriceCache) GetPrice(_ context.Context, asset string) (float64, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	price, ok := f.prices[asset]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return price, time.Now(), nil
}

func (f *fakePriceCache) GetPrices(_ context.Context, assets []string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]float64, len(assets))
	for _, a := range assets {
		if p, ok := f.prices[a]; ok {
			out[a] = p
		}
	}
	return out, nil
}

// fakeProvider is a scriptable domain.PriceProvider for tests.
type fakeProvider struct {
	mu     sync.Mutex
	prices map[string]float64
	errs   map[string]error
	calls  map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		prices: make(map[string]float64),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeProvider) GetPrice(_ context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
	if err, ok := f.errs[symbol]; ok {
		return 0, err
	}
	price, ok := f.prices[symbol]
	if !ok {
		return 0, domain.ErrPriceMissing
	}
	return price, nil
}
