package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PositionStore persists hedge positions.
type PositionStore interface {
	Create(ctx context.Context, pos Position) error
	Update(ctx context.Context, pos Position) error
	// UpdatePnL writes only the current unrealized PnL of an ACTIVE position.
	UpdatePnL(ctx context.Context, orderID string, pnl float64) error
	// Close transitions an ACTIVE position to CLOSED (or LIQUIDATED when
	// liquidated is true) and records the realized PnL. It returns
	// ErrPositionClosed when the position is not ACTIVE.
	Close(ctx context.Context, orderID string, realizedPnL float64, liquidated bool) error
	GetByID(ctx context.Context, orderID string) (Position, error)
	// ListActive returns every ACTIVE position regardless of wallet.
	ListActive(ctx context.Context) ([]Position, error)
	// ListByWallet returns positions whose stored wallet field matches directly.
	ListByWallet(ctx context.Context, wallet string) ([]Position, error)
	// ListBound returns positions carrying an ownership binding hash. When the
	// schema predates the binding columns it returns an empty slice and
	// BindingSupported reports false.
	ListBound(ctx context.Context) ([]Position, error)
	// BindingSupported reports whether the underlying schema carries the
	// optional ownership-binding columns.
	BindingSupported() bool
}

// SnapshotStore persists append-only portfolio snapshots.
type SnapshotStore interface {
	Append(ctx context.Context, snap PortfolioSnapshot) error
	// ListByWallet returns snapshots ascending by time. A zero since means
	// "from the beginning".
	ListByWallet(ctx context.Context, wallet string, since time.Time) ([]PortfolioSnapshot, error)
	// ListBetween returns snapshots strictly inside (after, before), oldest
	// first, for archival. A zero after means "from the beginning".
	ListBetween(ctx context.Context, after, before time.Time, limit int) ([]PortfolioSnapshot, error)
}

// MetricsStore persists the single cached aggregate metrics row per wallet.
type MetricsStore interface {
	Upsert(ctx context.Context, m PortfolioMetrics) error
	Get(ctx context.Context, wallet string) (PortfolioMetrics, error)
}
