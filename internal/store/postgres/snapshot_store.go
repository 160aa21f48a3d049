package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/hedgecore/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore on PostgreSQL. Snapshots are
// append-only rows; balances and the hedge breakdown are stored as JSONB so
// the row layout survives new per-asset fields without migrations.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a SnapshotStore and provisions its table.
func NewSnapshotStore(ctx context.Context, pool *pgxpool.Pool) (*SnapshotStore, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS portfolio_snapshots (
			id              TEXT PRIMARY KEY,
			wallet          TEXT NOT NULL,
			snapshot_time   TIMESTAMPTZ NOT NULL,
			total_value     DOUBLE PRECISION NOT NULL DEFAULT 0,
			positions_value DOUBLE PRECISION NOT NULL DEFAULT 0,
			hedges_value    DOUBLE PRECISION NOT NULL DEFAULT 0,
			unrealized_pnl  DOUBLE PRECISION NOT NULL DEFAULT 0,
			realized_pnl    DOUBLE PRECISION NOT NULL DEFAULT 0,
			balances        JSONB,
			hedge_summary   JSONB,
			block_number    BIGINT
		);
		CREATE INDEX IF NOT EXISTS idx_portfolio_snapshots_wallet_time
			ON portfolio_snapshots (wallet, snapshot_time);`

	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("postgres: provision portfolio_snapshots: %w", err)
	}
	return &SnapshotStore{pool: pool}, nil
}

// Append inserts one snapshot row. Rows are never updated or deleted here;
// archival to cold storage copies but does not remove them.
func (s *SnapshotStore) Append(ctx context.Context, snap domain.PortfolioSnapshot) error {
	balances, err := json.Marshal(snap.Balances)
	if err != nil {
		return fmt.Errorf("postgres: marshal balances: %w", err)
	}
	var hedges []byte
	if snap.Hedges != nil {
		if hedges, err = json.Marshal(snap.Hedges); err != nil {
			return fmt.Errorf("postgres: marshal hedge summary: %w", err)
		}
	}

	const query = `
		INSERT INTO portfolio_snapshots (
			id, wallet, snapshot_time, total_value, positions_value,
			hedges_value, unrealized_pnl, realized_pnl, balances,
			hedge_summary, block_number
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = s.pool.Exec(ctx, query,
		snap.ID, snap.Wallet, snap.SnapshotTime, snap.TotalValue, snap.PositionsValue,
		snap.HedgesValue, snap.UnrealizedPnL, snap.RealizedPnL, balances,
		hedges, snap.BlockNumber,
	)
	if err != nil {
		return fmt.Errorf("postgres: append snapshot %s: %w", snap.ID, err)
	}
	return nil
}

const snapshotSelectCols = `id, wallet, snapshot_time, total_value, positions_value,
	hedges_value, unrealized_pnl, realized_pnl, balances, hedge_summary, block_number`

func scanSnapshots(rows pgx.Rows) ([]domain.PortfolioSnapshot, error) {
	var snaps []domain.PortfolioSnapshot
	for rows.Next() {
		var snap domain.PortfolioSnapshot
		var balances, hedges []byte

		if err := rows.Scan(
			&snap.ID, &snap.Wallet, &snap.SnapshotTime, &snap.TotalValue,
			&snap.PositionsValue, &snap.HedgesValue, &snap.UnrealizedPnL,
			&snap.RealizedPnL, &balances, &hedges, &snap.BlockNumber,
		); err != nil {
			return nil, err
		}
		if len(balances) > 0 {
			if err := json.Unmarshal(balances, &snap.Balances); err != nil {
				return nil, fmt.Errorf("unmarshal balances for %s: %w", snap.ID, err)
			}
		}
		if len(hedges) > 0 {
			snap.Hedges = &domain.HedgeSummary{}
			if err := json.Unmarshal(hedges, snap.Hedges); err != nil {
				return nil, fmt.Errorf("unmarshal hedge summary for %s: %w", snap.ID, err)
			}
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// ListByWallet returns a wallet's snapshots ascending by time. A zero since
// returns the full history.
func (s *SnapshotStore) ListByWallet(ctx context.Context, wallet string, since time.Time) ([]domain.PortfolioSnapshot, error) {
	query := `SELECT ` + snapshotSelectCols + ` FROM portfolio_snapshots WHERE wallet = $1`
	args := []any{wallet}
	if !since.IsZero() {
		query += ` AND snapshot_time >= $2`
		args = append(args, since)
	}
	query += ` ORDER BY snapshot_time`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots: %w", err)
	}
	defer rows.Close()

	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan snapshots: %w", err)
	}
	return snaps, nil
}

// ListBetween returns up to limit snapshots strictly inside (after, before),
// oldest first, for archival. The lower bound lets the archiver resume past
// rows it has already copied.
func (s *SnapshotStore) ListBetween(ctx context.Context, after, before time.Time, limit int) ([]domain.PortfolioSnapshot, error) {
	query := `SELECT ` + snapshotSelectCols + ` FROM portfolio_snapshots
		WHERE snapshot_time > $1 AND snapshot_time < $2
		ORDER BY snapshot_time`
	args := []any{after, before}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots for archival: %w", err)
	}
	defer rows.Close()

	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan snapshots for archival: %w", err)
	}
	return snaps, nil
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
