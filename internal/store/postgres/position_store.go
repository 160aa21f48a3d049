package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/hedgecore/internal/domain"
)

// PositionStore implements domain.PositionStore on PostgreSQL. At construction
// it probes the schema for the optional ownership-binding columns so it can
// serve databases provisioned before the binding migration.
type PositionStore struct {
	pool    *pgxpool.Pool
	binding bool
}

// NewPositionStore creates a PositionStore and detects whether the schema
// carries the owner_binding_hash column.
func NewPositionStore(ctx context.Context, pool *pgxpool.Pool) (*PositionStore, error) {
	var binding bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_name = 'hedge_positions' AND column_name = 'owner_binding_hash'
		)`).Scan(&binding)
	if err != nil {
		return nil, fmt.Errorf("postgres: probe binding columns: %w", err)
	}
	return &PositionStore{pool: pool, binding: binding}, nil
}

// BindingSupported reports whether the ownership-binding columns exist.
func (s *PositionStore) BindingSupported() bool {
	return s.binding
}

const positionBaseCols = `order_id, asset, side, size, notional_value, leverage,
	entry_price, liquidation_price, status, current_pnl, realized_pnl,
	wallet, created_at, updated_at, closed_at`

func (s *PositionStore) selectCols() string {
	if s.binding {
		return positionBaseCols + `, owner_binding_hash, owner_commitment`
	}
	return positionBaseCols
}

func (s *PositionStore) scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var side, status string

	dest := []any{
		&p.OrderID, &p.Asset, &side, &p.Size, &p.NotionalValue, &p.Leverage,
		&p.EntryPrice, &p.LiquidationPrice, &status, &p.CurrentPnL, &p.RealizedPnL,
		&p.Wallet, &p.CreatedAt, &p.UpdatedAt, &p.ClosedAt,
	}
	if s.binding {
		dest = append(dest, &p.OwnerBindingHash, &p.OwnerCommitment)
	}
	if err := row.Scan(dest...); err != nil {
		return domain.Position{}, err
	}
	p.Side = domain.PositionSide(side)
	p.Status = domain.PositionStatus(status)
	return p, nil
}

func (s *PositionStore) scanPositions(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := s.scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Create inserts a new hedge position. Binding fields are silently dropped on
// schemas that predate them.
func (s *PositionStore) Create(ctx context.Context, p domain.Position) error {
	query := `
		INSERT INTO hedge_positions (
			order_id, asset, side, size, notional_value, leverage,
			entry_price, liquidation_price, status, current_pnl, realized_pnl,
			wallet, created_at, updated_at, closed_at`
	args := []any{
		p.OrderID, p.Asset, string(p.Side), p.Size, p.NotionalValue, p.Leverage,
		p.EntryPrice, p.LiquidationPrice, string(p.Status), p.CurrentPnL, p.RealizedPnL,
		p.Wallet, p.CreatedAt, p.UpdatedAt, p.ClosedAt,
	}
	if s.binding {
		query += `, owner_binding_hash, owner_commitment`
		args = append(args, p.OwnerBindingHash, p.OwnerCommitment)
	}
	query += `) VALUES (`
	for i := range args {
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("$%d", i+1)
	}
	query += `)`

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: create position %s: %w", p.OrderID, err)
	}
	return nil
}

// Update replaces the mutable fields of a position.
func (s *PositionStore) Update(ctx context.Context, p domain.Position) error {
	const query = `
		UPDATE hedge_positions SET
			asset             = $2,
			side              = $3,
			size              = $4,
			notional_value    = $5,
			leverage          = $6,
			entry_price       = $7,
			liquidation_price = $8,
			status            = $9,
			current_pnl       = $10,
			realized_pnl      = $11,
			wallet            = $12,
			closed_at         = $13,
			updated_at        = NOW()
		WHERE order_id = $1`

	tag, err := s.pool.Exec(ctx, query,
		p.OrderID, p.Asset, string(p.Side), p.Size, p.NotionalValue, p.Leverage,
		p.EntryPrice, p.LiquidationPrice, string(p.Status), p.CurrentPnL,
		p.RealizedPnL, p.Wallet, p.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update position %s: %w", p.OrderID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdatePnL writes only the unrealized PnL of an ACTIVE position.
func (s *PositionStore) UpdatePnL(ctx context.Context, orderID string, pnl float64) error {
	const query = `
		UPDATE hedge_positions SET
			current_pnl = $2,
			updated_at  = NOW()
		WHERE order_id = $1 AND status = 'ACTIVE'`

	tag, err := s.pool.Exec(ctx, query, orderID, pnl)
	if err != nil {
		return fmt.Errorf("postgres: update pnl %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Close transitions an ACTIVE position to CLOSED or LIQUIDATED. The status
// guard lives in the WHERE clause so concurrent closes cannot both win.
func (s *PositionStore) Close(ctx context.Context, orderID string, realizedPnL float64, liquidated bool) error {
	status := domain.StatusClosed
	if liquidated {
		status = domain.StatusLiquidated
	}

	const query = `
		UPDATE hedge_positions SET
			status       = $2,
			realized_pnl = $3,
			current_pnl  = 0,
			closed_at    = NOW(),
			updated_at   = NOW()
		WHERE order_id = $1 AND status = 'ACTIVE'`

	tag, err := s.pool.Exec(ctx, query, orderID, string(status), realizedPnL)
	if err != nil {
		return fmt.Errorf("postgres: close position %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish "gone" from "already closed".
		var exists bool
		if probeErr := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM hedge_positions WHERE order_id = $1)", orderID,
		).Scan(&exists); probeErr != nil {
			return fmt.Errorf("postgres: close position %s: %w", orderID, probeErr)
		}
		if exists {
			return domain.ErrPositionClosed
		}
		return domain.ErrNotFound
	}
	return nil
}

// GetByID retrieves a single position.
func (s *PositionStore) GetByID(ctx context.Context, orderID string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+s.selectCols()+` FROM hedge_positions WHERE order_id = $1`, orderID)

	p, err := s.scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", orderID, err)
	}
	return p, nil
}

// ListActive returns every ACTIVE position regardless of wallet.
func (s *PositionStore) ListActive(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+s.selectCols()+` FROM hedge_positions
		 WHERE status = 'ACTIVE'
		 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active positions: %w", err)
	}
	defer rows.Close()

	positions, err := s.scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan active positions: %w", err)
	}
	return positions, nil
}

// ListByWallet returns positions whose stored wallet matches directly.
func (s *PositionStore) ListByWallet(ctx context.Context, wallet string) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+s.selectCols()+` FROM hedge_positions
		 WHERE wallet = $1
		 ORDER BY created_at DESC`, wallet)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions by wallet: %w", err)
	}
	defer rows.Close()

	positions, err := s.scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions by wallet: %w", err)
	}
	return positions, nil
}

// ListBound returns positions carrying an ownership binding hash. On schemas
// without the binding columns it returns nothing.
func (s *PositionStore) ListBound(ctx context.Context) ([]domain.Position, error) {
	if !s.binding {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+s.selectCols()+` FROM hedge_positions
		 WHERE owner_binding_hash IS NOT NULL
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bound positions: %w", err)
	}
	defer rows.Close()

	positions, err := s.scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bound positions: %w", err)
	}
	return positions, nil
}

var _ domain.PositionStore = (*PositionStore)(nil)
