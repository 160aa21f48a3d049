package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/hedgecore/internal/crypto"
	"github.com/alanyoungcy/hedgecore/internal/domain"
	"github.com/alanyoungcy/hedgecore/internal/pnl"
)

// PositionService manages hedge position lifecycle and privacy-preserving
// ownership queries. It never originates positions itself: open parameters
// arrive from upstream trade confirmations.
type PositionService struct {
	positions domain.PositionStore
	logger    *slog.Logger
}

// NewPositionService creates a PositionService.
func NewPositionService(positions domain.PositionStore, logger *slog.Logger) *PositionService {
	return &PositionService{
		positions: positions,
		logger:    logger.With(slog.String("component", "position_service")),
	}
}

// OpenParams carries the trade-confirmation fields needed to register a hedge.
// Wallet is the identity the position is reported under. Owner, when set to a
// different address, is the true owner routed through a proxy: it is never
// stored, only its binding hash and commitment are.
type OpenParams struct {
	OrderID          string
	Asset            string
	Side             domain.PositionSide
	Size             float64
	NotionalValue    float64
	Leverage         float64
	EntryPrice       float64
	LiquidationPrice *float64
	Wallet           string
	Owner            string
}

// OpenHedge registers a confirmed hedge position as ACTIVE.
func (s *PositionService) OpenHedge(ctx context.Context, params OpenParams) (domain.Position, error) {
	if params.OrderID == "" {
		return domain.Position{}, fmt.Errorf("position_service: missing order id: %w", domain.ErrInvalidPosition)
	}
	if params.Leverage <= 0 {
		return domain.Position{}, fmt.Errorf("position_service: leverage %v: %w", params.Leverage, domain.ErrInvalidPosition)
	}
	if params.EntryPrice <= 0 {
		return domain.Position{}, fmt.Errorf("position_service: entry price %v: %w", params.EntryPrice, domain.ErrInvalidPosition)
	}
	if params.Side != domain.SideLong && params.Side != domain.SideShort {
		return domain.Position{}, fmt.Errorf("position_service: side %q: %w", params.Side, domain.ErrInvalidPosition)
	}

	wallet, err := crypto.NormalizeAddress(params.Wallet)
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: open hedge: %w", err)
	}

	now := time.Now().UTC()
	pos := domain.Position{
		OrderID:          params.OrderID,
		Asset:            params.Asset,
		Side:             params.Side,
		Size:             params.Size,
		NotionalValue:    params.NotionalValue,
		Leverage:         params.Leverage,
		EntryPrice:       params.EntryPrice,
		LiquidationPrice: params.LiquidationPrice,
		Status:           domain.StatusActive,
		Wallet:           wallet,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// Proxy-routed execution: bind the true owner cryptographically instead
	// of storing its address.
	if params.Owner != "" {
		owner, err := crypto.NormalizeAddress(params.Owner)
		if err != nil {
			return domain.Position{}, fmt.Errorf("position_service: open hedge owner: %w", err)
		}
		if owner != wallet {
			hash, err := crypto.BindingHash(owner, pos.OrderID)
			if err != nil {
				return domain.Position{}, fmt.Errorf("position_service: binding hash: %w", err)
			}
			commitment, err := crypto.OwnerCommitment(owner, now)
			if err != nil {
				return domain.Position{}, fmt.Errorf("position_service: owner commitment: %w", err)
			}
			pos.OwnerBindingHash = &hash
			pos.OwnerCommitment = &commitment
		}
	}

	if err := s.positions.Create(ctx, pos); err != nil {
		return domain.Position{}, fmt.Errorf("position_service: create position %s: %w", pos.OrderID, err)
	}

	s.logger.InfoContext(ctx, "hedge opened",
		slog.String("order_id", pos.OrderID),
		slog.String("asset", pos.Asset),
		slog.String("side", string(pos.Side)),
		slog.Float64("notional", pos.NotionalValue),
		slog.Float64("leverage", pos.Leverage),
		slog.Bool("proxy_bound", pos.OwnerBindingHash != nil),
	)

	return pos, nil
}

// CloseHedge closes an ACTIVE hedge at the given exit price and records the
// realized PnL. Closing a position that is not ACTIVE is a contract error
// surfaced to the caller.
func (s *PositionService) CloseHedge(ctx context.Context, orderID string, exitPrice float64) (float64, error) {
	pos, err := s.positions.GetByID(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("position_service: get position %q: %w", orderID, err)
	}
	if !pos.IsOpen() {
		return 0, fmt.Errorf("position_service: close %q in status %s: %w", orderID, pos.Status, domain.ErrPositionClosed)
	}

	realized := pnl.Calculate(pos, exitPrice).UnrealizedPnL
	if err := s.positions.Close(ctx, orderID, realized, false); err != nil {
		return 0, fmt.Errorf("position_service: close position %q: %w", orderID, err)
	}

	s.logger.InfoContext(ctx, "hedge closed",
		slog.String("order_id", orderID),
		slog.Float64("exit_price", exitPrice),
		slog.Float64("realized_pnl", realized),
	)
	return realized, nil
}

// LiquidateHedge marks an ACTIVE hedge as liquidated. The margin posted for
// the position is recorded as the realized loss.
func (s *PositionService) LiquidateHedge(ctx context.Context, orderID string) error {
	pos, err := s.positions.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("position_service: get position %q: %w", orderID, err)
	}
	if !pos.IsOpen() {
		return fmt.Errorf("position_service: liquidate %q in status %s: %w", orderID, pos.Status, domain.ErrPositionClosed)
	}

	realized := -pos.CapitalUsed()
	if err := s.positions.Close(ctx, orderID, realized, true); err != nil {
		return fmt.Errorf("position_service: liquidate position %q: %w", orderID, err)
	}

	s.logger.WarnContext(ctx, "hedge liquidated",
		slog.String("order_id", orderID),
		slog.Float64("realized_pnl", realized),
	)
	return nil
}

// PositionsForOwner resolves every position the caller controls: positions
// whose stored wallet matches directly, union positions whose binding hash
// verifies against the caller, deduplicated by order ID. When the schema
// predates the binding columns the query degrades to direct matches only.
func (s *PositionService) PositionsForOwner(ctx context.Context, addr string) ([]domain.Position, error) {
	norm, err := crypto.NormalizeAddress(addr)
	if err != nil {
		return nil, fmt.Errorf("position_service: positions for owner: %w", err)
	}

	direct, err := s.positions.ListByWallet(ctx, norm)
	if err != nil {
		return nil, fmt.Errorf("position_service: list by wallet %q: %w", norm, err)
	}

	if !s.positions.BindingSupported() {
		s.logger.WarnContext(ctx, "binding columns unavailable, ownership query degraded to direct match",
			slog.String("wallet", norm),
		)
		return direct, nil
	}

	bound, err := s.positions.ListBound(ctx)
	if err != nil {
		return nil, fmt.Errorf("position_service: list bound positions: %w", err)
	}

	seen := make(map[string]struct{}, len(direct))
	result := make([]domain.Position, 0, len(direct))
	for _, p := range direct {
		seen[p.OrderID] = struct{}{}
		result = append(result, p)
	}
	for _, p := range bound {
		if _, dup := seen[p.OrderID]; dup {
			continue
		}
		if p.OwnerBindingHash == nil {
			continue
		}
		if crypto.VerifyOwnership(norm, p.OrderID, *p.OwnerBindingHash) {
			seen[p.OrderID] = struct{}{}
			result = append(result, p)
		}
	}

	return result, nil
}
