package pnl

import (
	"math"
	"testing"

	"github.com/alanyoungcy/hedgecore/internal/domain"
)

func newPosition(side domain.PositionSide, entry, notional, leverage float64) domain.Position {
	return domain.Position{
		OrderID:       "ord-1",
		Asset:         "BTC",
		Side:          side,
		NotionalValue: notional,
		Leverage:      leverage,
		EntryPrice:    entry,
		Status:        domain.StatusActive,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculateAtEntryIsZero(t *testing.T) {
	for _, side := range []domain.PositionSide{domain.SideLong, domain.SideShort} {
		for _, lev := range []float64{1, 2, 10} {
			p := newPosition(side, 50_000, 10_000, lev)
			res := Calculate(p, 50_000)
			if res.UnrealizedPnL != 0 || res.PnLPercentage != 0 {
				t.Errorf("%s lev=%v: want zero PnL at entry, got pnl=%v pct=%v",
					side, lev, res.UnrealizedPnL, res.PnLPercentage)
			}
		}
	}
}

func TestCalculateDirection(t *testing.T) {
	tests := []struct {
		name    string
		side    domain.PositionSide
		current float64
		wantPnL float64
		wantPct float64
	}{
		{"long up 10%", domain.SideLong, 110, 2000, 20},
		{"long down 10%", domain.SideLong, 90, -2000, -20},
		{"short up 10%", domain.SideShort, 110, -2000, -20},
		{"short down 10%", domain.SideShort, 90, 2000, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPosition(tt.side, 100, 10_000, 2)
			res := Calculate(p, tt.current)
			if !almostEqual(res.UnrealizedPnL, tt.wantPnL) {
				t.Errorf("pnl = %v, want %v", res.UnrealizedPnL, tt.wantPnL)
			}
			if !almostEqual(res.PnLPercentage, tt.wantPct) {
				t.Errorf("pct = %v, want %v", res.PnLPercentage, tt.wantPct)
			}
		})
	}
}

func TestCalculateMonotonicInPrice(t *testing.T) {
	long := newPosition(domain.SideLong, 100, 5000, 3)
	short := newPosition(domain.SideShort, 100, 5000, 3)

	prevLong := math.Inf(-1)
	prevShort := math.Inf(1)
	for price := 50.0; price <= 150.0; price += 5 {
		l := Calculate(long, price).UnrealizedPnL
		s := Calculate(short, price).UnrealizedPnL
		if l <= prevLong {
			t.Fatalf("long PnL not increasing at price %v", price)
		}
		if s >= prevShort {
			t.Fatalf("short PnL not decreasing at price %v", price)
		}
		prevLong, prevShort = l, s
	}
}

func TestCalculateLeverageScalesLinearly(t *testing.T) {
	p1 := newPosition(domain.SideLong, 100, 10_000, 2)
	p2 := newPosition(domain.SideLong, 100, 10_000, 4)

	r1 := Calculate(p1, 105)
	r2 := Calculate(p2, 105)
	if !almostEqual(r2.UnrealizedPnL, 2*r1.UnrealizedPnL) {
		t.Errorf("doubling leverage: pnl %v, want %v", r2.UnrealizedPnL, 2*r1.UnrealizedPnL)
	}
}

func TestCalculateCapitalUsed(t *testing.T) {
	p := newPosition(domain.SideLong, 100, 10_000, 4)
	res := Calculate(p, 100)
	if !almostEqual(res.CapitalUsed, 2500) {
		t.Errorf("capital used = %v, want 2500", res.CapitalUsed)
	}
}

func TestCalculateNearLiquidation(t *testing.T) {
	liq := 90.0
	p := newPosition(domain.SideLong, 100, 10_000, 5)
	p.LiquidationPrice = &liq

	tests := []struct {
		current float64
		want    bool
	}{
		{98.9, true},  // |98.9-90|/90 = 9.9% < 10%
		{99.1, false}, // 10.1%
		{90, true},
		{81.1, true},  // approaching from below
		{80.9, false}, // 10.1% below
	}
	for _, tt := range tests {
		if got := Calculate(p, tt.current).IsNearLiquidation; got != tt.want {
			t.Errorf("current=%v: near liquidation = %v, want %v", tt.current, got, tt.want)
		}
	}

	p.LiquidationPrice = nil
	if Calculate(p, 90).IsNearLiquidation {
		t.Error("near liquidation without a liquidation price")
	}
}

func TestCalculateDegenerateInputs(t *testing.T) {
	zeroEntry := newPosition(domain.SideLong, 0, 10_000, 5)
	if res := Calculate(zeroEntry, 100); res.UnrealizedPnL != 0 || res.PnLPercentage != 0 {
		t.Errorf("zero entry price: want neutral result, got %+v", res)
	}

	zeroLev := newPosition(domain.SideShort, 100, 10_000, 0)
	if res := Calculate(zeroLev, 90); res.UnrealizedPnL != 0 || res.CapitalUsed != 0 {
		t.Errorf("zero leverage: want neutral result, got %+v", res)
	}
}
