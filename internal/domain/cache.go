package domain

import (
	"context"
	"time"
)

// PriceCache provides shared access to the latest observed prices. The
// tracker writes through to it every tick; snapshot valuation reads from it.
type PriceCache interface {
	SetPrice(ctx context.Context, asset string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, asset string) (float64, time.Time, error)
	GetPrices(ctx context.Context, assets []string) (map[string]float64, error)
}

// PriceProvider is the external market-data feed. Errors are transient; a
// failed fetch is retried on the next tracker tick, never treated as a zero
// price.
type PriceProvider interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}
