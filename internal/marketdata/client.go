// Package marketdata is the REST client for the external price provider.
// Prices are best effort: errors are transient and callers retry on their
// next scheduled tick.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/hedgecore/internal/cache"
	"github.com/alanyoungcy/hedgecore/internal/domain"
)

// defaultRequestTimeout keeps a stalled provider from stalling a whole
// tracker tick.
const defaultRequestTimeout = 5 * time.Second

// defaultMemoTTL is how long a fetched price satisfies repeat lookups. Short
// enough that every tracker tick still refreshes.
const defaultMemoTTL = 5 * time.Second

// Client fetches spot prices from the market-data provider. Lookups are
// memoized through a TTL cache so a burst of requests within one tick hits
// the network once per symbol.
type Client struct {
	baseURL    string
	httpClient *http.Client
	memo       *cache.Cache[float64]
	memoTTL    time.Duration
}

// NewClient creates a price provider client.
//
// baseURL is the provider API root, e.g. "https://api.prices.example.com".
// Non-positive timeout and memoTTL fall back to the package defaults.
func NewClient(baseURL string, timeout, memoTTL time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if memoTTL <= 0 {
		memoTTL = defaultMemoTTL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		memo:    cache.New[float64](memoTTL),
		memoTTL: memoTTL,
	}
}

// priceResponse is the provider's wire format for a single quote.
type priceResponse struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// GetPrice returns the current price for a base-asset symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	if cached, ok := c.memo.GetWithTTL("price:"+symbol, c.memoTTL); ok {
		return cached, nil
	}

	path := fmt.Sprintf("%s/v1/prices/%s", c.baseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, fmt.Errorf("marketdata: create request for %s: %w", symbol, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("marketdata: get price %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("marketdata: %s: %w", symbol, domain.ErrPriceMissing)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("marketdata: get price %s: status %d: %s", symbol, resp.StatusCode, string(body))
	}

	var pr priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return 0, fmt.Errorf("marketdata: decode price %s: %w", symbol, err)
	}
	if pr.Price <= 0 {
		return 0, fmt.Errorf("marketdata: %s: non-positive price %v: %w", symbol, pr.Price, domain.ErrPriceMissing)
	}

	c.memo.Set("price:"+symbol, pr.Price)
	return pr.Price, nil
}

// Invalidate drops any memoized price for the symbol.
func (c *Client) Invalidate(symbol string) {
	c.memo.Invalidate("price:" + symbol)
}

// Compile-time interface check.
var _ domain.PriceProvider = (*Client)(nil)

// perpSuffixes are exchange-specific markers stripped by NormalizeSymbol,
// longest match first.
var perpSuffixes = []string{"-PERPETUAL", "_PERP", "-PERP", "PERP", "-USDT", "USDT", "-USDC", "USDC", "-USD"}

// NormalizeSymbol reduces an exchange-specific contract symbol to its base
// asset, e.g. "BTC-PERP" and "BTCUSDT" both normalize to "BTC". Symbols with
// no recognized suffix pass through unchanged.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, suffix := range perpSuffixes {
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			return strings.TrimSuffix(s, suffix)
		}
	}
	return s
}
