package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/hedgecore/internal/domain"
)

func TestGetPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/prices/BTC" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"symbol":"BTC","price":65000.5}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0, time.Minute)
	price, err := c.GetPrice(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if price != 65000.5 {
		t.Errorf("price = %v, want 65000.5", price)
	}
}

func TestGetPriceMemoized(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"symbol":"ETH","price":3000}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0, time.Minute)
	for i := 0; i < 5; i++ {
		if _, err := c.GetPrice(context.Background(), "ETH"); err != nil {
			t.Fatalf("GetPrice: %v", err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("provider hit %d times, want 1", got)
	}

	c.Invalidate("ETH")
	if _, err := c.GetPrice(context.Background(), "ETH"); err != nil {
		t.Fatalf("GetPrice after invalidate: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("provider hit %d times after invalidate, want 2", got)
	}
}

func TestGetPriceNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0, time.Minute)
	_, err := c.GetPrice(context.Background(), "NOPE")
	if !errors.Is(err, domain.ErrPriceMissing) {
		t.Errorf("err = %v, want ErrPriceMissing", err)
	}
}

func TestGetPriceRejectsNonPositive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbol":"BTC","price":0}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0, time.Minute)
	if _, err := c.GetPrice(context.Background(), "BTC"); !errors.Is(err, domain.ErrPriceMissing) {
		t.Errorf("err = %v, want ErrPriceMissing for zero price", err)
	}
}

func TestGetPriceHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := c.GetPrice(ctx, "BTC"); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BTC-PERP", "BTC"},
		{"BTC-PERPETUAL", "BTC"},
		{"ETH_PERP", "ETH"},
		{"SOLPERP", "SOL"},
		{"BTCUSDT", "BTC"},
		{"eth-usd", "ETH"},
		{"BTC", "BTC"},
		{" doge ", "DOGE"},
		{"PERP", "PERP"}, // suffix only, nothing left to strip
	}
	for _, tt := range tests {
		if got := NormalizeSymbol(tt.in); got != tt.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
