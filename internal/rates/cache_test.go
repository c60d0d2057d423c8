package rates

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"exchange-settlement-go/internal/models"
)

func testPrices() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"bitcoin":  {"usd": 43000, "inr": 3570000, "eur": 39500},
		"ethereum": {"usd": 2250, "inr": 186750, "eur": 2070},
		"tether":   {"usd": 1.0, "inr": 83.1, "eur": 0.92},
	}
}

func newTestCache() *Cache {
	cache := New(models.RatesConfig{RequestTimeout: time.Second}, []string{"BTC", "ETH", "USDT", "USD"})
	cache.SetPrices(testPrices())
	return cache
}

func TestConversionRate_CryptoToFiat(t *testing.T) {
	cache := newTestCache()

	rate, ok := cache.ConversionRate("BTC", "USD")
	if !ok {
		t.Fatal("Expected rate for BTC -> USD")
	}
	if rate != 43000 {
		t.Errorf("Expected 43000, got %g", rate)
	}
}

func TestConversionRate_FiatToCrypto(t *testing.T) {
	cache := newTestCache()

	rate, ok := cache.ConversionRate("USD", "BTC")
	if !ok {
		t.Fatal("Expected rate for USD -> BTC")
	}
	if math.Abs(rate-1.0/43000) > 1e-12 {
		t.Errorf("Expected reciprocal of 43000, got %g", rate)
	}
}

func TestConversionRate_CryptoToCrypto(t *testing.T) {
	cache := newTestCache()

	rate, ok := cache.ConversionRate("BTC", "ETH")
	if !ok {
		t.Fatal("Expected rate for BTC -> ETH")
	}
	expected := 43000.0 / 2250.0
	if math.Abs(rate-expected) > 1e-9 {
		t.Errorf("Expected %g, got %g", expected, rate)
	}
}

func TestConversionRate_RoundTrip(t *testing.T) {
	cache := newTestCache()

	forward, ok := cache.ConversionRate("BTC", "USDT")
	if !ok {
		t.Fatal("Expected forward rate")
	}
	back, ok := cache.ConversionRate("USDT", "BTC")
	if !ok {
		t.Fatal("Expected reverse rate")
	}
	if math.Abs(forward*back-1) > 1e-9 {
		t.Errorf("Expected round trip to be identity, got %g", forward*back)
	}
}

func TestConversionRate_Unavailable(t *testing.T) {
	cache := newTestCache()

	cases := []struct {
		name     string
		from, to string
	}{
		{"unmapped symbol", "DOGE", "USD"},
		{"fiat to fiat", "USD", "EUR"},
		{"asset missing from matrix", "XMR", "USD"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rate, ok := cache.ConversionRate(tc.from, tc.to); ok {
				t.Errorf("Expected no rate for %s -> %s, got %g", tc.from, tc.to, rate)
			}
		})
	}
}

func TestConversionRate_EmptyCache(t *testing.T) {
	cache := New(models.RatesConfig{RequestTimeout: time.Second}, []string{"BTC", "USD"})

	if _, ok := cache.ConversionRate("BTC", "USD"); ok {
		t.Error("Expected no rate before the first refresh")
	}
}

func TestCaseInsensitiveSymbols(t *testing.T) {
	cache := newTestCache()

	upper, ok := cache.ConversionRate("BTC", "USD")
	if !ok {
		t.Fatal("Expected rate for BTC -> USD")
	}
	lower, ok := cache.ConversionRate("btc", "usd")
	if !ok {
		t.Fatal("Expected rate for btc -> usd")
	}
	if upper != lower {
		t.Errorf("Expected case insensitive lookup, got %g and %g", upper, lower)
	}
}

func TestRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("ids") == "" || query.Get("vs_currencies") == "" {
			t.Errorf("Expected ids and vs_currencies parameters, got %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"bitcoin":{"usd":43000},"litecoin":{"usd":72.5}}`))
	}))
	defer server.Close()

	cache := New(models.RatesConfig{
		BaseURL:        server.URL,
		RequestTimeout: time.Second,
	}, []string{"BTC", "LTC", "USD"})

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	rate, ok := cache.ConversionRate("BTC", "LTC")
	if !ok {
		t.Fatal("Expected rate after refresh")
	}
	expected := 43000.0 / 72.5
	if math.Abs(rate-expected) > 1e-9 {
		t.Errorf("Expected %g, got %g", expected, rate)
	}
	if cache.LastUpdated().IsZero() {
		t.Error("Expected last updated timestamp after refresh")
	}
}

func TestRefresh_FailureKeepsStaleRates(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer failing.Close()

	cache := New(models.RatesConfig{
		BaseURL:        failing.URL,
		RequestTimeout: time.Second,
	}, []string{"BTC", "USD"})
	cache.SetPrices(testPrices())

	if err := cache.Refresh(context.Background()); err == nil {
		t.Fatal("Expected refresh error")
	}

	rate, ok := cache.ConversionRate("BTC", "USD")
	if !ok || rate != 43000 {
		t.Errorf("Expected stale rate 43000 to survive the failed refresh, got %g (ok=%v)", rate, ok)
	}
}

func TestPartitionSymbols(t *testing.T) {
	coinIDs, fiatSymbols := partitionSymbols([]string{"BTC", "btc", "USD", "ETH", "DOGE", "INR"})

	if len(coinIDs) != 2 {
		t.Errorf("Expected 2 coin ids, got %v", coinIDs)
	}
	if len(fiatSymbols) != 2 {
		t.Errorf("Expected 2 fiat symbols, got %v", fiatSymbols)
	}
	for _, id := range coinIDs {
		if id == "doge" {
			t.Error("Expected unmapped symbol to be skipped")
		}
	}
}
