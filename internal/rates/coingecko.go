package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// currencyToCoinID maps trading symbols to the price feed's canonical asset
// ids. Fiat symbols map to themselves in lowercase (the feed's vs_currency
// form).
var currencyToCoinID = map[string]string{
	// Crypto
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"LTC":   "litecoin",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"XMR":   "monero",
	"THETA": "theta-token",

	// Fiat
	"USD": "usd",
	"INR": "inr",
	"EUR": "eur",
}

var fiatIDs = map[string]bool{
	"usd": true,
	"inr": true,
	"eur": true,
}

// CoinID resolves a trading symbol to its canonical feed id, and reports
// whether the symbol is mapped at all.
func CoinID(symbol string) (string, bool) {
	id, ok := currencyToCoinID[strings.ToUpper(symbol)]
	return id, ok
}

// IsFiat reports whether the symbol resolves to a fiat vs_currency.
func IsFiat(symbol string) bool {
	id, ok := CoinID(symbol)
	return ok && fiatIDs[id]
}

// partitionSymbols splits the configured symbols into canonical crypto ids
// and fiat vs_currencies for a batched price call. Unmapped symbols are
// skipped; they simply never resolve to a rate.
func partitionSymbols(symbols []string) (coinIDs, fiatSymbols []string) {
	seenCoin := make(map[string]bool)
	seenFiat := make(map[string]bool)
	for _, symbol := range symbols {
		id, ok := CoinID(symbol)
		if !ok {
			continue
		}
		if fiatIDs[id] {
			if !seenFiat[id] {
				seenFiat[id] = true
				fiatSymbols = append(fiatSymbols, id)
			}
			continue
		}
		if !seenCoin[id] {
			seenCoin[id] = true
			coinIDs = append(coinIDs, id)
		}
	}
	return coinIDs, fiatSymbols
}

// fetchPrices performs one batched simple-price call, returning the price
// matrix {coinID: {fiatSymbol: price}}.
func fetchPrices(ctx context.Context, client *http.Client, baseURL string, coinIDs, fiatSymbols []string) (map[string]map[string]float64, error) {
	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s",
		strings.TrimSuffix(baseURL, "/"),
		url.QueryEscape(strings.Join(coinIDs, ",")),
		url.QueryEscape(strings.ToLower(strings.Join(fiatSymbols, ","))))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build price request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price feed request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	var prices map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&prices); err != nil {
		return nil, fmt.Errorf("failed to decode price response: %w", err)
	}
	return prices, nil
}
