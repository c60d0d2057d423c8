/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package rates

import (
	"context"
	"net/http"
	"sync"
	"time"

	"exchange-settlement-go/internal/models"

	"go.uber.org/zap"
)

// Cache holds the most recent price matrix for the configured currency set
// and serves pairwise conversion rates from it. A refresh failure keeps the
// previous matrix; readers always see the last good data.
type Cache struct {
	client  *http.Client
	baseURL string
	symbols []string

	refreshInterval time.Duration

	mu          sync.RWMutex
	prices      map[string]map[string]float64
	lastUpdated time.Time

	stopChan chan struct{}
	doneChan chan struct{}
}

func New(cfg models.RatesConfig, symbols []string) *Cache {
	return &Cache{
		client:          &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:         cfg.BaseURL,
		symbols:         symbols,
		refreshInterval: cfg.RefreshInterval,
		prices:          make(map[string]map[string]float64),
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start performs one blocking refresh so consumers see rates immediately,
// then refreshes on the configured interval until Stop. The initial failure
// is logged, not fatal; the next tick gets another chance.
func (c *Cache) Start(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		zap.L().Error("Initial rate refresh failed", zap.Error(err))
	}

	go c.refreshLoop(ctx)

	zap.L().Info("Rate cache started",
		zap.Int("symbols", len(c.symbols)),
		zap.Duration("refresh_interval", c.refreshInterval))
}

// Stop gracefully stops the refresh loop
func (c *Cache) Stop() {
	close(c.stopChan)
	<-c.doneChan
	zap.L().Info("Rate cache stopped")
}

func (c *Cache) refreshLoop(ctx context.Context) {
	defer close(c.doneChan)

	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				zap.L().Warn("Rate refresh failed, serving stale rates",
					zap.Time("last_updated", c.LastUpdated()),
					zap.Error(err))
			}
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Refresh fetches the full price matrix in one batched call and swaps it in.
func (c *Cache) Refresh(ctx context.Context) error {
	coinIDs, fiatSymbols := partitionSymbols(c.symbols)
	if len(coinIDs) == 0 || len(fiatSymbols) == 0 {
		zap.L().Debug("No refreshable symbols configured",
			zap.Int("coin_ids", len(coinIDs)),
			zap.Int("fiat_symbols", len(fiatSymbols)))
		return nil
	}

	prices, err := fetchPrices(ctx, c.client, c.baseURL, coinIDs, fiatSymbols)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.prices = prices
	c.lastUpdated = time.Now().UTC()
	c.mu.Unlock()

	zap.L().Debug("Rates refreshed",
		zap.Int("assets", len(prices)),
		zap.Strings("fiat", fiatSymbols))
	return nil
}

// LastUpdated returns the time of the last successful refresh.
func (c *Cache) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdated
}

// SetPrices replaces the matrix directly. Test hook.
func (c *Cache) SetPrices(prices map[string]map[string]float64) {
	c.mu.Lock()
	c.prices = prices
	c.lastUpdated = time.Now().UTC()
	c.mu.Unlock()
}

// ConversionRate returns the spot rate from one configured symbol to
// another. The second return value is false when the rate cannot be derived:
// empty cache, unmapped symbol, or a fiat leg missing from the matrix.
func (c *Cache) ConversionRate(from, to string) (float64, bool) {
	fromID, fromOk := CoinID(from)
	toID, toOk := CoinID(to)
	if !fromOk || !toOk {
		return 0, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.prices) == 0 {
		return 0, false
	}

	fromIsFiat := fiatIDs[fromID]
	toIsFiat := fiatIDs[toID]

	switch {
	case !fromIsFiat && !toIsFiat:
		// Crypto to crypto through the USD leg.
		fromUsd := c.prices[fromID]["usd"]
		toUsd := c.prices[toID]["usd"]
		if fromUsd > 0 && toUsd > 0 {
			return fromUsd / toUsd, true
		}
	case !fromIsFiat && toIsFiat:
		if price, ok := c.prices[fromID][toID]; ok && price > 0 {
			return price, true
		}
	case fromIsFiat && !toIsFiat:
		if price, ok := c.prices[toID][fromID]; ok && price > 0 {
			return 1 / price, true
		}
	default:
		// Fiat to fiat is not a supported exchange leg.
	}

	return 0, false
}
