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

package blockchain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"exchange-settlement-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// symbolNetworks maps trading symbols to the indexer's network path.
var symbolNetworks = map[string]string{
	"BTC":  "btc/main",
	"LTC":  "ltc/main",
	"ETH":  "eth/main",
	"USDT": "eth/main",
}

// symbolDivisors maps trading symbols to the smallest-unit divisor the
// indexer reports output values in.
var symbolDivisors = map[string]decimal.Decimal{
	"BTC":  decimal.New(1, 8),
	"LTC":  decimal.New(1, 8),
	"ETH":  decimal.New(1, 18),
	"USDT": decimal.New(1, 6), // ERC20 USDT, 6 decimals
}

// matchTolerance absorbs float and fee rounding noise in the sender's
// amount: a deposit of at least 99.9% of the expected amount qualifies.
var matchTolerance = decimal.NewFromFloat(0.999)

type txOutput struct {
	Addresses []string `json:"addresses"`
	Value     int64    `json:"value"`
}

type txRecord struct {
	Confirmations int        `json:"confirmations"`
	Outputs       []txOutput `json:"outputs"`
}

type addressResponse struct {
	Txs            []txRecord `json:"txs"`
	UnconfirmedTxs []txRecord `json:"unconfirmed_txs"`
}

// Client probes the blockchain indexer for expected deposits.
type Client struct {
	httpClient            *http.Client
	baseURL               string
	token                 string
	requiredConfirmations int
}

func NewClient(cfg models.ProberConfig) *Client {
	return &Client{
		httpClient:            &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:               strings.TrimSuffix(cfg.BaseURL, "/"),
		token:                 cfg.Token,
		requiredConfirmations: cfg.RequiredConfirmations,
	}
}

func notFound() models.DepositObservation {
	return models.DepositObservation{
		Status:         models.DepositNotFound,
		Confirmations:  0,
		ReceivedAmount: decimal.Zero,
	}
}

// CheckDeposit answers whether a payment of at least expectedAmount has
// arrived at address, and with how many confirmations. Probe failures
// degrade to a not_found observation so the caller just tries again next
// tick; they are logged distinctly so operators can tell "no deposit yet"
// from "probe is broken".
func (c *Client) CheckDeposit(ctx context.Context, address, symbol string, expectedAmount decimal.Decimal) models.DepositObservation {
	network, networkOk := symbolNetworks[strings.ToUpper(symbol)]
	divisor, divisorOk := symbolDivisors[strings.ToUpper(symbol)]
	if !networkOk || !divisorOk {
		zap.L().Warn("Unsupported currency for deposit check",
			zap.String("currency", symbol))
		return notFound()
	}

	data, err := c.fetchAddressHistory(ctx, network, address)
	if err != nil {
		zap.L().Warn("Deposit probe failed",
			zap.String("address", address),
			zap.String("network", network),
			zap.Error(err))
		return notFound()
	}
	if data == nil {
		// Address unknown to the indexer: no payment yet.
		return notFound()
	}

	// Merge unconfirmed and confirmed history, then pick the qualifying
	// match with the most confirmations so a duplicate or retried payment
	// resolves deterministically in favor of the most final transaction.
	allTxs := append(data.UnconfirmedTxs, data.Txs...)
	threshold := expectedAmount.Mul(matchTolerance)

	best := notFound()
	for _, tx := range allTxs {
		for _, output := range tx.Outputs {
			if !outputPays(output, address) {
				continue
			}
			received := decimal.NewFromInt(output.Value).Div(divisor)
			if received.LessThan(threshold) {
				continue
			}
			if best.Status == models.DepositNotFound || tx.Confirmations > best.Confirmations {
				best = models.DepositObservation{
					Status:         c.classify(tx.Confirmations),
					Confirmations:  tx.Confirmations,
					ReceivedAmount: received,
				}
			}
		}
	}

	return best
}

func (c *Client) classify(confirmations int) models.DepositStatus {
	if confirmations >= c.requiredConfirmations {
		return models.DepositConfirmed
	}
	return models.DepositFound
}

func outputPays(output txOutput, address string) bool {
	for _, outputAddress := range output.Addresses {
		if outputAddress == address {
			return true
		}
	}
	return false
}

// fetchAddressHistory returns nil, nil when the indexer has never seen the
// address (HTTP 404).
func (c *Client) fetchAddressHistory(ctx context.Context, network, address string) (*addressResponse, error) {
	endpoint := fmt.Sprintf("%s/v1/%s/addrs/%s/full", c.baseURL, network, address)
	if c.token != "" {
		endpoint += "?token=" + c.token
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build indexer request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer returned status %d", resp.StatusCode)
	}

	var data addressResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode indexer response: %w", err)
	}
	return &data, nil
}
