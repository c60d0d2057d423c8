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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"exchange-settlement-go/internal/common"
	"exchange-settlement-go/internal/config"
	"exchange-settlement-go/internal/rates"

	"go.uber.org/zap"
)

// One-shot rate lookup for operators: fetches the current prices and prints
// the conversion rate for a pair.
func main() {
	from := flag.String("from", "", "currency to convert from (e.g. BTC)")
	to := flag.String("to", "", "currency to convert to (e.g. USDT)")
	flag.Parse()

	logger, cleanup := common.InitializeLogger()
	defer cleanup()

	if *from == "" || *to == "" {
		fmt.Fprintln(os.Stderr, "usage: rates -from BTC -to USDT")
		os.Exit(2)
	}
	fromSymbol := strings.ToUpper(*from)
	toSymbol := strings.ToUpper(*to)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	cache := rates.New(cfg.Rates, []string{fromSymbol, toSymbol})
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Rates.RequestTimeout)
	defer cancel()

	if err := cache.Refresh(ctx); err != nil {
		logger.Fatal("Failed to fetch prices", zap.Error(err))
	}

	rate, ok := cache.ConversionRate(fromSymbol, toSymbol)
	if !ok {
		fmt.Fprintf(os.Stderr, "no rate available for %s -> %s\n", fromSymbol, toSymbol)
		os.Exit(1)
	}

	fmt.Printf("1 %s = %g %s\n", fromSymbol, rate, toSymbol)
}
