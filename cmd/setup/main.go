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
	"strings"

	"exchange-settlement-go/internal/common"
	"exchange-settlement-go/internal/config"
	"exchange-settlement-go/internal/database"

	"go.uber.org/zap"
)

// Setup creates the schema and seeds the catalog (currencies, payment
// methods, tradable pairs) from a YAML file. Safe to re-run: every write is
// an upsert.
func main() {
	seedFile := flag.String("seed", "seed.yaml", "path to the catalog seed file")
	flag.Parse()

	logger, cleanup := common.InitializeLogger()
	defer cleanup()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	seed, err := common.LoadSeedConfig(*seedFile)
	if err != nil {
		logger.Fatal("Failed to load seed file", zap.Error(err))
	}

	ctx := context.Background()
	db, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	for _, currency := range seed.Currencies {
		symbol := strings.ToUpper(currency.Symbol)
		if err := db.UpsertCurrency(ctx, symbol, currency.Name, currency.Type, currency.IconUrl); err != nil {
			logger.Fatal("Failed to seed currency", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	for _, method := range seed.PaymentMethods {
		if err := db.UpsertPaymentMethod(ctx, method.Method, method.DetailType, method.Details, method.QrCodeUrl); err != nil {
			logger.Fatal("Failed to seed payment method", zap.String("method", method.Method), zap.Error(err))
		}
	}

	for _, pair := range seed.Pairs {
		from := strings.ToUpper(pair.From)
		to := strings.ToUpper(pair.To)

		paymentMethodId := ""
		if pair.PaymentMethod != "" {
			method, err := db.FindPaymentMethodByLabel(ctx, pair.PaymentMethod)
			if err != nil {
				logger.Fatal("Pair references unknown payment method",
					zap.String("pair", from+"/"+to),
					zap.String("payment_method", pair.PaymentMethod),
					zap.Error(err))
			}
			paymentMethodId = method.Id
		}

		if err := db.UpsertExchangePair(ctx, from, to, pair.Fee, pair.FeeType, paymentMethodId); err != nil {
			logger.Fatal("Failed to seed pair", zap.String("pair", from+"/"+to), zap.Error(err))
		}
	}

	fmt.Printf("Seeded %d currencies, %d payment methods, %d pairs into %s\n",
		len(seed.Currencies), len(seed.PaymentMethods), len(seed.Pairs), cfg.Database.Path)
}
