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
	"os"
	"os/signal"
	"syscall"

	"exchange-settlement-go/internal/blockchain"
	"exchange-settlement-go/internal/common"
	"exchange-settlement-go/internal/config"
	"exchange-settlement-go/internal/exchange"
	"exchange-settlement-go/internal/server"
	"exchange-settlement-go/internal/watcher"

	"go.uber.org/zap"
)

// The server binary is the full storefront backend: the public API, the
// realtime stream and the deposit watcher all run in one process so status
// changes reach open tracking views without a round trip through the store.
func main() {
	logger, cleanup := common.InitializeLogger()
	defer cleanup()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	exchanges := exchange.NewService(services.Store, services.Rates, services.Notifier, services.Hub)

	supervisor := watcher.NewSupervisor(
		services.Store,
		blockchain.NewClient(cfg.Prober),
		services.Notifier,
		services.Hub,
		cfg.Watcher,
	)
	if err := supervisor.Start(ctx); err != nil {
		logger.Fatal("Failed to start deposit watcher", zap.Error(err))
	}

	srv := server.NewServer(server.Config{
		Server:    cfg.Server,
		Store:     services.Store,
		Exchanges: exchanges,
		Rates:     services.Rates,
		Hub:       services.Hub,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	if err := srv.Shutdown(); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	supervisor.Stop()

	logger.Info("Server stopped")
}
