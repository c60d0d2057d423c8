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
	"exchange-settlement-go/internal/watcher"

	"go.uber.org/zap"
)

// The watcher binary runs the deposit watcher on its own, for deployments
// where the API is served elsewhere. New exchanges are picked up by the
// periodic store scan.
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

	logger.Info("Deposit watcher running",
		zap.Duration("scan_interval", cfg.Watcher.ScanInterval),
		zap.Int("active_watches", supervisor.ActiveWatches()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	supervisor.Stop()
	logger.Info("Watcher stopped")
}
