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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"exchange-settlement-go/internal/models"
)

func Load() (*models.Config, error) {
	ratesRefresh, err := getEnvDuration("RATES_REFRESH_INTERVAL", 60*time.Second)
	if err != nil {
		return nil, err
	}

	ratesTimeout, err := getEnvDuration("RATES_REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	proberTimeout, err := getEnvDuration("INDEXER_REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	initialDelay, err := getEnvDuration("WATCHER_INITIAL_DELAY", 5*time.Second)
	if err != nil {
		return nil, err
	}

	pollInterval, err := getEnvDuration("WATCHER_POLL_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	settleDelay, err := getEnvDuration("WATCHER_SETTLE_DELAY", 5*time.Second)
	if err != nil {
		return nil, err
	}

	scanInterval, err := getEnvDuration("WATCHER_SCAN_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	retryDelay, err := getEnvDuration("WEBHOOK_RETRY_DELAY", 5*time.Second)
	if err != nil {
		return nil, err
	}

	webhookTimeout, err := getEnvDuration("WEBHOOK_REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	requiredConfirmations := getEnvInt("REQUIRED_CONFIRMATIONS", 3)

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "exchanges.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Rates: models.RatesConfig{
			BaseURL:         getEnvString("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
			RefreshInterval: ratesRefresh,
			RequestTimeout:  ratesTimeout,
		},
		Prober: models.ProberConfig{
			BaseURL:               getEnvString("BLOCKCYPHER_BASE_URL", "https://api.blockcypher.com"),
			Token:                 getEnvString("BLOCKCYPHER_TOKEN", ""),
			RequestTimeout:        proberTimeout,
			RequiredConfirmations: requiredConfirmations,
		},
		Watcher: models.WatcherConfig{
			InitialDelay:          initialDelay,
			PollInterval:          pollInterval,
			SettleDelay:           settleDelay,
			ScanInterval:          scanInterval,
			MaxAttempts:           getEnvInt("WATCHER_MAX_ATTEMPTS", 120),
			RequiredConfirmations: requiredConfirmations,
		},
		Notify: models.NotifyConfig{
			WebhookURL:     getEnvString("DISCORD_WEBHOOK_URL", ""),
			RetryDelay:     retryDelay,
			RequestTimeout: webhookTimeout,
			BotName:        getEnvString("WEBHOOK_BOT_NAME", "Exchange Tracker"),
			AvatarURL:      getEnvString("WEBHOOK_AVATAR_URL", ""),
		},
		Server: models.ServerConfig{
			Addr:            getEnvString("SERVER_ADDR", ":8080"),
			JWTSecret:       getEnvString("JWT_SECRET", ""),
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: shutdownTimeout,
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
