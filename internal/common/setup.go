package common

import (
	"context"

	"exchange-settlement-go/internal/database"
	"exchange-settlement-go/internal/models"
	"exchange-settlement-go/internal/notify"
	"exchange-settlement-go/internal/rates"
	"exchange-settlement-go/internal/realtime"

	"go.uber.org/zap"
)

// defaultRateSymbols covers the stock catalog when the database has not been
// seeded yet; the rate cache still comes up usable.
var defaultRateSymbols = []string{"BTC", "ETH", "LTC", "USDT", "USD", "INR", "EUR"}

// Services bundles the shared backends every binary wires up the same way.
type Services struct {
	Store    *database.Service
	Rates    *rates.Cache
	Notifier *notify.Service
	Hub      *realtime.Hub
}

// InitializeServices builds the store, rate cache, notifier and realtime hub
// from configuration. The rate cache is started with the symbols of the
// configured currencies and holds its first refresh before returning.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	store, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	symbols := defaultRateSymbols
	currencies, err := store.ListCurrencies(ctx)
	if err != nil {
		zap.L().Warn("Failed to list currencies, using default rate symbols", zap.Error(err))
	} else if len(currencies) > 0 {
		symbols = make([]string, 0, len(currencies))
		for _, currency := range currencies {
			symbols = append(symbols, currency.Symbol)
		}
	}

	ratesCache := rates.New(cfg.Rates, symbols)
	ratesCache.Start(ctx)

	return &Services{
		Store:    store,
		Rates:    ratesCache,
		Notifier: notify.New(cfg.Notify),
		Hub:      realtime.NewHub(),
	}, nil
}

// Close tears the services down in reverse dependency order.
func (s *Services) Close() {
	s.Rates.Stop()
	s.Hub.Close()
	s.Store.Close()
}
