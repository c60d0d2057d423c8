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

package exchange

import (
	"context"
	"errors"
	"fmt"

	"exchange-settlement-go/internal/models"
	"exchange-settlement-go/internal/realtime"
	"exchange-settlement-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrRateUnavailable = errors.New("conversion rate unavailable")
	ErrAmountTooSmall  = errors.New("send amount does not cover the fee")
)

// RateSource provides live conversion rates. The boolean is false when the
// pair cannot be priced right now; callers must not treat that as a zero rate.
type RateSource interface {
	ConversionRate(from, to string) (float64, bool)
}

// Notifier emits the service-level notifications.
type Notifier interface {
	ExchangeCreated(ctx context.Context, exchange *models.Exchange, userEmail string)
	AdminStatusChanged(ctx context.Context, exchange *models.Exchange, adminUsername string)
}

// Publisher receives change events for open tracking views.
type Publisher interface {
	Publish(event realtime.Event)
}

// CreateRequest describes a new exchange order. UserId is empty for
// anonymous orders.
type CreateRequest struct {
	UserId                 string          `json:"user_id"`
	FromCurrency           string          `json:"from_currency"`
	ToCurrency             string          `json:"to_currency"`
	SendAmount             decimal.Decimal `json:"send_amount"`
	RecipientWalletAddress string          `json:"recipient_wallet_address"`
}

// Service implements the order lifecycle operations that sit in front of the
// store: quoting and creating exchanges, serving tracking views, and the
// administrator overrides.
type Service struct {
	store     store.ExchangeStore
	rates     RateSource
	notifier  Notifier
	publisher Publisher
}

func NewService(st store.ExchangeStore, rates RateSource, notifier Notifier, publisher Publisher) *Service {
	return &Service{
		store:     st,
		rates:     rates,
		notifier:  notifier,
		publisher: publisher,
	}
}

// CreateExchange prices the order at the current rate, applies the pair's
// fee policy and persists the result. The locked-in amounts never move with
// the market afterwards.
func (s *Service) CreateExchange(ctx context.Context, req CreateRequest) (*models.Exchange, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	pair, err := s.store.GetExchangePair(ctx, req.FromCurrency, req.ToCurrency)
	if err != nil {
		return nil, err
	}

	rate, ok := s.rates.ConversionRate(req.FromCurrency, req.ToCurrency)
	if !ok {
		return nil, fmt.Errorf("%w: %s to %s", ErrRateUnavailable, req.FromCurrency, req.ToCurrency)
	}

	grossAmount := req.SendAmount.Mul(decimal.NewFromFloat(rate))
	feeAmount, feeDetails := applyFee(grossAmount, pair)
	receiveAmount := grossAmount.Sub(feeAmount)
	if receiveAmount.Sign() <= 0 {
		return nil, ErrAmountTooSmall
	}

	created, err := s.store.CreateExchange(ctx, store.CreateExchangeParams{
		UserId:                 req.UserId,
		FromCurrency:           req.FromCurrency,
		ToCurrency:             req.ToCurrency,
		SendAmount:             req.SendAmount,
		ReceiveAmount:          receiveAmount,
		FeeAmount:              feeAmount,
		FeeDetails:             feeDetails,
		UsdValue:               s.usdValue(req.FromCurrency, req.SendAmount),
		RecipientWalletAddress: req.RecipientWalletAddress,
		PaymentMethodId:        pair.PaymentMethodId,
	})
	if err != nil {
		return nil, err
	}

	s.notifier.ExchangeCreated(ctx, created, s.userEmail(ctx, req.UserId))
	s.publish(realtime.EventInsert, created)

	return created, nil
}

// Tracking returns the exchange together with the payment method the user
// must pay into.
func (s *Service) Tracking(ctx context.Context, id string) (*models.ExchangeDetails, error) {
	return s.store.GetExchangeDetails(ctx, id)
}

// TrackingByCode resolves the short human-facing code printed on the order
// confirmation.
func (s *Service) TrackingByCode(ctx context.Context, code string) (*models.ExchangeDetails, error) {
	exchange, err := s.store.GetExchangeByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.store.GetExchangeDetails(ctx, exchange.Id)
}

// UserExchanges lists a user's exchange history, newest first.
func (s *Service) UserExchanges(ctx context.Context, userId string) ([]models.Exchange, error) {
	return s.store.GetUserExchanges(ctx, userId)
}

// AdminSetStatus forces an exchange to completed or cancelled. The
// compare-and-swap against the status the administrator was looking at means
// an exchange the watcher advanced in the meantime is not clobbered; the
// caller gets ErrStatusConflict and can re-read.
func (s *Service) AdminSetStatus(ctx context.Context, id string, to models.ExchangeStatus, adminUsername string) (*models.Exchange, error) {
	if to != models.StatusCompleted && to != models.StatusCancelled {
		return nil, fmt.Errorf("%w: administrators may only set completed or cancelled", store.ErrInvalidTransition)
	}

	current, err := s.store.GetExchange(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, fmt.Errorf("%w: exchange already %s", store.ErrInvalidTransition, current.Status)
	}

	updated, err := s.store.TransitionStatus(ctx, id, current.Status, to)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Administrator changed exchange status",
		zap.String("exchange_id", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(to)),
		zap.String("admin", adminUsername))

	s.notifier.AdminStatusChanged(ctx, updated, adminUsername)
	s.publish(realtime.EventUpdate, updated)

	return updated, nil
}

// AdminDelete removes an exchange record entirely.
func (s *Service) AdminDelete(ctx context.Context, id string) error {
	exchange, err := s.store.GetExchange(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteExchange(ctx, id); err != nil {
		return err
	}
	s.publish(realtime.EventDelete, exchange)
	return nil
}

func validateCreateRequest(req CreateRequest) error {
	if req.FromCurrency == "" || req.ToCurrency == "" {
		return errors.New("from and to currencies are required")
	}
	if req.FromCurrency == req.ToCurrency {
		return errors.New("from and to currencies must differ")
	}
	if req.SendAmount.Sign() <= 0 {
		return errors.New("send amount must be positive")
	}
	if req.RecipientWalletAddress == "" {
		return errors.New("recipient wallet address is required")
	}
	return nil
}

// applyFee computes the fee in units of the receive currency.
func applyFee(grossAmount decimal.Decimal, pair *models.ExchangePair) (decimal.Decimal, string) {
	switch pair.FeeType {
	case "percentage":
		fee := grossAmount.Mul(decimal.NewFromFloat(pair.Fee)).Div(decimal.NewFromInt(100))
		return fee, fmt.Sprintf("%g%% exchange fee", pair.Fee)
	case "fixed":
		return decimal.NewFromFloat(pair.Fee), fmt.Sprintf("%g %s flat fee", pair.Fee, pair.ToCurrency)
	default:
		return decimal.Zero, "no fee"
	}
}

// usdValue prices the deposit leg in USD for reporting. Reporting must not
// block order creation, so an unpriceable leg records zero.
func (s *Service) usdValue(fromCurrency string, sendAmount decimal.Decimal) decimal.Decimal {
	usdRate, ok := s.rates.ConversionRate(fromCurrency, "USD")
	if !ok {
		zap.L().Warn("USD value unavailable for exchange",
			zap.String("from_currency", fromCurrency))
		return decimal.Zero
	}
	return sendAmount.Mul(decimal.NewFromFloat(usdRate))
}

// userEmail resolves the notification email for a user, tolerating missing
// profiles and anonymous orders.
func (s *Service) userEmail(ctx context.Context, userId string) string {
	if userId == "" {
		return ""
	}
	profile, err := s.store.GetProfile(ctx, userId)
	if err != nil {
		if !errors.Is(err, store.ErrProfileNotFound) {
			zap.L().Debug("Failed to load profile for notification",
				zap.String("user_id", userId),
				zap.Error(err))
		}
		return ""
	}
	return profile.Email
}

func (s *Service) publish(eventType realtime.EventType, exchange *models.Exchange) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(realtime.Event{
		Table:  "exchanges",
		Type:   eventType,
		Record: exchange,
	})
}
