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

package watcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"exchange-settlement-go/internal/models"
	"exchange-settlement-go/internal/realtime"
	"exchange-settlement-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ExchangeStore is the slice of the persistence contract the watcher needs.
type ExchangeStore interface {
	GetExchange(ctx context.Context, id string) (*models.Exchange, error)
	GetExchangeDetails(ctx context.Context, id string) (*models.ExchangeDetails, error)
	TransitionStatus(ctx context.Context, id string, from, to models.ExchangeStatus) (*models.Exchange, error)
	ListPendingExchanges(ctx context.Context) ([]models.Exchange, error)
}

// Prober answers whether the expected payment has arrived at an address.
type Prober interface {
	CheckDeposit(ctx context.Context, address, symbol string, expectedAmount decimal.Decimal) models.DepositObservation
}

// Notifier emits the lifecycle notifications the watcher fires. Delivery is
// best-effort; implementations never return errors.
type Notifier interface {
	PaymentDetected(ctx context.Context, exchange *models.Exchange, confirmations, required int)
	ExchangeCompleted(ctx context.Context, exchange *models.Exchange)
	ExchangeTimedOut(ctx context.Context, exchange *models.Exchange)
}

// Publisher receives change events for open tracking views.
type Publisher interface {
	Publish(event realtime.Event)
}

// action is the pure outcome of evaluating one tick.
type action int

const (
	actionWait action = iota
	actionDetect
	actionSettle
	actionExpire
	actionStandDown
)

// decide maps the current record state, the probe observation and the
// attempt count to the single action the tick must take. It performs no I/O.
func decide(status models.ExchangeStatus, obs models.DepositObservation, attempts, maxAttempts, required int) action {
	if status != models.StatusPending && status != models.StatusConfirming {
		return actionStandDown
	}

	seen := obs.Status == models.DepositFound || obs.Status == models.DepositConfirmed
	if seen {
		if obs.Confirmations >= required {
			return actionSettle
		}
		if status == models.StatusPending {
			// A payment spotted on the exhausting tick still gets detected;
			// the budget re-applies on the next tick if it stalls.
			return actionDetect
		}
	}

	if attempts >= maxAttempts {
		return actionExpire
	}
	return actionWait
}

// WatchConfig wires one Watch.
type WatchConfig struct {
	Store     ExchangeStore
	Prober    Prober
	Notifier  Notifier
	Publisher Publisher
	Exchange  *models.Exchange
	Watcher   models.WatcherConfig
}

// Watch drives a single exchange through its lifecycle: poll for the
// expected deposit, advance the record on detection and confirmation, cancel
// it when the deposit window closes. Exactly one Watch runs per exchange.
type Watch struct {
	store     ExchangeStore
	prober    Prober
	notifier  Notifier
	publisher Publisher
	cfg       models.WatcherConfig

	exchangeId     string
	depositAddress string

	// Per-watch state; never shared across watches.
	attempts      int
	confirmations int

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewWatch(cfg WatchConfig) *Watch {
	return &Watch{
		store:         cfg.Store,
		prober:        cfg.Prober,
		notifier:      cfg.Notifier,
		publisher:     cfg.Publisher,
		cfg:           cfg.Watcher,
		exchangeId:    cfg.Exchange.Id,
		confirmations: -1,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// ExchangeId returns the id of the watched exchange.
func (w *Watch) ExchangeId() string {
	return w.exchangeId
}

// Stop cancels the watch and waits for it to wind down. No transition or
// notification is applied after Stop returns.
func (w *Watch) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	<-w.doneChan
}

// Run polls until the exchange reaches a terminal state, the attempt budget
// is exhausted, or the watch is cancelled. The first probe happens after the
// initial delay, subsequent probes on the poll interval. Errors inside a
// tick are contained within that tick; the loop itself never dies early.
func (w *Watch) Run(ctx context.Context) {
	defer close(w.doneChan)

	if !w.resolveDepositAddress(ctx) {
		return
	}

	zap.L().Info("Watching exchange for deposit",
		zap.String("exchange_id", w.exchangeId),
		zap.Duration("poll_interval", w.cfg.PollInterval),
		zap.Int("max_attempts", w.cfg.MaxAttempts))

	if !w.wait(ctx, w.cfg.InitialDelay) {
		return
	}
	if w.tick(ctx) {
		return
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if w.tick(ctx) {
				return
			}
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// resolveDepositAddress loads the payment method the user was told to pay
// into. Without one the deposit cannot be verified and the watch ends
// immediately, leaving the record for an administrator.
func (w *Watch) resolveDepositAddress(ctx context.Context) bool {
	details, err := w.store.GetExchangeDetails(ctx, w.exchangeId)
	if err != nil {
		zap.L().Error("Failed to load exchange details for watch",
			zap.String("exchange_id", w.exchangeId),
			zap.Error(err))
		return false
	}
	if details.Exchange.Status != models.StatusPending {
		zap.L().Debug("Exchange no longer pending, not watching",
			zap.String("exchange_id", w.exchangeId),
			zap.String("status", string(details.Exchange.Status)))
		return false
	}
	if details.PaymentMethod == nil {
		zap.L().Warn("Exchange has no payment method, deposit cannot be verified",
			zap.String("exchange_id", w.exchangeId))
		return false
	}
	w.depositAddress = details.PaymentMethod.Details
	return true
}

// tick runs one probe cycle. It returns true when the watch is finished.
func (w *Watch) tick(ctx context.Context) bool {
	w.attempts++

	exchange, err := w.store.GetExchange(ctx, w.exchangeId)
	if err != nil {
		if errors.Is(err, store.ErrExchangeNotFound) {
			zap.L().Info("Watched exchange deleted, standing down",
				zap.String("exchange_id", w.exchangeId))
			return true
		}
		zap.L().Warn("Failed to read exchange during tick",
			zap.String("exchange_id", w.exchangeId),
			zap.Error(err))
		return false
	}

	// Re-reading the record each tick is what lets an external
	// administrator write win: the watcher observes it here and aborts.
	if exchange.Status != models.StatusPending && exchange.Status != models.StatusConfirming {
		zap.L().Info("Exchange changed externally, standing down",
			zap.String("exchange_id", w.exchangeId),
			zap.String("status", string(exchange.Status)))
		return true
	}

	obs := w.prober.CheckDeposit(ctx, w.depositAddress, exchange.FromCurrency, exchange.SendAmount)

	switch decide(exchange.Status, obs, w.attempts, w.cfg.MaxAttempts, w.cfg.RequiredConfirmations) {
	case actionWait:
		if obs.Status != models.DepositNotFound && obs.Confirmations != w.confirmations {
			w.confirmations = obs.Confirmations
			zap.L().Info("Deposit confirming",
				zap.String("exchange_id", w.exchangeId),
				zap.Int("confirmations", obs.Confirmations),
				zap.Int("required", w.cfg.RequiredConfirmations))
		}
		return false

	case actionDetect:
		w.confirmations = obs.Confirmations
		return w.detect(ctx, obs)

	case actionSettle:
		w.confirmations = obs.Confirmations
		if exchange.Status == models.StatusPending {
			done := w.detect(ctx, obs)
			if done || w.stopping() {
				return true
			}
		}
		return w.settle(ctx)

	case actionExpire:
		return w.expire(ctx, exchange.Status)

	default:
		return true
	}
}

// detect applies the pending -> confirming edge. The compare-and-swap in the
// store makes the payment-detected notification fire at most once even if
// several ticks observe the deposit.
func (w *Watch) detect(ctx context.Context, obs models.DepositObservation) bool {
	if w.stopping() {
		return true
	}

	updated, err := w.store.TransitionStatus(ctx, w.exchangeId, models.StatusPending, models.StatusConfirming)
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) || errors.Is(err, store.ErrExchangeNotFound) {
			zap.L().Info("Detection superseded by concurrent change, standing down",
				zap.String("exchange_id", w.exchangeId))
			return true
		}
		zap.L().Warn("Failed to mark payment detected, will retry next tick",
			zap.String("exchange_id", w.exchangeId),
			zap.Error(err))
		return false
	}

	zap.L().Info("Payment detected",
		zap.String("exchange_id", w.exchangeId),
		zap.Int("confirmations", obs.Confirmations),
		zap.String("received_amount", obs.ReceivedAmount.String()))

	w.notifier.PaymentDetected(ctx, updated, obs.Confirmations, w.cfg.RequiredConfirmations)
	w.publish(realtime.EventUpdate, updated)
	return false
}

// settle marches the exchange through the remaining states once the deposit
// has enough confirmations. The settle delay between hops stands in for the
// actual payout legs; the visible state sequence and its order are the
// contract.
func (w *Watch) settle(ctx context.Context) bool {
	sequence := []models.ExchangeStatus{
		models.StatusConfirming,
		models.StatusExchanging,
		models.StatusSending,
		models.StatusCompleted,
	}

	var final *models.Exchange
	for i := 1; i < len(sequence); i++ {
		if i > 1 && !w.wait(ctx, w.cfg.SettleDelay) {
			return true
		}
		if w.stopping() {
			return true
		}

		updated, err := w.store.TransitionStatus(ctx, w.exchangeId, sequence[i-1], sequence[i])
		if err != nil {
			if errors.Is(err, store.ErrStatusConflict) || errors.Is(err, store.ErrExchangeNotFound) {
				zap.L().Info("Settlement superseded by concurrent change, standing down",
					zap.String("exchange_id", w.exchangeId),
					zap.String("at", string(sequence[i-1])))
				return true
			}
			zap.L().Error("Settlement transition failed",
				zap.String("exchange_id", w.exchangeId),
				zap.String("from", string(sequence[i-1])),
				zap.String("to", string(sequence[i])),
				zap.Error(err))
			return true
		}
		w.publish(realtime.EventUpdate, updated)
		final = updated
	}

	zap.L().Info("Exchange settled",
		zap.String("exchange_id", w.exchangeId),
		zap.Int("attempts", w.attempts))

	w.notifier.ExchangeCompleted(ctx, final)
	return true
}

// expire cancels the exchange after the deposit window closed without a
// qualifying payment.
func (w *Watch) expire(ctx context.Context, from models.ExchangeStatus) bool {
	if w.stopping() {
		return true
	}

	updated, err := w.store.TransitionStatus(ctx, w.exchangeId, from, models.StatusCancelled)
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) || errors.Is(err, store.ErrExchangeNotFound) {
			zap.L().Info("Expiry superseded by concurrent change, standing down",
				zap.String("exchange_id", w.exchangeId))
			return true
		}
		zap.L().Error("Failed to cancel expired exchange",
			zap.String("exchange_id", w.exchangeId),
			zap.Error(err))
		return true
	}

	zap.L().Info("Exchange timed out waiting for deposit",
		zap.String("exchange_id", w.exchangeId),
		zap.Int("attempts", w.attempts))

	w.notifier.ExchangeTimedOut(ctx, updated)
	w.publish(realtime.EventUpdate, updated)
	return true
}

func (w *Watch) publish(eventType realtime.EventType, exchange *models.Exchange) {
	if w.publisher == nil {
		return
	}
	w.publisher.Publish(realtime.Event{
		Table:  "exchanges",
		Type:   eventType,
		Record: exchange,
	})
}

// stopping reports whether Stop has been requested. Checked immediately
// before every state mutation so a racing in-flight probe result is never
// applied after cancellation.
func (w *Watch) stopping() bool {
	select {
	case <-w.stopChan:
		return true
	default:
		return false
	}
}

// wait sleeps for d unless the watch is cancelled first.
func (w *Watch) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !w.stopping()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-w.stopChan:
		return false
	case <-ctx.Done():
		return false
	}
}
