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
	"sync"
	"time"

	"exchange-settlement-go/internal/models"
	"exchange-settlement-go/internal/realtime"

	"go.uber.org/zap"
)

// Supervisor owns the set of running watches. New exchanges reach it two
// ways: the realtime feed delivers inserts as they happen, and a periodic
// scan of the store picks up anything the feed missed (including exchanges
// already pending when the process started).
type Supervisor struct {
	store    ExchangeStore
	prober   Prober
	notifier Notifier
	hub      *realtime.Hub
	cfg      models.WatcherConfig

	mu      sync.Mutex
	watches map[string]*Watch
	wg      sync.WaitGroup
	stopped bool

	stopChan chan struct{}
	doneChan chan struct{}
}

func NewSupervisor(st ExchangeStore, prober Prober, notifier Notifier, hub *realtime.Hub, cfg models.WatcherConfig) *Supervisor {
	return &Supervisor{
		store:    st,
		prober:   prober,
		notifier: notifier,
		hub:      hub,
		cfg:      cfg,
		watches:  make(map[string]*Watch),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start performs an initial scan and then runs the supervisor loop in the
// background. A failing initial scan is fatal: it means the store is not
// usable and the process should not pretend to be watching anything.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := s.scan(ctx); err != nil {
		return err
	}
	go s.run(ctx)
	return nil
}

// Stop winds down the loop and every running watch.
func (s *Supervisor) Stop() {
	close(s.stopChan)
	<-s.doneChan

	s.mu.Lock()
	s.stopped = true
	active := make([]*Watch, 0, len(s.watches))
	for _, w := range s.watches {
		active = append(active, w)
	}
	s.mu.Unlock()

	for _, w := range active {
		w.Stop()
	}
	s.wg.Wait()

	zap.L().Info("Watcher supervisor stopped")
}

// ActiveWatches returns the number of watches currently running.
func (s *Supervisor) ActiveWatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches)
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.doneChan)

	sub := s.hub.Subscribe("exchanges", realtime.EventInsert)
	defer sub.Close()

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			s.handleInsert(ctx, event)
		case <-ticker.C:
			if err := s.scan(ctx); err != nil {
				zap.L().Error("Pending exchange scan failed", zap.Error(err))
			}
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Supervisor) handleInsert(ctx context.Context, event realtime.Event) {
	exchange, ok := event.Record.(*models.Exchange)
	if !ok || exchange == nil {
		zap.L().Debug("Ignoring insert event with unexpected record type")
		return
	}
	if exchange.Status != models.StatusPending {
		return
	}
	s.startWatch(ctx, exchange)
}

// scan picks up every pending exchange that has no running watch.
func (s *Supervisor) scan(ctx context.Context) error {
	pending, err := s.store.ListPendingExchanges(ctx)
	if err != nil {
		return err
	}
	for i := range pending {
		s.startWatch(ctx, &pending[i])
	}
	return nil
}

// startWatch launches a watch for the exchange unless one is already
// running. The map entry is removed when the watch finishes, so a later
// rescan of a still-pending exchange starts a fresh watch.
func (s *Supervisor) startWatch(ctx context.Context, exchange *models.Exchange) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if _, running := s.watches[exchange.Id]; running {
		s.mu.Unlock()
		return
	}

	w := NewWatch(WatchConfig{
		Store:     s.store,
		Prober:    s.prober,
		Notifier:  s.notifier,
		Publisher: s.hub,
		Exchange:  exchange,
		Watcher:   s.cfg,
	})
	s.watches[exchange.Id] = w
	s.wg.Add(1)
	s.mu.Unlock()

	zap.L().Info("Starting deposit watch",
		zap.String("exchange_id", exchange.Id),
		zap.String("exchange_code", exchange.ExchangeCode))

	go func() {
		defer s.wg.Done()
		w.Run(ctx)
		s.mu.Lock()
		delete(s.watches, w.ExchangeId())
		s.mu.Unlock()
	}()
}
