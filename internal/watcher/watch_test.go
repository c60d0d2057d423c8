package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"exchange-settlement-go/internal/models"
	"exchange-settlement-go/internal/realtime"
	"exchange-settlement-go/internal/store"

	"github.com/shopspring/decimal"
)

func testWatcherConfig() models.WatcherConfig {
	return models.WatcherConfig{
		InitialDelay:          time.Millisecond,
		PollInterval:          2 * time.Millisecond,
		SettleDelay:           time.Millisecond,
		ScanInterval:          5 * time.Millisecond,
		MaxAttempts:           120,
		RequiredConfirmations: 3,
	}
}

// fakeStore mirrors the compare-and-swap semantics of the real store with an
// in-memory map.
type fakeStore struct {
	mu          sync.Mutex
	exchanges   map[string]*models.Exchange
	transitions []string
	failWith    error
}

func newFakeStore(exchanges ...*models.Exchange) *fakeStore {
	s := &fakeStore{exchanges: make(map[string]*models.Exchange)}
	for _, ex := range exchanges {
		copied := *ex
		s.exchanges[ex.Id] = &copied
	}
	return s
}

func (s *fakeStore) GetExchange(ctx context.Context, id string) (*models.Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.exchanges[id]
	if !ok {
		return nil, store.ErrExchangeNotFound
	}
	copied := *ex
	return &copied, nil
}

func (s *fakeStore) GetExchangeDetails(ctx context.Context, id string) (*models.ExchangeDetails, error) {
	ex, err := s.GetExchange(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ExchangeDetails{
		Exchange:      *ex,
		PaymentMethod: &models.PaymentMethod{Id: "pm1", Details: "bc1qdepositaddress"},
	}, nil
}

func (s *fakeStore) TransitionStatus(ctx context.Context, id string, from, to models.ExchangeStatus) (*models.Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	ex, ok := s.exchanges[id]
	if !ok {
		return nil, store.ErrExchangeNotFound
	}
	if !from.CanTransitionTo(to) {
		return nil, store.ErrInvalidTransition
	}
	if ex.Status != from {
		return nil, store.ErrStatusConflict
	}
	ex.Status = to
	s.transitions = append(s.transitions, string(from)+"->"+string(to))
	copied := *ex
	return &copied, nil
}

func (s *fakeStore) ListPendingExchanges(ctx context.Context) ([]models.Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []models.Exchange
	for _, ex := range s.exchanges {
		if ex.Status == models.StatusPending {
			pending = append(pending, *ex)
		}
	}
	return pending, nil
}

func (s *fakeStore) recordedTransitions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.transitions...)
}

func (s *fakeStore) setStatus(id string, status models.ExchangeStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges[id].Status = status
}

// fakeProber replays a scripted sequence of observations; the last entry
// repeats once the script runs out.
type fakeProber struct {
	mu     sync.Mutex
	script []models.DepositObservation
	calls  int
}

func (p *fakeProber) CheckDeposit(ctx context.Context, address, symbol string, expected decimal.Decimal) models.DepositObservation {
	p.mu.Lock()
	defer p.mu.Unlock()
	index := p.calls
	p.calls++
	if index >= len(p.script) {
		index = len(p.script) - 1
	}
	return p.script[index]
}

func (p *fakeProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func notSeen() models.DepositObservation {
	return models.DepositObservation{Status: models.DepositNotFound}
}

func seen(confirmations int) models.DepositObservation {
	status := models.DepositFound
	if confirmations >= 3 {
		status = models.DepositConfirmed
	}
	return models.DepositObservation{
		Status:         status,
		Confirmations:  confirmations,
		ReceivedAmount: decimal.RequireFromString("0.5"),
	}
}

type fakeNotifier struct {
	mu            sync.Mutex
	detected      int
	completed     int
	timedOut      int
	confirmations int
}

func (n *fakeNotifier) PaymentDetected(ctx context.Context, ex *models.Exchange, confirmations, required int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.detected++
	n.confirmations = confirmations
}

func (n *fakeNotifier) ExchangeCompleted(ctx context.Context, ex *models.Exchange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed++
}

func (n *fakeNotifier) ExchangeTimedOut(ctx context.Context, ex *models.Exchange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.timedOut++
}

func (n *fakeNotifier) counts() (detected, completed, timedOut int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.detected, n.completed, n.timedOut
}

func pendingExchange(id string) *models.Exchange {
	return &models.Exchange{
		Id:              id,
		ExchangeCode:    "ABCD1234",
		FromCurrency:    "BTC",
		ToCurrency:      "USDT",
		SendAmount:      decimal.RequireFromString("0.5"),
		ReceiveAmount:   decimal.RequireFromString("21250.75"),
		Status:          models.StatusPending,
		PaymentMethodId: "pm1",
	}
}

func newTestWatch(st *fakeStore, prober *fakeProber, notifier *fakeNotifier, cfg models.WatcherConfig, exchange *models.Exchange) *Watch {
	return NewWatch(WatchConfig{
		Store:     st,
		Prober:    prober,
		Notifier:  notifier,
		Publisher: realtime.NewHub(),
		Exchange:  exchange,
		Watcher:   cfg,
	})
}

func TestWatch_SettlesAfterConfirmation(t *testing.T) {
	exchange := pendingExchange("ex1")
	st := newFakeStore(exchange)
	prober := &fakeProber{script: []models.DepositObservation{
		seen(0), seen(1), seen(2), seen(3),
	}}
	notifier := &fakeNotifier{}

	w := newTestWatch(st, prober, notifier, testWatcherConfig(), exchange)
	w.Run(context.Background())

	expected := []string{
		"pending->confirming",
		"confirming->exchanging",
		"exchanging->sending",
		"sending->completed",
	}
	got := st.recordedTransitions()
	if len(got) != len(expected) {
		t.Fatalf("Expected transitions %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("Expected transitions %v, got %v", expected, got)
		}
	}

	final, _ := st.GetExchange(context.Background(), "ex1")
	if final.Status != models.StatusCompleted {
		t.Errorf("Expected completed, got %s", final.Status)
	}

	detected, completed, timedOut := notifier.counts()
	if detected != 1 || completed != 1 || timedOut != 0 {
		t.Errorf("Expected 1 detection and 1 completion, got %d/%d/%d", detected, completed, timedOut)
	}

	// The settle tick is the last probe; nothing polls after completion.
	if prober.callCount() != 4 {
		t.Errorf("Expected 4 probes, got %d", prober.callCount())
	}
}

func TestWatch_ImmediatelyConfirmedDeposit(t *testing.T) {
	exchange := pendingExchange("ex1")
	st := newFakeStore(exchange)
	prober := &fakeProber{script: []models.DepositObservation{seen(6)}}
	notifier := &fakeNotifier{}

	w := newTestWatch(st, prober, notifier, testWatcherConfig(), exchange)
	w.Run(context.Background())

	// Detection still happens before settlement even when the first
	// observation is already past the confirmation threshold.
	detected, completed, _ := notifier.counts()
	if detected != 1 {
		t.Errorf("Expected 1 detection, got %d", detected)
	}
	if completed != 1 {
		t.Errorf("Expected 1 completion, got %d", completed)
	}
	if prober.callCount() != 1 {
		t.Errorf("Expected a single probe, got %d", prober.callCount())
	}
}

func TestWatch_TimesOutWithoutDeposit(t *testing.T) {
	cfg := testWatcherConfig()
	cfg.MaxAttempts = 5

	exchange := pendingExchange("ex1")
	st := newFakeStore(exchange)
	prober := &fakeProber{script: []models.DepositObservation{notSeen()}}
	notifier := &fakeNotifier{}

	w := newTestWatch(st, prober, notifier, cfg, exchange)
	w.Run(context.Background())

	if prober.callCount() != 5 {
		t.Errorf("Expected exactly 5 probes, got %d", prober.callCount())
	}

	final, _ := st.GetExchange(context.Background(), "ex1")
	if final.Status != models.StatusCancelled {
		t.Errorf("Expected cancelled, got %s", final.Status)
	}

	detected, completed, timedOut := notifier.counts()
	if detected != 0 || completed != 0 || timedOut != 1 {
		t.Errorf("Expected only a timeout notification, got %d/%d/%d", detected, completed, timedOut)
	}
}

func TestWatch_StalledConfirmationsCancel(t *testing.T) {
	cfg := testWatcherConfig()
	cfg.MaxAttempts = 4

	exchange := pendingExchange("ex1")
	st := newFakeStore(exchange)
	// Deposit appears but never gains confirmations.
	prober := &fakeProber{script: []models.DepositObservation{seen(1)}}
	notifier := &fakeNotifier{}

	w := newTestWatch(st, prober, notifier, cfg, exchange)
	w.Run(context.Background())

	detected, completed, timedOut := notifier.counts()
	if detected != 1 {
		t.Errorf("Expected exactly 1 detection despite repeated sightings, got %d", detected)
	}
	if completed != 0 || timedOut != 1 {
		t.Errorf("Expected a timeout after stalled confirmations, got completed=%d timedOut=%d", completed, timedOut)
	}

	final, _ := st.GetExchange(context.Background(), "ex1")
	if final.Status != models.StatusCancelled {
		t.Errorf("Expected cancelled, got %s", final.Status)
	}
}

func TestWatch_StandsDownWhenAlreadyResolved(t *testing.T) {
	exchange := pendingExchange("ex1")
	exchange.Status = models.StatusCancelled
	st := newFakeStore(exchange)
	prober := &fakeProber{script: []models.DepositObservation{seen(3)}}
	notifier := &fakeNotifier{}

	w := newTestWatch(st, prober, notifier, testWatcherConfig(), exchange)
	w.Run(context.Background())

	if prober.callCount() != 0 {
		t.Errorf("Expected no probes for a resolved exchange, got %d", prober.callCount())
	}
	if len(st.recordedTransitions()) != 0 {
		t.Errorf("Expected no transitions, got %v", st.recordedTransitions())
	}
	detected, completed, timedOut := notifier.counts()
	if detected+completed+timedOut != 0 {
		t.Errorf("Expected no notifications, got %d/%d/%d", detected, completed, timedOut)
	}
}

func TestWatch_ExternalCancelBetweenTicks(t *testing.T) {
	exchange := pendingExchange("ex1")
	st := newFakeStore(exchange)
	prober := &fakeProber{script: []models.DepositObservation{notSeen()}}
	notifier := &fakeNotifier{}

	w := newTestWatch(st, prober, notifier, testWatcherConfig(), exchange)
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	// Let the watch poll at least once, then resolve the record externally,
	// the way an administrator cancellation lands between ticks.
	waitFor(t, time.Second, func() bool { return prober.callCount() >= 1 })
	st.setStatus("ex1", models.StatusCancelled)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected watch to stand down after external cancel")
	}

	if len(st.recordedTransitions()) != 0 {
		t.Errorf("Expected no transitions, got %v", st.recordedTransitions())
	}
	detected, completed, timedOut := notifier.counts()
	if detected+completed+timedOut != 0 {
		t.Errorf("Expected no notifications, got %d/%d/%d", detected, completed, timedOut)
	}

	final, _ := st.GetExchange(context.Background(), "ex1")
	if final.Status != models.StatusCancelled {
		t.Errorf("Expected the external cancel to stand, got %s", final.Status)
	}
}

func TestWatch_ConflictMeansStandDown(t *testing.T) {
	exchange := pendingExchange("ex1")
	st := newFakeStore(exchange)
	st.failWith = store.ErrStatusConflict
	prober := &fakeProber{script: []models.DepositObservation{seen(3)}}
	notifier := &fakeNotifier{}

	w := newTestWatch(st, prober, notifier, testWatcherConfig(), exchange)
	w.Run(context.Background())

	detected, completed, timedOut := notifier.counts()
	if detected+completed+timedOut != 0 {
		t.Errorf("Expected no notifications after losing the compare-and-swap, got %d/%d/%d",
			detected, completed, timedOut)
	}
	if prober.callCount() != 1 {
		t.Errorf("Expected the watch to end after one conflicted tick, got %d probes", prober.callCount())
	}
}

func TestWatch_StopInterruptsPolling(t *testing.T) {
	cfg := testWatcherConfig()
	cfg.PollInterval = time.Hour // Stop must not wait a full interval.

	exchange := pendingExchange("ex1")
	st := newFakeStore(exchange)
	prober := &fakeProber{script: []models.DepositObservation{notSeen()}}
	notifier := &fakeNotifier{}

	w := newTestWatch(st, prober, notifier, cfg, exchange)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(context.Background())
	}()

	// Give the first tick a moment, then stop.
	time.Sleep(10 * time.Millisecond)
	w.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not stop promptly")
	}

	final, _ := st.GetExchange(context.Background(), "ex1")
	if final.Status != models.StatusPending {
		t.Errorf("Expected record untouched by Stop, got %s", final.Status)
	}
}

func TestDecide(t *testing.T) {
	const max, required = 120, 3

	cases := []struct {
		name     string
		status   models.ExchangeStatus
		obs      models.DepositObservation
		attempts int
		want     action
	}{
		{"no deposit yet", models.StatusPending, notSeen(), 1, actionWait},
		{"first sighting", models.StatusPending, seen(0), 1, actionDetect},
		{"already confirming", models.StatusConfirming, seen(1), 10, actionWait},
		{"confirmed from pending", models.StatusPending, seen(3), 1, actionSettle},
		{"confirmed from confirming", models.StatusConfirming, seen(4), 50, actionSettle},
		{"budget exhausted", models.StatusPending, notSeen(), max, actionExpire},
		{"budget exhausted while confirming", models.StatusConfirming, seen(1), max, actionExpire},
		{"sighting on last attempt still detects", models.StatusPending, seen(1), max, actionDetect},
		{"externally completed", models.StatusCompleted, notSeen(), 1, actionStandDown},
		{"externally cancelled", models.StatusCancelled, seen(3), 1, actionStandDown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := decide(tc.status, tc.obs, tc.attempts, max, required)
			if got != tc.want {
				t.Errorf("decide(%s, %s, %d) = %d, want %d",
					tc.status, tc.obs.Status, tc.attempts, got, tc.want)
			}
		})
	}
}
