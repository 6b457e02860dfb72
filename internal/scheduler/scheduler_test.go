package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/mfarias/rates-sentinel/internal/indicator"
	"github.com/mfarias/rates-sentinel/internal/state"
	"github.com/mfarias/rates-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

type memStore struct {
	mu    sync.Mutex
	saved state.State
}

func (m *memStore) Load(_ context.Context) (state.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved.Clone(), nil
}

func (m *memStore) Save(_ context.Context, s state.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = s.Clone()
	return nil
}

type stubFetcher struct {
	name    string
	update  func(ctx context.Context) state.Status
	started chan struct{}
	release chan struct{}
}

func (f *stubFetcher) Name() string { return f.name }

func (f *stubFetcher) Update(ctx context.Context) state.Status {
	if f.started != nil {
		close(f.started)
		f.started = nil
	}
	if f.release != nil {
		<-f.release
	}
	if f.update != nil {
		return f.update(ctx)
	}
	return state.StatusOK
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

type captureNotifier struct {
	mu    sync.Mutex
	calls [][]transition.IndicatorTransition
}

func (n *captureNotifier) Notify(_ context.Context, transitions []transition.IndicatorTransition) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, transitions)
	return nil
}

func (n *captureNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func newSchedulerCache(t *testing.T) *state.Cache {
	t.Helper()
	cache := state.NewCache(&memStore{}, zerolog.Nop(), nil)
	cache.Load(context.Background())
	return cache
}

func TestRunCycle_FetchersRunInOrder(t *testing.T) {
	cache := newSchedulerCache(t)

	var mu sync.Mutex
	var order []string
	record := func(name string) indicator.Fetcher {
		return &stubFetcher{
			name: name,
			update: func(_ context.Context) state.Status {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return state.StatusOK
			},
		}
	}

	fetchers := []indicator.Fetcher{
		record(state.IndicatorRateFX),
		record(state.IndicatorWalletYields),
		record(state.IndicatorRepoRates),
		record(state.IndicatorTermDeposits),
	}

	s := New(zerolog.Nop(), time.Minute, fetchers, cache)
	if err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := state.Indicators()
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("fetchers ran in order %v, want %v", order, want)
	}
}

func TestRunCycle_RejectsConcurrentCycle(t *testing.T) {
	cache := newSchedulerCache(t)

	blocking := &stubFetcher{
		name:    state.IndicatorRateFX,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	started := blocking.started

	s := New(zerolog.Nop(), time.Minute, []indicator.Fetcher{blocking}, cache)

	done := make(chan error, 1)
	go func() {
		done <- s.RunCycle(context.Background())
	}()

	<-started
	if err := s.RunCycle(context.Background()); !errors.Is(err, ErrUpdateInFlight) {
		t.Fatalf("expected ErrUpdateInFlight, got %v", err)
	}

	close(blocking.release)
	if err := <-done; err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}

	// The lock must be released once the cycle finishes.
	if err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("follow-up cycle failed: %v", err)
	}
}

func TestRunCycle_NotifiesOnTransitions(t *testing.T) {
	cache := newSchedulerCache(t)
	notifier := &captureNotifier{}

	fetcher := &stubFetcher{
		name: state.IndicatorRateFX,
		update: func(ctx context.Context) state.Status {
			cache.RecordSuccess(ctx, state.IndicatorRateFX, json.RawMessage(`"1450.00"`), "https://example.com/fx", time.Now())
			return state.StatusOK
		},
	}

	s := New(zerolog.Nop(), time.Minute, []indicator.Fetcher{fetcher}, cache, WithNotifier(notifier))

	if err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notifier.callCount() != 1 {
		t.Fatalf("expected one notification, got %d", notifier.callCount())
	}

	got := notifier.calls[0]
	if len(got) != 1 {
		t.Fatalf("expected one transition, got %d", len(got))
	}
	if got[0].Name != state.IndicatorRateFX || got[0].Previous != state.StatusInitial || got[0].Current != state.StatusOK {
		t.Fatalf("unexpected transition: %+v", got[0])
	}

	// A second identical cycle produces no transition and no notification.
	if err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notifier.callCount() != 1 {
		t.Fatalf("steady state must not notify, got %d calls", notifier.callCount())
	}
}

func TestRun_StartupCycleThenTicks(t *testing.T) {
	cache := newSchedulerCache(t)

	var cycles sync.WaitGroup
	cycles.Add(2)
	var mu sync.Mutex
	count := 0
	fetcher := &stubFetcher{
		name: state.IndicatorRateFX,
		update: func(_ context.Context) state.Status {
			mu.Lock()
			count++
			mu.Unlock()
			cycles.Done()
			return state.StatusOK
		},
	}

	ticker := &fakeTicker{ch: make(chan time.Time, 1)}
	s := New(zerolog.Nop(), time.Minute, []indicator.Fetcher{fetcher}, cache,
		WithTickerFactory(func(time.Duration) Ticker { return ticker }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	ticker.ch <- time.Now()
	cycles.Wait()

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Fatalf("expected startup cycle plus one tick, got %d cycles", count)
	}
}

func TestRun_RejectsNonPositiveInterval(t *testing.T) {
	cache := newSchedulerCache(t)
	s := New(zerolog.Nop(), 0, nil, cache)
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error for zero refresh interval")
	}
}
