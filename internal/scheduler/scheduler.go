package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mfarias/rates-sentinel/internal/healthcheck"
	"github.com/mfarias/rates-sentinel/internal/indicator"
	"github.com/mfarias/rates-sentinel/internal/metrics"
	"github.com/mfarias/rates-sentinel/internal/notify"
	"github.com/mfarias/rates-sentinel/internal/state"
	"github.com/mfarias/rates-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

// ErrUpdateInFlight is returned when a cycle is requested while another one
// is still running. The caller decides whether to retry later; the running
// cycle is never interleaved with.
var ErrUpdateInFlight = errors.New("update cycle already in flight")

// Ticker is the minimal interface needed for driving the scheduler loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

// Scheduler drives full update cycles: all fetchers in fixed order, each
// completing its state writes before the next starts. At most one cycle is
// ever in flight; timer ticks landing mid-cycle are skipped and on-demand
// requests are rejected with ErrUpdateInFlight.
type Scheduler struct {
	logger          zerolog.Logger
	refreshInterval time.Duration
	tickerFactory   func(time.Duration) Ticker
	fetchers        []indicator.Fetcher
	cache           *state.Cache
	metrics         *metrics.Metrics
	tracker         *healthcheck.Tracker
	notifier        notify.Notifier
	cycleMu         sync.Mutex
}

// Option customizes scheduler behavior.
type Option func(*Scheduler)

// WithTickerFactory overrides how tickers are created.
func WithTickerFactory(factory func(time.Duration) Ticker) Option {
	return func(s *Scheduler) {
		s.tickerFactory = factory
	}
}

// WithMetrics enables cycle metrics.
func WithMetrics(collector *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = collector
	}
}

// WithTracker enables health tracking of cycles.
func WithTracker(tracker *healthcheck.Tracker) Option {
	return func(s *Scheduler) {
		s.tracker = tracker
	}
}

// WithNotifier enables status-transition notifications.
func WithNotifier(notifier notify.Notifier) Option {
	return func(s *Scheduler) {
		s.notifier = notifier
	}
}

// New constructs a Scheduler for the given fetchers. The fetcher slice order
// is the cycle order.
func New(logger zerolog.Logger, refreshInterval time.Duration, fetchers []indicator.Fetcher, cache *state.Cache, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:          logger,
		refreshInterval: refreshInterval,
		fetchers:        fetchers,
		cache:           cache,
		tickerFactory: func(d time.Duration) Ticker {
			return timeTicker{ticker: time.NewTicker(d)}
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run starts the scheduling loop and blocks until the context is canceled.
// The startup cycle runs through the same path as scheduled ones, so its
// failure is captured and logged rather than silently dropped.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.refreshInterval <= 0 {
		return errors.New("refresh interval must be greater than zero")
	}

	if err := s.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error().Err(err).Msg("startup cycle failed")
	}

	ticker := s.tickerFactory(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return nil
		case <-ticker.C():
			if err := s.RunCycle(ctx); err != nil {
				if errors.Is(err, ErrUpdateInFlight) {
					s.logger.Debug().Msg("previous cycle still running, tick skipped")
					continue
				}
				if errors.Is(err, context.Canceled) {
					continue
				}
				s.logger.Error().Err(err).Msg("scheduled cycle failed")
			}
		}
	}
}

// RunCycle executes one full update cycle. It is the on-demand entry point:
// a concurrent call gets ErrUpdateInFlight instead of a second cycle.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	if !s.cycleMu.TryLock() {
		return ErrUpdateInFlight
	}
	defer s.cycleMu.Unlock()

	start := time.Now()
	before := s.cache.All()

	for _, fetcher := range s.fetchers {
		if err := ctx.Err(); err != nil {
			return err
		}
		status := fetcher.Update(ctx)
		s.reportStatus(fetcher.Name(), status)
	}

	after := s.cache.All()
	duration := time.Since(start)

	s.metrics.ObserveCycleDuration(duration)
	s.metrics.SetLastSuccessfulCycleTimestamp(time.Now().UTC())
	s.tracker.RecordCycle(duration, len(s.fetchers))

	transitions := transition.Detect(before, after)
	if len(transitions) > 0 && s.notifier != nil {
		if err := s.notifier.Notify(ctx, transitions); err != nil {
			s.logger.Warn().Err(err).Int("transitions", len(transitions)).Msg("notification delivery failed")
		}
	}

	s.logger.Info().
		Dur("duration", duration).
		Int("indicators", len(s.fetchers)).
		Int("transitions", len(transitions)).
		Msg("update cycle complete")

	return nil
}

func (s *Scheduler) reportStatus(name string, status state.Status) {
	for _, candidate := range state.Statuses() {
		s.metrics.SetIndicatorStatus(name, string(candidate), candidate == status)
	}
}
