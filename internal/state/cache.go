package state

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mfarias/rates-sentinel/internal/metrics"
	"github.com/rs/zerolog"
)

// Cache owns the in-memory state snapshot. It is the only writer of
// indicator snapshots: fetchers record through it, readers get copies.
// Every mutation is persisted; persistence failures are logged and absorbed
// so reads keep serving the latest in-memory values.
type Cache struct {
	mu      sync.RWMutex
	store   Store
	logger  zerolog.Logger
	metrics *metrics.Metrics
	current State
}

// NewCache constructs a Cache backed by the given store. The metrics
// collector may be nil.
func NewCache(store Store, logger zerolog.Logger, collector *metrics.Metrics) *Cache {
	return &Cache{
		store:   store,
		logger:  logger,
		metrics: collector,
		current: Default(),
	}
}

// Load reads persisted state and merges it onto the defaults, so indicators
// absent from storage start as initial. Read failures are logged and treated
// as no prior state; Load itself never fails.
func (c *Cache) Load(ctx context.Context) {
	loaded, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("state load failed, starting from defaults")
		loaded = State{}
	}

	merged := Default()
	for _, name := range Indicators() {
		if snap, ok := loaded.Indicators[name]; ok && snap.Status != "" {
			merged.Indicators[name] = snap
		}
	}

	c.mu.Lock()
	c.current = merged
	c.persistLocked(ctx)
	c.mu.Unlock()
}

// Get returns the current snapshot for an indicator. Unknown names return a
// default initial snapshot.
func (c *Cache) Get(name string) IndicatorSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.current.Indicators[name]
	if !ok {
		return IndicatorSnapshot{Status: StatusInitial}
	}
	return snap
}

// All returns a copy of the full state.
func (c *Cache) All() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Clone()
}

// RecordSuccess overwrites value, source and timestamp for an indicator,
// marks it ok and persists.
func (c *Cache) RecordSuccess(ctx context.Context, name string, value json.RawMessage, source string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current.Indicators[name] = IndicatorSnapshot{
		Value:     value,
		Source:    source,
		UpdatedAt: now.UTC(),
		Status:    StatusOK,
	}
	c.persistLocked(ctx)
}

// RecordFailure overwrites only the status for an indicator, leaving value,
// source and timestamp untouched, and persists.
func (c *Cache) RecordFailure(ctx context.Context, name string, status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.current.Indicators[name]
	snap.Status = status
	c.current.Indicators[name] = snap
	c.persistLocked(ctx)
}

func (c *Cache) persistLocked(ctx context.Context) {
	if err := c.store.Save(ctx, c.current.Clone()); err != nil {
		c.metrics.IncPersistErrors()
		c.logger.Error().Err(err).Msg("state persist failed")
	}
}
