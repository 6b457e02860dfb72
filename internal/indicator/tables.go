package indicator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mfarias/rates-sentinel/internal/config"
	"github.com/mfarias/rates-sentinel/internal/extract"
	"github.com/mfarias/rates-sentinel/internal/fetch"
	"github.com/mfarias/rates-sentinel/internal/metrics"
	"github.com/mfarias/rates-sentinel/internal/state"
	"github.com/rs/zerolog"
)

const tableLabelWindow = 400

// Table acquires a rate table from a single source with a minimum
// match-count threshold: a page-wide percentage scan below the threshold is
// assumed to have hit noise unrelated to the target table, and a
// label-anchored single-match strategy is tried instead. Repo rates and
// term-deposit rates are both instances of this fetcher.
type Table struct {
	name    string
	source  config.TableSource
	client  fetch.Getter
	cache   *state.Cache
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRepoRates constructs the repo-rates (caución) fetcher.
func NewRepoRates(source config.TableSource, client fetch.Getter, cache *state.Cache, logger zerolog.Logger, collector *metrics.Metrics) *Table {
	return newTable(state.IndicatorRepoRates, source, client, cache, logger, collector)
}

// NewTermDeposits constructs the fixed-term-deposit rates fetcher.
func NewTermDeposits(source config.TableSource, client fetch.Getter, cache *state.Cache, logger zerolog.Logger, collector *metrics.Metrics) *Table {
	return newTable(state.IndicatorTermDeposits, source, client, cache, logger, collector)
}

func newTable(name string, source config.TableSource, client fetch.Getter, cache *state.Cache, logger zerolog.Logger, collector *metrics.Metrics) *Table {
	return &Table{
		name:    name,
		source:  source,
		client:  client,
		cache:   cache,
		logger:  logger.With().Str("indicator", name).Logger(),
		metrics: collector,
		now:     time.Now,
	}
}

// Name implements Fetcher.
func (t *Table) Name() string {
	return t.name
}

// Update implements Fetcher.
func (t *Table) Update(ctx context.Context) state.Status {
	body, err := t.client.Get(ctx, t.source.URL)
	if err != nil {
		t.metrics.IncSourceErrors(t.name, reasonNetwork)
		t.logger.Warn().Str("url", t.source.URL).Err(err).Msg("table source unreachable, serving prior value")
		t.cache.RecordFailure(ctx, t.name, state.StatusFallback)
		return state.StatusFallback
	}

	text := string(body)

	rates := extract.Percentages(text)
	if len(rates) >= t.source.MinMatches {
		t.record(ctx, rates)
		t.logger.Info().Str("url", t.source.URL).Int("rates", len(rates)).Msg("rate table updated")
		return state.StatusOK
	}

	// Below threshold: treat the scan as noise and anchor on the domain
	// label instead, accepting a single match.
	if rate, ok := extract.NearLabel(text, t.source.Label, tableLabelWindow); ok {
		t.record(ctx, []string{rate})
		t.logger.Info().Str("url", t.source.URL).Str("label", t.source.Label).Msg("rate table updated from label anchor")
		return state.StatusOK
	}

	t.metrics.IncSourceErrors(t.name, reasonExtraction)
	t.logger.Warn().
		Str("url", t.source.URL).
		Int("matches", len(rates)).
		Int("min_matches", t.source.MinMatches).
		Msg("rate table below threshold and label anchor empty, serving prior value")
	t.cache.RecordFailure(ctx, t.name, state.StatusFallback)
	return state.StatusFallback
}

func (t *Table) record(ctx context.Context, rates []string) {
	raw, err := json.Marshal(rates)
	if err != nil {
		t.cache.RecordFailure(ctx, t.name, state.StatusError)
		return
	}
	t.cache.RecordSuccess(ctx, t.name, raw, t.source.URL, t.now())
}
