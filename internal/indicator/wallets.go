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

// The aggregate snapshot has no single origin URL; each entry in the value
// carries its own.
const walletAggregateSource = "aggregate"

// ProviderResult is the per-provider outcome of a wallet-yields fan-out.
// Failed providers stay in the recorded list so consumers can see which
// wallets are currently unreadable.
type ProviderResult struct {
	Provider string       `json:"provider"`
	Rate     string       `json:"rate,omitempty"`
	URL      string       `json:"url"`
	Status   state.Status `json:"status"`
}

// Wallets queries every configured savings-wallet provider independently and
// aggregates the results.
type Wallets struct {
	providers []config.WalletProvider
	label     string
	window    int
	client    fetch.Getter
	cache     *state.Cache
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewWallets constructs the wallet-yields fetcher.
func NewWallets(providers []config.WalletProvider, label string, window int, client fetch.Getter, cache *state.Cache, logger zerolog.Logger, collector *metrics.Metrics) *Wallets {
	return &Wallets{
		providers: providers,
		label:     label,
		window:    window,
		client:    client,
		cache:     cache,
		logger:    logger.With().Str("indicator", state.IndicatorWalletYields).Logger(),
		metrics:   collector,
		now:       time.Now,
	}
}

// Name implements Fetcher.
func (w *Wallets) Name() string {
	return state.IndicatorWalletYields
}

// Update implements Fetcher. The aggregate is ok when any provider yielded a
// rate; the recorded value is always the full per-provider list. When every
// provider fails the prior value is kept untouched.
func (w *Wallets) Update(ctx context.Context) state.Status {
	results := make([]ProviderResult, 0, len(w.providers))
	succeeded := 0

	for _, provider := range w.providers {
		result := ProviderResult{Provider: provider.Name, URL: provider.URL}

		body, err := w.client.Get(ctx, provider.URL)
		if err != nil {
			result.Status = state.StatusError
			w.metrics.IncSourceErrors(w.Name(), reasonNetwork)
			w.logger.Warn().Str("provider", provider.Name).Str("url", provider.URL).Err(err).Msg("wallet provider unreachable")
			results = append(results, result)
			continue
		}

		rate, ok := w.findRate(string(body))
		if !ok {
			result.Status = state.StatusNotFound
			w.metrics.IncSourceErrors(w.Name(), reasonExtraction)
			w.logger.Warn().Str("provider", provider.Name).Str("label", w.label).Msg("wallet provider page has no rate")
			results = append(results, result)
			continue
		}

		result.Rate = rate
		result.Status = state.StatusOK
		succeeded++
		results = append(results, result)
	}

	if succeeded == 0 {
		w.cache.RecordFailure(ctx, w.Name(), state.StatusFallback)
		w.logger.Warn().Int("providers", len(w.providers)).Msg("all wallet providers failed, serving prior value")
		return state.StatusFallback
	}

	raw, err := json.Marshal(results)
	if err != nil {
		w.cache.RecordFailure(ctx, w.Name(), state.StatusError)
		return state.StatusError
	}

	w.cache.RecordSuccess(ctx, w.Name(), raw, walletAggregateSource, w.now())
	w.logger.Info().Int("ok", succeeded).Int("providers", len(w.providers)).Msg("wallet yields updated")
	return state.StatusOK
}

// findRate looks for a percentage anywhere in the page, then near the rate
// label when the direct scan comes up empty.
func (w *Wallets) findRate(text string) (string, bool) {
	if rates := extract.Percentages(text); len(rates) > 0 {
		return rates[0], true
	}
	return extract.NearLabel(text, w.label, w.window)
}
