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

const fxLabelWindow = 80

// FXValue is the buy/sell pair extracted from a markup source.
type FXValue struct {
	Buy  string `json:"buy"`
	Sell string `json:"sell"`
}

// FX acquires the exchange rate from an ordered source chain: a structured
// JSON endpoint first, markup scraping after it.
type FX struct {
	sources []config.FXSource
	client  fetch.Getter
	cache   *state.Cache
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewFX constructs the exchange-rate fetcher.
func NewFX(sources []config.FXSource, client fetch.Getter, cache *state.Cache, logger zerolog.Logger, collector *metrics.Metrics) *FX {
	return &FX{
		sources: sources,
		client:  client,
		cache:   cache,
		logger:  logger.With().Str("indicator", state.IndicatorRateFX).Logger(),
		metrics: collector,
		now:     time.Now,
	}
}

// Name implements Fetcher.
func (f *FX) Name() string {
	return state.IndicatorRateFX
}

// Update implements Fetcher. Sources are tried in order; the first success
// wins. Exhausting the chain records fallback and keeps the prior value.
func (f *FX) Update(ctx context.Context) state.Status {
	for _, src := range f.sources {
		body, err := f.client.Get(ctx, src.URL)
		if err != nil {
			f.metrics.IncSourceErrors(f.Name(), reasonNetwork)
			f.logger.Warn().Str("url", src.URL).Err(err).Msg("fx source unreachable")
			continue
		}

		switch src.Kind {
		case config.SourceKindJSON:
			// The structured endpoint's payload is stored verbatim; it has
			// to be well-formed JSON to be mergeable into the state document.
			if !json.Valid(body) {
				f.metrics.IncSourceErrors(f.Name(), reasonExtraction)
				f.logger.Warn().Str("url", src.URL).Msg("fx source returned malformed json")
				continue
			}
			f.cache.RecordSuccess(ctx, f.Name(), json.RawMessage(body), src.URL, f.now())
			f.logger.Info().Str("url", src.URL).Msg("fx updated from structured source")
			return state.StatusOK

		case config.SourceKindMarkup:
			value, ok := scrapeFX(string(body), src.Label)
			if !ok {
				f.metrics.IncSourceErrors(f.Name(), reasonExtraction)
				f.logger.Warn().Str("url", src.URL).Str("label", src.Label).Msg("fx markup yielded no buy/sell pair")
				continue
			}
			raw, err := json.Marshal(value)
			if err != nil {
				f.metrics.IncSourceErrors(f.Name(), reasonExtraction)
				continue
			}
			f.cache.RecordSuccess(ctx, f.Name(), raw, src.URL, f.now())
			f.logger.Info().Str("url", src.URL).Str("buy", value.Buy).Str("sell", value.Sell).Msg("fx updated from markup source")
			return state.StatusOK
		}
	}

	f.cache.RecordFailure(ctx, f.Name(), state.StatusFallback)
	f.logger.Warn().Msg("all fx sources failed, serving prior value")
	return state.StatusFallback
}

// scrapeFX extracts a buy/sell pair from markup: first from the block
// enclosing the currency-tier label, then from generic Compra/Venta labels.
func scrapeFX(text, label string) (FXValue, bool) {
	if block, ok := extract.EnclosingBlock(text, label); ok {
		nums := extract.Decimals(block)
		if len(nums) >= 2 {
			return FXValue{Buy: nums[0], Sell: nums[1]}, true
		}
	}

	buy, okBuy := extract.NearLabel(text, "Compra", fxLabelWindow)
	sell, okSell := extract.NearLabel(text, "Venta", fxLabelWindow)
	if okBuy && okSell {
		return FXValue{Buy: buy, Sell: sell}, true
	}
	return FXValue{}, false
}
