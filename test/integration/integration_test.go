//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mfarias/rates-sentinel/internal/config"
	"github.com/mfarias/rates-sentinel/internal/fetch"
	"github.com/mfarias/rates-sentinel/internal/healthcheck"
	"github.com/mfarias/rates-sentinel/internal/indicator"
	"github.com/mfarias/rates-sentinel/internal/metrics"
	"github.com/mfarias/rates-sentinel/internal/scheduler"
	"github.com/mfarias/rates-sentinel/internal/server"
	"github.com/mfarias/rates-sentinel/internal/state"
	"github.com/rs/zerolog"
)

// TestFullUpdateCycle drives the complete pipeline against stub source
// servers: acquisition, state persistence and the HTTP API.
//
// Run with: go test -tags=integration -v ./test/integration/...
func TestFullUpdateCycle(t *testing.T) {
	fxServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"compra":1430.00,"venta":1450.00,"moneda":"USD"}`))
	}))
	defer fxServer.Close()

	walletServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div>Rendimiento TNA 62,5%</div></body></html>`))
	}))
	defer walletServer.Close()

	tableServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><table>
			<tr><td>1 día</td><td>35,5%</td></tr>
			<tr><td>7 días</td><td>36,2%</td></tr>
			<tr><td>14 días</td><td>37,0%</td></tr>
			<tr><td>30 días</td><td>38,1%</td></tr>
		</table></body></html>`))
	}))
	defer tableServer.Close()

	logger := zerolog.Nop()
	statePath := filepath.Join(t.TempDir(), "state.json")
	collector := metrics.New()

	store := state.NewFileStore(statePath, logger)
	cache := state.NewCache(store, logger, collector)
	cache.Load(context.Background())

	client, err := fetch.NewClient(5*time.Second, 0)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	fxSources := []config.FXSource{{URL: fxServer.URL, Kind: config.SourceKindJSON}}
	providers := []config.WalletProvider{
		{Name: "Mercado Pago", URL: walletServer.URL},
		{Name: "Ualá", URL: walletServer.URL},
	}
	repoSource := config.TableSource{URL: tableServer.URL, MinMatches: 3, Label: "día"}
	depositSource := config.TableSource{URL: tableServer.URL, MinMatches: 4, Label: "días"}

	fetchers := []indicator.Fetcher{
		indicator.NewFX(fxSources, client, cache, logger, collector),
		indicator.NewWallets(providers, "TNA", 400, client, cache, logger, collector),
		indicator.NewRepoRates(repoSource, client, cache, logger, collector),
		indicator.NewTermDeposits(depositSource, client, cache, logger, collector),
	}

	tracker := healthcheck.NewTracker()
	sched := scheduler.New(logger, time.Minute, fetchers, cache,
		scheduler.WithMetrics(collector),
		scheduler.WithTracker(tracker),
	)

	api := httptest.NewServer(server.Handler(logger, time.Minute, cache, sched, tracker, collector))
	defer api.Close()

	t.Run("OnDemandUpdate", func(t *testing.T) {
		resp, err := http.Post(api.URL+"/api/update", "application/json", nil)
		if err != nil {
			t.Fatalf("trigger update: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("unexpected status: %d", resp.StatusCode)
		}

		var result state.State
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		for _, name := range state.Indicators() {
			snap := result.Indicators[name]
			if snap.Status != state.StatusOK {
				t.Errorf("indicator %q: expected ok, got %q", name, snap.Status)
			}
			if len(snap.Value) == 0 {
				t.Errorf("indicator %q: expected a value", name)
			}
		}
	})

	t.Run("ReadSingleIndicator", func(t *testing.T) {
		resp, err := http.Get(api.URL + "/api/indicators/" + state.IndicatorWalletYields)
		if err != nil {
			t.Fatalf("read indicator: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("unexpected status: %d", resp.StatusCode)
		}

		var snap state.IndicatorSnapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}

		var results []indicator.ProviderResult
		if err := json.Unmarshal(snap.Value, &results); err != nil {
			t.Fatalf("decode provider results: %v", err)
		}
		if len(results) != len(providers) {
			t.Fatalf("expected %d provider results, got %d", len(providers), len(results))
		}
		for _, r := range results {
			if r.Status != state.StatusOK || r.Rate != "62.5%" {
				t.Errorf("provider %q: unexpected result %+v", r.Provider, r)
			}
		}
	})

	t.Run("StatePersistedAcrossRestart", func(t *testing.T) {
		reloaded := state.NewCache(state.NewFileStore(statePath, logger), logger, collector)
		reloaded.Load(context.Background())

		snap := reloaded.Get(state.IndicatorRateFX)
		if snap.Status != state.StatusOK {
			t.Fatalf("expected persisted ok status, got %q", snap.Status)
		}
		if string(snap.Value) != `{"compra":1430.00,"venta":1450.00,"moneda":"USD"}` {
			t.Fatalf("unexpected persisted value: %s", snap.Value)
		}
	})

	t.Run("FailurePreservesValue", func(t *testing.T) {
		fxServer.Close()
		walletServer.Close()
		tableServer.Close()

		if err := sched.RunCycle(context.Background()); err != nil {
			t.Fatalf("cycle failed: %v", err)
		}

		for _, name := range state.Indicators() {
			snap := cache.Get(name)
			if snap.Status != state.StatusFallback {
				t.Errorf("indicator %q: expected fallback, got %q", name, snap.Status)
			}
			if len(snap.Value) == 0 {
				t.Errorf("indicator %q: prior value must survive the failed cycle", name)
			}
		}
	})

	t.Run("HealthAfterCycles", func(t *testing.T) {
		resp, err := http.Get(api.URL + "/healthz")
		if err != nil {
			t.Fatalf("health check: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected healthy after recent cycle, got %d", resp.StatusCode)
		}
	})
}
