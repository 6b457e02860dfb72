package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mfarias/rates-sentinel/internal/healthcheck"
	"github.com/mfarias/rates-sentinel/internal/metrics"
	"github.com/mfarias/rates-sentinel/internal/scheduler"
	"github.com/mfarias/rates-sentinel/internal/state"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// Updater triggers one on-demand update cycle.
type Updater interface {
	RunCycle(ctx context.Context) error
}

// Handler builds the HTTP API: indicator reads, on-demand update trigger,
// health and metrics endpoints.
func Handler(logger zerolog.Logger, refreshInterval time.Duration, cache *state.Cache, updater Updater, tracker *healthcheck.Tracker, metricsCollector *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/indicators", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cache.All())
	})

	mux.HandleFunc("GET /api/indicators/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if !knownIndicator(name) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown indicator %q", name))
			return
		}
		writeJSON(w, http.StatusOK, cache.Get(name))
	})

	mux.HandleFunc("POST /api/update", func(w http.ResponseWriter, r *http.Request) {
		if err := updater.RunCycle(r.Context()); err != nil {
			if errors.Is(err, scheduler.ErrUpdateInFlight) {
				writeError(w, http.StatusConflict, "update cycle already in flight")
				return
			}
			logger.Error().Err(err).Msg("on-demand update failed")
			writeError(w, http.StatusInternalServerError, "update cycle failed")
			return
		}
		writeJSON(w, http.StatusOK, cache.All())
	})

	mux.HandleFunc("/healthz", healthcheck.HealthHandler(tracker, refreshInterval))
	mux.HandleFunc("/readyz", healthcheck.ReadyHandler(tracker))
	if metricsCollector != nil {
		mux.Handle("/metrics", metricsCollector.Handler())
	}

	return mux
}

// Start launches the HTTP server and shuts it down when the context ends.
func Start(ctx context.Context, logger zerolog.Logger, handler http.Handler, port int) {
	if port <= 0 {
		return
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Int("port", port).Msg("http server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Int("port", port).Msg("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Int("port", port).Msg("http server shutdown failed")
		}
	}()
}

func knownIndicator(name string) bool {
	for _, candidate := range state.Indicators() {
		if candidate == name {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
