package state

import (
	"context"
	"encoding/json"
	"time"
)

// Indicator names. The order of Indicators() is also the update cycle order.
const (
	IndicatorRateFX       = "rate-fx"
	IndicatorWalletYields = "wallet-yields"
	IndicatorRepoRates    = "repo-rates"
	IndicatorTermDeposits = "term-deposit-rates"
)

// Indicators returns the fixed indicator set in cycle order.
func Indicators() []string {
	return []string{
		IndicatorRateFX,
		IndicatorWalletYields,
		IndicatorRepoRates,
		IndicatorTermDeposits,
	}
}

// Status describes how trustworthy an indicator snapshot is.
type Status string

const (
	// StatusInitial means no acquisition has ever succeeded for the indicator.
	StatusInitial Status = "initial"
	// StatusOK means the last cycle refreshed the value.
	StatusOK Status = "ok"
	// StatusFallback means the last cycle failed and the prior value is served.
	StatusFallback Status = "fallback"
	// StatusNotFound means the expected pattern was absent from the source.
	StatusNotFound Status = "not_found"
	// StatusError means the source could not be reached or read.
	StatusError Status = "error"
)

// Statuses returns every status value, for exhaustive reporting.
func Statuses() []Status {
	return []Status{StatusInitial, StatusOK, StatusFallback, StatusNotFound, StatusError}
}

// IndicatorSnapshot captures the latest known value for one indicator.
// Value keeps whatever shape the indicator's fetcher produced.
type IndicatorSnapshot struct {
	Value     json.RawMessage `json:"value,omitempty"`
	Source    string          `json:"source,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
	Status    Status          `json:"status"`
}

// State stores snapshots for all indicators.
type State struct {
	Indicators map[string]IndicatorSnapshot `json:"indicators"`
}

// Default returns a State covering the full indicator set with initial
// snapshots.
func Default() State {
	s := State{Indicators: make(map[string]IndicatorSnapshot, len(Indicators()))}
	for _, name := range Indicators() {
		s.Indicators[name] = IndicatorSnapshot{Status: StatusInitial}
	}
	return s
}

// Clone returns a deep copy of the state map.
func (s State) Clone() State {
	out := State{Indicators: make(map[string]IndicatorSnapshot, len(s.Indicators))}
	for name, snap := range s.Indicators {
		out.Indicators[name] = snap
	}
	return out
}

// Store defines the interface for persisting state.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}
