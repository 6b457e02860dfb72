package indicator

// A Fetcher acquires one indicator from its ordered source chain and records
// the outcome into the state cache. Source failures are handled inside the
// fetcher; Update reports the resulting status but never an error.

import (
	"context"

	"github.com/mfarias/rates-sentinel/internal/state"
)

// Fetcher drives acquisition for a single indicator.
type Fetcher interface {
	Name() string
	Update(ctx context.Context) state.Status
}

// Failure reasons used for the source error counter.
const (
	reasonNetwork    = "network"
	reasonExtraction = "extraction"
)
