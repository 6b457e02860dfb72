package notify

import (
	"context"

	"github.com/mfarias/rates-sentinel/internal/transition"
)

// Notifier delivers indicator status transitions to external systems.
type Notifier interface {
	Notify(ctx context.Context, transitions []transition.IndicatorTransition) error
}
