package notify

import (
	"context"

	"github.com/mfarias/rates-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

// DryRunNotifier logs transitions without sending notifications.
type DryRunNotifier struct {
	logger zerolog.Logger
	inner  Notifier
}

// NewDryRunNotifier returns a notifier that suppresses delivery and logs instead.
func NewDryRunNotifier(logger zerolog.Logger, inner Notifier) *DryRunNotifier {
	return &DryRunNotifier{logger: logger, inner: inner}
}

// Notify implements Notifier.
func (n *DryRunNotifier) Notify(_ context.Context, transitions []transition.IndicatorTransition) error {
	for _, change := range transitions {
		n.logger.Info().
			Str("indicator", change.Name).
			Str("previous_status", string(change.Previous)).
			Str("current_status", string(change.Current)).
			Str("source", change.Source).
			Msg("[DRY-RUN] Would notify")
	}
	return nil
}
