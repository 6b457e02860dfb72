package transition

import (
	"github.com/mfarias/rates-sentinel/internal/state"
)

// IndicatorTransition captures a status change for one indicator between two
// update cycles.
type IndicatorTransition struct {
	Name     string       `json:"name"`
	Previous state.Status `json:"previous"`
	Current  state.Status `json:"current"`
	Source   string       `json:"source,omitempty"`
}

// Detect compares the pre-cycle and post-cycle states and emits a transition
// for every indicator whose status changed. Output follows the fixed
// indicator order, so it is deterministic.
func Detect(prev, current state.State) []IndicatorTransition {
	transitions := make([]IndicatorTransition, 0)
	for _, name := range state.Indicators() {
		prevSnap, hadPrev := prev.Indicators[name]
		currentSnap, ok := current.Indicators[name]
		if !ok {
			continue
		}

		prevStatus := state.StatusInitial
		if hadPrev && prevSnap.Status != "" {
			prevStatus = prevSnap.Status
		}
		if prevStatus == currentSnap.Status {
			continue
		}

		transitions = append(transitions, IndicatorTransition{
			Name:     name,
			Previous: prevStatus,
			Current:  currentSnap.Status,
			Source:   currentSnap.Source,
		})
	}
	return transitions
}
