package lifecycle

import (
	"fmt"

	"wayfare/pkg/model"
)

// IllegalTransitionError reports an attempted move between two statuses
// that no trip is allowed to make.
type IllegalTransitionError struct {
	From model.TripStatus
	To   model.TripStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal trip transition from %s to %s", e.From, e.To)
}

// manualEdges are the transitions a user may request through the API.
// Time-driven transitions are deliberately absent: a host cannot force a
// trip into ONGOING or COMPLETED by hand.
var manualEdges = map[model.TripStatus]map[model.TripStatus]bool{
	model.TripStatusDraft: {
		model.TripStatusPublished: true,
		model.TripStatusCancelled: true,
	},
	model.TripStatusPublished: {
		model.TripStatusCancelled: true,
	},
}

// autoEdges are the transitions the background scheduler performs when a
// trip's dates cross the clock. They never overlap with manualEdges.
var autoEdges = map[model.TripStatus]map[model.TripStatus]bool{
	model.TripStatusPublished: {
		model.TripStatusOngoing: true,
	},
	model.TripStatusOngoing: {
		model.TripStatusCompleted: true,
	},
}

// CanManualTransition reports whether a user-requested transition is legal.
func CanManualTransition(from, to model.TripStatus) bool {
	return manualEdges[from][to]
}

// CanAutoTransition reports whether a scheduler-driven transition is legal.
func CanAutoTransition(from, to model.TripStatus) bool {
	return autoEdges[from][to]
}

// CheckManual returns an IllegalTransitionError when the requested
// transition is not in the manual edge set.
func CheckManual(from, to model.TripStatus) error {
	if !CanManualTransition(from, to) {
		return &IllegalTransitionError{From: from, To: to}
	}
	return nil
}

// IsTerminal reports whether no further transitions can leave the status.
func IsTerminal(status model.TripStatus) bool {
	return status == model.TripStatusCompleted || status == model.TripStatusCancelled
}
