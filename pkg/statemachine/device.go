package statemachine

import (
	"slices"

	apperrors "github.com/tendant/attendance-gate/pkg/errors"
)

// deviceTransitions is the adjacency table of the device lifecycle.
// pending -> pending is the only self transition (a repeated enrollment attempt).
var deviceTransitions = map[EnrollmentState][]EnrollmentState{
	NotEnrolled: {Pending},
	Pending:     {Enrolled, NotEnrolled, Pending},
	Enrolled:    {Revoked, Pending},
	Revoked:     {Pending},
}

// DeviceStateMachine validates transitions of the device enrollment lifecycle
type DeviceStateMachine struct{}

// CanTransition reports whether from -> to is in the transition table.
// Unknown origin states have no valid targets.
func (DeviceStateMachine) CanTransition(from, to EnrollmentState) bool {
	return slices.Contains(deviceTransitions[from], to)
}

// ValidTargets returns a copy of the states reachable from the given state
func (DeviceStateMachine) ValidTargets(from EnrollmentState) []EnrollmentState {
	return slices.Clone(deviceTransitions[from])
}

// AssertTransition returns an INVALID_TRANSITION error naming the attempted
// pair and the valid targets when from -> to is not allowed
func (m DeviceStateMachine) AssertTransition(from, to EnrollmentState) error {
	if m.CanTransition(from, to) {
		return nil
	}
	valid := m.ValidTargets(from)
	return apperrors.Newf(apperrors.ErrCodeInvalidTransition,
		"invalid device transition %s -> %s (valid targets: %v)", from, to, valid).
		WithDetail("from", string(from)).
		WithDetail("to", string(to)).
		WithDetail("validTargets", valid)
}

// InferState derives the enrollment state from repository facts.
// Priority is pending > enrolled > revoked > not_enrolled: a fresh challenge
// wins even over an enrolled device since a re-enrollment is in flight.
func (DeviceStateMachine) InferState(hasActiveDevice, hasRevokedDevice, hasPendingChallenge bool) EnrollmentState {
	switch {
	case hasPendingChallenge:
		return Pending
	case hasActiveDevice:
		return Enrolled
	case hasRevokedDevice:
		return Revoked
	default:
		return NotEnrolled
	}
}
