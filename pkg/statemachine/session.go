package statemachine

import (
	"slices"

	apperrors "github.com/tendant/attendance-gate/pkg/errors"
)

// sessionTransitions is only consulted while the owning device is enrolled
var sessionTransitions = map[SessionState][]SessionState{
	NoSession:      {SessionActive},
	SessionActive:  {SessionExpired, NoSession},
	SessionExpired: {NoSession},
}

// SessionStateMachine validates session transitions. It is subordinate to the
// device lifecycle: sessions only move freely while the device is enrolled.
type SessionStateMachine struct{}

// IsEnabled reports whether sessions may be established for a device in the
// given enrollment state
func (SessionStateMachine) IsEnabled(enrollment EnrollmentState) bool {
	return enrollment == Enrolled
}

// CanTransition reports whether from -> to is allowed under the given
// enrollment state. While sessions are disabled the only legal target is
// no_session, from any origin, so a revoked device can always be cleared.
func (m SessionStateMachine) CanTransition(from, to SessionState, enrollment EnrollmentState) bool {
	if !m.IsEnabled(enrollment) {
		return to == NoSession
	}
	return slices.Contains(sessionTransitions[from], to)
}

// AssertTransition returns SESSION_BLOCKED when sessions are disabled and the
// target is not no_session, and INVALID_SESSION_TRANSITION when the table
// rejects the pair
func (m SessionStateMachine) AssertTransition(from, to SessionState, enrollment EnrollmentState) error {
	if !m.IsEnabled(enrollment) {
		if to == NoSession {
			return nil
		}
		return apperrors.Newf(apperrors.ErrCodeSessionBlocked,
			"session transition %s -> %s blocked: enrollment state is %s", from, to, enrollment).
			WithDetail("from", string(from)).
			WithDetail("to", string(to)).
			WithDetail("enrollmentState", string(enrollment))
	}
	if slices.Contains(sessionTransitions[from], to) {
		return nil
	}
	valid := slices.Clone(sessionTransitions[from])
	return apperrors.Newf(apperrors.ErrCodeInvalidSessionTransition,
		"invalid session transition %s -> %s (valid targets: %v)", from, to, valid).
		WithDetail("from", string(from)).
		WithDetail("to", string(to)).
		WithDetail("validTargets", valid)
}
