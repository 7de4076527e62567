package statemachine

// EnrollmentState is the lifecycle state of an enrolled device
type EnrollmentState string

const (
	NotEnrolled EnrollmentState = "not_enrolled"
	Pending     EnrollmentState = "pending"
	Enrolled    EnrollmentState = "enrolled"
	Revoked     EnrollmentState = "revoked"
)

// EnrollmentStates lists every enrollment state
var EnrollmentStates = []EnrollmentState{NotEnrolled, Pending, Enrolled, Revoked}

// Valid reports whether s is one of the declared enrollment states
func (s EnrollmentState) Valid() bool {
	switch s {
	case NotEnrolled, Pending, Enrolled, Revoked:
		return true
	default:
		return false
	}
}

func (s EnrollmentState) String() string {
	return string(s)
}

// SessionState is the state of a user's session relative to the current
// enrollment state of their device
type SessionState string

const (
	NoSession      SessionState = "no_session"
	SessionActive  SessionState = "session_active"
	SessionExpired SessionState = "session_expired"
)

// SessionStates lists every session state
var SessionStates = []SessionState{NoSession, SessionActive, SessionExpired}

// Valid reports whether s is one of the declared session states
func (s SessionState) Valid() bool {
	switch s {
	case NoSession, SessionActive, SessionExpired:
		return true
	default:
		return false
	}
}

func (s SessionState) String() string {
	return string(s)
}
