// Package access composes restriction, enrollment and session state into the
// single state a client needs to decide what to show next.
package access

import (
	"context"
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/tendant/attendance-gate/pkg/enrollment"
)

// State is the client-facing access state
type State string

const (
	StateBlocked           State = "BLOCKED"
	StateNotEnrolled       State = "NOT_ENROLLED"
	StateEnrolledNoSession State = "ENROLLED_NO_SESSION"
	StateReady             State = "READY"
)

// Action is what the client should do next. A nil *Action means nothing.
type Action string

const (
	ActionEnroll Action = "enroll"
	ActionLogin  Action = "login"
	ActionScan   Action = "scan"
)

// ReenrollmentMessage is shown when the enrolled device does not match
const ReenrollmentMessage = "This account is enrolled on a different device. Enroll this device to continue; the previous device will be revoked."

// DeviceRef identifies the device access was granted for
type DeviceRef struct {
	CredentialID string `json:"credentialId"`
	DeviceID     int64  `json:"deviceId"`
}

// AccessState is the result of GetState
type AccessState struct {
	State   State      `json:"state"`
	Action  *Action    `json:"action"`
	Device  *DeviceRef `json:"device,omitempty"`
	Message string     `json:"message,omitempty"`
}

// Restriction is the answer of a RestrictionQuery
type Restriction struct {
	Blocked bool
	Reason  string
}

// RestrictionQuery reports whether a user is externally blocked
type RestrictionQuery interface {
	IsBlocked(ctx context.Context, userID int64) (Restriction, error)
}

// SessionQuery reports whether a user holds a live session
type SessionQuery interface {
	HasActiveSession(ctx context.Context, userID int64) (bool, error)
}

// Orchestrator is the part of enrollment.FlowOrchestrator the gateway uses
type Orchestrator interface {
	AttemptAccess(ctx context.Context, userID int64, deviceFingerprint string) (enrollment.AttemptAccessOutput, error)
}

// GatewayService computes AccessState with a fail-fast, read-only waterfall
type GatewayService struct {
	restrictions RestrictionQuery
	orchestrator Orchestrator
	sessions     SessionQuery
}

// NewGatewayService creates a new gateway service
func NewGatewayService(restrictions RestrictionQuery, orchestrator Orchestrator, sessions SessionQuery) *GatewayService {
	return &GatewayService{
		restrictions: restrictions,
		orchestrator: orchestrator,
		sessions:     sessions,
	}
}

func action(a Action) *Action {
	return &a
}

// GetState checks restriction, then enrollment, then session. Each step
// returns without calling the later ones.
func (s *GatewayService) GetState(ctx context.Context, userID int64, deviceFingerprint string) (AccessState, error) {
	restriction, err := s.restrictions.IsBlocked(ctx, userID)
	if err != nil {
		return AccessState{}, fmt.Errorf("failed to check restriction: %w", err)
	}
	if restriction.Blocked {
		return AccessState{State: StateBlocked, Message: restriction.Reason}, nil
	}

	attempt, err := s.orchestrator.AttemptAccess(ctx, userID, deviceFingerprint)
	if err != nil {
		return AccessState{}, fmt.Errorf("failed to evaluate enrollment: %w", err)
	}
	switch attempt.Result {
	case enrollment.RequiresEnrollment:
		return AccessState{State: StateNotEnrolled, Action: action(ActionEnroll)}, nil
	case enrollment.RequiresReenrollment:
		return AccessState{State: StateNotEnrolled, Action: action(ActionEnroll), Message: ReenrollmentMessage}, nil
	case enrollment.AccessGranted:
	default:
		return AccessState{}, fmt.Errorf("unknown access result %q", attempt.Result)
	}

	var ref DeviceRef
	if attempt.Device != nil {
		if err := copier.Copy(&ref, attempt.Device); err != nil {
			return AccessState{}, fmt.Errorf("failed to copy device: %w", err)
		}
	}

	active, err := s.sessions.HasActiveSession(ctx, userID)
	if err != nil {
		return AccessState{}, fmt.Errorf("failed to check session: %w", err)
	}
	if !active {
		return AccessState{State: StateEnrolledNoSession, Action: action(ActionLogin), Device: &ref}, nil
	}
	return AccessState{State: StateReady, Action: action(ActionScan), Device: &ref}, nil
}
