package enrollment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/attendance-gate/pkg/device"
	apperrors "github.com/tendant/attendance-gate/pkg/errors"
	"github.com/tendant/attendance-gate/pkg/policy"
)

// AccessResult is the orchestrator's verdict for a user and fingerprint
type AccessResult string

const (
	AccessGranted        AccessResult = "ACCESS_GRANTED"
	RequiresEnrollment   AccessResult = "REQUIRES_ENROLLMENT"
	RequiresReenrollment AccessResult = "REQUIRES_REENROLLMENT"
)

// Consent is the user's answer to the device replacement prompt
type Consent string

const (
	ConsentAccepted Consent = "ACCEPTED"
	ConsentRejected Consent = "REJECTED"
)

// ConsentRejectedReason is returned when the user declines replacement
const ConsentRejectedReason = "user declined to replace the enrolled device"

// EnrollmentInfo tells a first enrollment apart from a re-enrollment
type EnrollmentInfo struct {
	IsEnrolled        bool `json:"isEnrolled"`
	HasRevokedDevices bool `json:"hasRevokedDevices"`
}

// AttemptAccessOutput is the result of AttemptAccess
type AttemptAccessOutput struct {
	Result           AccessResult       `json:"result"`
	Device           *device.Device     `json:"device,omitempty"`
	PolicyViolations *policy.Violations `json:"policyViolations,omitempty"`
	EnrollmentInfo   EnrollmentInfo     `json:"enrollmentInfo"`
}

// ConsentDecision is the result of ProcessEnrollmentConsent
type ConsentDecision struct {
	ShouldProceed   bool            `json:"shouldProceed"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	DevicesToRevoke []device.Device `json:"devicesToRevoke,omitempty"`
}

// Decide computes the access verdict from the user's active devices, all of
// their devices and the presented fingerprint. active must be ordered most
// recently enrolled first.
func Decide(active, all []device.Device, deviceFingerprint string) AttemptAccessOutput {
	info := EnrollmentInfo{IsEnrolled: len(active) > 0}
	for _, d := range all {
		if !d.IsActive {
			info.HasRevokedDevices = true
			break
		}
	}

	if len(active) == 0 {
		return AttemptAccessOutput{Result: RequiresEnrollment, EnrollmentInfo: info}
	}

	current := active[0]
	if current.DeviceFingerprint != deviceFingerprint {
		return AttemptAccessOutput{
			Result: RequiresReenrollment,
			PolicyViolations: &policy.Violations{
				UserConflict: &policy.UserConflict{DeviceIDs: []int64{current.DeviceID}},
			},
			EnrollmentInfo: info,
		}
	}

	// More than one active device means an enrollment race slipped through;
	// force re-enrollment so RevokeViolations restores the invariant.
	if len(active) > 1 {
		return AttemptAccessOutput{
			Result: RequiresReenrollment,
			PolicyViolations: &policy.Violations{
				UserConflict: &policy.UserConflict{DeviceIDs: device.DeviceIDs(active)},
			},
			EnrollmentInfo: info,
		}
	}

	return AttemptAccessOutput{Result: AccessGranted, Device: &current, EnrollmentInfo: info}
}

// FlowOrchestrator turns repository facts into enrollment decisions
type FlowOrchestrator struct {
	deviceRepo device.DeviceRepository
}

// NewFlowOrchestrator creates a new orchestrator
func NewFlowOrchestrator(deviceRepo device.DeviceRepository) *FlowOrchestrator {
	return &FlowOrchestrator{deviceRepo: deviceRepo}
}

// AttemptAccess reports whether the user may proceed with the presented hardware
func (o *FlowOrchestrator) AttemptAccess(ctx context.Context, userID int64, deviceFingerprint string) (AttemptAccessOutput, error) {
	active, err := o.deviceRepo.FindByUserID(ctx, userID)
	if err != nil {
		return AttemptAccessOutput{}, fmt.Errorf("failed to list active devices: %w", err)
	}
	all, err := o.deviceRepo.FindByUserIDIncludingInactive(ctx, userID)
	if err != nil {
		return AttemptAccessOutput{}, fmt.Errorf("failed to list devices: %w", err)
	}

	out := Decide(active, all, deviceFingerprint)
	slog.Debug("Access attempt evaluated", "userID", userID, "result", out.Result, "activeDevices", len(active))
	return out, nil
}

// ProcessEnrollmentConsent decides whether enrollment continues. On acceptance
// it lists the devices the caller should revoke; it does not revoke them.
func (o *FlowOrchestrator) ProcessEnrollmentConsent(ctx context.Context, userID int64, consent Consent) (ConsentDecision, error) {
	switch consent {
	case ConsentRejected:
		slog.Info("Enrollment consent rejected", "userID", userID)
		return ConsentDecision{ShouldProceed: false, RejectionReason: ConsentRejectedReason}, nil
	case ConsentAccepted:
		active, err := o.deviceRepo.FindByUserID(ctx, userID)
		if err != nil {
			return ConsentDecision{}, fmt.Errorf("failed to list active devices: %w", err)
		}
		decision := ConsentDecision{ShouldProceed: true}
		if len(active) > 0 {
			decision.DevicesToRevoke = active
		}
		return decision, nil
	default:
		return ConsentDecision{}, apperrors.InvalidInput("consent", fmt.Sprintf("must be %s or %s", ConsentAccepted, ConsentRejected))
	}
}

// NeedsEnrollment reports whether AttemptAccess would deny access
func (o *FlowOrchestrator) NeedsEnrollment(ctx context.Context, userID int64, deviceFingerprint string) (bool, error) {
	out, err := o.AttemptAccess(ctx, userID, deviceFingerprint)
	if err != nil {
		return false, err
	}
	return out.Result != AccessGranted, nil
}
