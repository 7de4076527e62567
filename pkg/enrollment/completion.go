package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/attendance-gate/pkg/device"
	apperrors "github.com/tendant/attendance-gate/pkg/errors"
	"github.com/tendant/attendance-gate/pkg/handshake"
	"github.com/tendant/attendance-gate/pkg/policy"
	"github.com/tendant/attendance-gate/pkg/statemachine"
)

// VerifiedCredential is a credential the WebAuthn verifier has accepted
type VerifiedCredential struct {
	UserID            int64    `json:"userId"`
	CredentialID      string   `json:"credentialId"`
	PublicKey         string   `json:"publicKey"`
	AAGUID            string   `json:"aaguid"`
	DeviceFingerprint string   `json:"deviceFingerprint"`
	SignCount         uint32   `json:"signCount"`
	Transports        []string `json:"transports"`
}

// CompletionResult is the result of Complete
type CompletionResult struct {
	Device     device.Device        `json:"device"`
	Duplicate  bool                 `json:"duplicate"`
	Revocation *policy.RevokeResult `json:"revocation,omitempty"`
}

// CompletionService stores newly verified credentials as enrolled devices
type CompletionService struct {
	deviceRepo   device.DeviceRepository
	policy       *policy.OneToOneService
	stateMachine statemachine.DeviceStateMachine
	newSecret    func() (string, error)
	now          func() time.Time
}

// NewCompletionService creates a new completion service
func NewCompletionService(deviceRepo device.DeviceRepository, policyService *policy.OneToOneService) *CompletionService {
	return &CompletionService{
		deviceRepo: deviceRepo,
		policy:     policyService,
		newSecret:  handshake.NewHandshakeSecret,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (c VerifiedCredential) validate() error {
	if c.UserID <= 0 {
		return apperrors.InvalidInput("userId", "must be positive")
	}
	if c.CredentialID == "" {
		return apperrors.InvalidInput("credentialId", "is required")
	}
	if c.PublicKey == "" {
		return apperrors.InvalidInput("publicKey", "is required")
	}
	if c.DeviceFingerprint == "" {
		return apperrors.InvalidInput("deviceFingerprint", "is required")
	}
	return nil
}

// Complete enrolls the credential. A credential already active for the same
// user is returned unchanged. Otherwise the hardware is unlinked from any
// other user, the user's prior devices are revoked and the new device is
// created as enrolled.
func (s *CompletionService) Complete(ctx context.Context, cred VerifiedCredential) (CompletionResult, error) {
	if err := cred.validate(); err != nil {
		return CompletionResult{}, err
	}

	duplicate, err := s.policy.IsDuplicateEnrollment(ctx, cred.UserID, cred.CredentialID)
	if err != nil {
		return CompletionResult{}, err
	}
	if duplicate {
		existing, err := s.deviceRepo.FindByCredentialID(ctx, cred.CredentialID)
		if err != nil {
			return CompletionResult{}, fmt.Errorf("failed to load existing device: %w", err)
		}
		slog.Info("Duplicate enrollment ignored", "userID", cred.UserID, "deviceID", existing.DeviceID)
		return CompletionResult{Device: existing, Duplicate: true}, nil
	}

	validation, err := s.policy.Validate(ctx, cred.UserID, cred.CredentialID)
	if err != nil {
		return CompletionResult{}, err
	}
	if conflict := validation.Violations.DeviceConflict; conflict != nil {
		return CompletionResult{}, apperrors.New(apperrors.ErrCodeConflict,
			"credential is active for another user").WithDetail("ownerUserId", conflict.UserID)
	}
	if _, err := s.deviceRepo.FindByCredentialIDIncludingInactive(ctx, cred.CredentialID); err == nil {
		return CompletionResult{}, apperrors.New(apperrors.ErrCodeConflict,
			"credential was revoked and cannot be enrolled again")
	} else if !errors.Is(err, device.ErrDeviceNotFound) {
		return CompletionResult{}, fmt.Errorf("failed to look up credential: %w", err)
	}

	all, err := s.deviceRepo.FindByUserIDIncludingInactive(ctx, cred.UserID)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("failed to list devices: %w", err)
	}
	hasActive, hasRevoked := false, false
	for _, d := range all {
		if d.IsActive {
			hasActive = true
		} else {
			hasRevoked = true
		}
	}
	prior := s.stateMachine.InferState(hasActive, hasRevoked, false)
	if err := s.stateMachine.AssertTransition(prior, statemachine.Pending); err != nil {
		return CompletionResult{}, err
	}
	if err := s.stateMachine.AssertTransition(statemachine.Pending, statemachine.Enrolled); err != nil {
		return CompletionResult{}, err
	}

	revocation, err := s.policy.RevokeViolations(ctx, cred.UserID, cred.DeviceFingerprint)
	if err != nil {
		return CompletionResult{}, err
	}

	secret, err := s.newSecret()
	if err != nil {
		return CompletionResult{}, err
	}

	created, err := s.deviceRepo.Create(ctx, device.Device{
		UserID:            cred.UserID,
		CredentialID:      cred.CredentialID,
		PublicKey:         cred.PublicKey,
		HandshakeSecret:   secret,
		AAGUID:            cred.AAGUID,
		DeviceFingerprint: cred.DeviceFingerprint,
		SignCount:         cred.SignCount,
		EnrolledAt:        s.now(),
		IsActive:          true,
		Status:            statemachine.Enrolled,
		Transports:        cred.Transports,
	})
	if errors.Is(err, device.ErrCredentialExists) {
		return CompletionResult{}, apperrors.Wrap(err, apperrors.ErrCodeConflict, "credential already enrolled")
	}
	if err != nil {
		return CompletionResult{}, fmt.Errorf("failed to create device: %w", err)
	}

	slog.Info("Device enrolled",
		"userID", created.UserID,
		"deviceID", created.DeviceID,
		"from", prior,
		"ownDevicesRevoked", revocation.OwnDevicesRevoked,
		"previousUserUnlinked", revocation.PreviousUserUnlinked != nil)
	return CompletionResult{Device: created, Revocation: &revocation}, nil
}
