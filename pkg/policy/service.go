package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendant/attendance-gate/pkg/device"
)

// OwnDeviceRevokeReason is recorded when a user's prior devices are superseded
const OwnDeviceRevokeReason = "new device enrolled"

// DeviceConflict reports a credential that is active under another user
type DeviceConflict struct {
	UserID       int64  `json:"userId"`
	CredentialID string `json:"credentialId"`
}

// UserConflict reports the other active devices of the requesting user
type UserConflict struct {
	DeviceIDs []int64 `json:"deviceIds"`
}

// Violations holds the conflicts found by Validate. Both may be set.
type Violations struct {
	DeviceConflict *DeviceConflict `json:"deviceConflict,omitempty"`
	UserConflict   *UserConflict   `json:"userConflict,omitempty"`
}

// ValidationResult is the outcome of Validate
type ValidationResult struct {
	Compliant  bool       `json:"compliant"`
	Violations Violations `json:"violations"`
}

// UnlinkedUser describes a previous owner whose device was taken over
type UnlinkedUser struct {
	UserID int64  `json:"userId"`
	Reason string `json:"reason"`
}

// RevokeResult is the outcome of RevokeViolations
type RevokeResult struct {
	PreviousUserUnlinked *UnlinkedUser `json:"previousUserUnlinked,omitempty"`
	OwnDevicesRevoked    int           `json:"ownDevicesRevoked"`
}

// OneToOneService checks and remediates the 1:1 user to device policy
type OneToOneService struct {
	deviceRepo device.DeviceRepository
}

// NewOneToOneService creates a new policy service
func NewOneToOneService(deviceRepo device.DeviceRepository) *OneToOneService {
	return &OneToOneService{deviceRepo: deviceRepo}
}

// Validate runs the device conflict and user conflict checks for a credential
// the user is presenting. The checks are independent of each other.
func (s *OneToOneService) Validate(ctx context.Context, userID int64, credentialID string) (ValidationResult, error) {
	var result ValidationResult

	existing, err := s.deviceRepo.FindByCredentialIDIncludingInactive(ctx, credentialID)
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
	case err != nil:
		return ValidationResult{}, fmt.Errorf("failed to look up credential: %w", err)
	case existing.IsActive && existing.UserID != userID:
		result.Violations.DeviceConflict = &DeviceConflict{
			UserID:       existing.UserID,
			CredentialID: credentialID,
		}
	}

	active, err := s.deviceRepo.FindByUserID(ctx, userID)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("failed to list user devices: %w", err)
	}
	var others []int64
	for _, d := range active {
		if d.CredentialID != credentialID {
			others = append(others, d.DeviceID)
		}
	}
	if len(others) > 0 {
		result.Violations.UserConflict = &UserConflict{DeviceIDs: others}
	}

	result.Compliant = result.Violations.DeviceConflict == nil && result.Violations.UserConflict == nil
	if !result.Compliant {
		slog.Info("Policy violations detected",
			"userID", userID,
			"deviceConflict", result.Violations.DeviceConflict != nil,
			"userConflict", result.Violations.UserConflict != nil)
	}
	return result, nil
}

// RevokeViolations unlinks the hardware from any other user and then revokes
// every active device of the requesting user. Both steps run on every call.
func (s *OneToOneService) RevokeViolations(ctx context.Context, userID int64, deviceFingerprint string) (RevokeResult, error) {
	var result RevokeResult

	shared, err := s.deviceRepo.FindActiveByDeviceFingerprint(ctx, deviceFingerprint)
	if err != nil {
		return RevokeResult{}, fmt.Errorf("failed to find devices by fingerprint: %w", err)
	}
	for _, d := range shared {
		if d.UserID == userID {
			continue
		}
		reason := fmt.Sprintf("1:1 policy: hardware re-enrolled by user %d", userID)
		if err := s.deviceRepo.Revoke(ctx, d.DeviceID, reason); err != nil {
			return RevokeResult{}, fmt.Errorf("failed to revoke device %d: %w", d.DeviceID, err)
		}
		slog.Info("Device unlinked from previous owner", "deviceID", d.DeviceID, "previousUserID", d.UserID, "userID", userID)
		if result.PreviousUserUnlinked == nil {
			result.PreviousUserUnlinked = &UnlinkedUser{UserID: d.UserID, Reason: reason}
		}
	}

	count, err := s.deviceRepo.RevokeAllByUserID(ctx, userID, OwnDeviceRevokeReason)
	if err != nil {
		return RevokeResult{}, fmt.Errorf("failed to revoke user devices: %w", err)
	}
	result.OwnDevicesRevoked = count
	if count > 0 {
		slog.Info("Superseded prior devices", "userID", userID, "count", count)
	}
	return result, nil
}

// IsDuplicateEnrollment reports whether the credential is already active for this user
func (s *OneToOneService) IsDuplicateEnrollment(ctx context.Context, userID int64, credentialID string) (bool, error) {
	existing, err := s.deviceRepo.FindByCredentialID(ctx, credentialID)
	if errors.Is(err, device.ErrDeviceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up credential: %w", err)
	}
	return existing.IsActive && existing.UserID == userID, nil
}
