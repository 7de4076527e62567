package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendant/attendance-gate/pkg/device"
	"github.com/tendant/attendance-gate/pkg/sessionkey"
	"github.com/tendant/attendance-gate/pkg/statemachine"
)

// LogoutUseCase clears a user's session key
type LogoutUseCase struct {
	deviceRepo     device.DeviceRepository
	sessionKeys    sessionkey.Repository
	sessionMachine statemachine.SessionStateMachine
}

// NewLogoutUseCase creates a new logout use case
func NewLogoutUseCase(deviceRepo device.DeviceRepository, sessionKeys sessionkey.Repository) *LogoutUseCase {
	return &LogoutUseCase{deviceRepo: deviceRepo, sessionKeys: sessionKeys}
}

// Execute deletes the user's session key. Clearing a session is allowed in
// every enrollment state. Logging out without a session is a no-op.
func (u *LogoutUseCase) Execute(ctx context.Context, userID int64) error {
	key, err := u.sessionKeys.FindByUserID(ctx, userID)
	if errors.Is(err, sessionkey.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session key: %w", err)
	}

	status := statemachine.NotEnrolled
	devices, err := u.deviceRepo.FindByUserIDIncludingInactive(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	for _, d := range devices {
		if d.DeviceID == key.DeviceID {
			status = d.Status
			break
		}
	}

	if err := u.sessionMachine.AssertTransition(statemachine.SessionActive, statemachine.NoSession, status); err != nil {
		return err
	}
	if err := u.sessionKeys.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete session key: %w", err)
	}

	slog.Info("Session cleared", "userID", userID, "deviceID", key.DeviceID, "deviceStatus", status)
	return nil
}
