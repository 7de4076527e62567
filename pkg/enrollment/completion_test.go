package enrollment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/attendance-gate/pkg/device"
	apperrors "github.com/tendant/attendance-gate/pkg/errors"
	"github.com/tendant/attendance-gate/pkg/policy"
	"github.com/tendant/attendance-gate/pkg/statemachine"
)

func setupCompletion(t *testing.T) (*CompletionService, *device.InMemDeviceRepository) {
	t.Helper()
	repo := device.NewInMemDeviceRepository()
	svc := NewCompletionService(repo, policy.NewOneToOneService(repo))
	svc.now = func() time.Time { return baseTime.Add(24 * time.Hour) }
	return svc, repo
}

func verified(userID int64, credentialID, fingerprint string) VerifiedCredential {
	return VerifiedCredential{
		UserID:            userID,
		CredentialID:      credentialID,
		PublicKey:         "pk-" + credentialID,
		AAGUID:            "aaguid",
		DeviceFingerprint: fingerprint,
		SignCount:         3,
		Transports:        []string{"internal"},
	}
}

func TestComplete_FirstEnrollment(t *testing.T) {
	svc, repo := setupCompletion(t)

	result, err := svc.Complete(context.Background(), verified(100, "cred", "fp"))
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	require.NotNil(t, result.Revocation)
	assert.Zero(t, result.Revocation.OwnDevicesRevoked)

	d := result.Device
	assert.Equal(t, int64(100), d.UserID)
	assert.True(t, d.IsActive)
	assert.Equal(t, statemachine.Enrolled, d.Status)
	assert.NotEmpty(t, d.HandshakeSecret)
	assert.Equal(t, uint32(3), d.SignCount)

	out, err := NewFlowOrchestrator(repo).AttemptAccess(context.Background(), 100, "fp")
	require.NoError(t, err)
	assert.Equal(t, AccessGranted, out.Result)
}

func TestComplete_DuplicateIsNoOp(t *testing.T) {
	svc, repo := setupCompletion(t)
	ctx := context.Background()
	first, err := svc.Complete(ctx, verified(100, "cred", "fp"))
	require.NoError(t, err)

	second, err := svc.Complete(ctx, verified(100, "cred", "fp"))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Nil(t, second.Revocation)
	assert.Equal(t, first.Device.DeviceID, second.Device.DeviceID)

	history, err := repo.FindHistory(ctx, first.Device.DeviceID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestComplete_SupersedesPriorDevice(t *testing.T) {
	svc, repo := setupCompletion(t)
	ctx := context.Background()
	old := seedDevice(t, repo, 100, "cred-old", "fp-old", baseTime)

	result, err := svc.Complete(ctx, verified(100, "cred-new", "fp-new"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Revocation.OwnDevicesRevoked)

	active, err := repo.FindByUserID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []int64{result.Device.DeviceID}, device.DeviceIDs(active))

	history, err := repo.FindHistory(ctx, old.DeviceID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, policy.OwnDeviceRevokeReason, history[0].Reason)
}

func TestComplete_HardwareTakeover(t *testing.T) {
	svc, repo := setupCompletion(t)
	ctx := context.Background()
	seedDevice(t, repo, 200, "cred-200", "shared-fp", baseTime)

	result, err := svc.Complete(ctx, verified(100, "cred-100", "shared-fp"))
	require.NoError(t, err)
	require.NotNil(t, result.Revocation.PreviousUserUnlinked)
	assert.Equal(t, int64(200), result.Revocation.PreviousUserUnlinked.UserID)

	active, err := repo.FindByUserID(ctx, 200)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestComplete_CredentialOwnedByAnotherUser(t *testing.T) {
	svc, repo := setupCompletion(t)
	seedDevice(t, repo, 200, "cred", "fp-200", baseTime)

	_, err := svc.Complete(context.Background(), verified(100, "cred", "fp-100"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))
	assert.Equal(t, int64(200), apperrors.GetDetails(err)["ownerUserId"])
}

func TestComplete_RevokedCredentialCannotReturn(t *testing.T) {
	svc, repo := setupCompletion(t)
	ctx := context.Background()
	d := seedDevice(t, repo, 100, "cred", "fp", baseTime)
	require.NoError(t, repo.Revoke(ctx, d.DeviceID, "lost"))

	_, err := svc.Complete(ctx, verified(100, "cred", "fp"))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))
}

func TestComplete_InvalidInput(t *testing.T) {
	svc, _ := setupCompletion(t)
	ctx := context.Background()

	for _, cred := range []VerifiedCredential{
		verified(0, "cred", "fp"),
		verified(100, "", "fp"),
		verified(100, "cred", ""),
		{UserID: 100, CredentialID: "cred", DeviceFingerprint: "fp"},
	} {
		_, err := svc.Complete(ctx, cred)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput), "%+v", cred)
	}
}

func TestComplete_SecretFailureCreatesNothing(t *testing.T) {
	svc, repo := setupCompletion(t)
	svc.newSecret = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err := svc.Complete(context.Background(), verified(100, "cred", "fp"))
	assert.ErrorContains(t, err, "entropy exhausted")

	all, err := repo.FindByUserIDIncludingInactive(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, all)
}
