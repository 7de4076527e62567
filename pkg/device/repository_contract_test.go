package device

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/attendance-gate/pkg/statemachine"
)

func newTestDevice(userID int64, fingerprint string, enrolledAt time.Time) Device {
	return Device{
		UserID:            userID,
		CredentialID:      "cred-" + uuid.NewString(),
		PublicKey:         "pk",
		HandshakeSecret:   "secret",
		AAGUID:            "aaguid",
		DeviceFingerprint: fingerprint,
		EnrolledAt:        enrolledAt,
		IsActive:          true,
		Status:            statemachine.Enrolled,
		Transports:        []string{"internal"},
	}
}

// runDeviceRepositoryContract checks behavior every DeviceRepository must share
func runDeviceRepositoryContract(t *testing.T, newRepo func(t *testing.T) DeviceRepository) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	t.Run("CreateAndFindByCredential", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, newTestDevice(1, "fp-1", base))
		require.NoError(t, err)
		assert.NotZero(t, created.DeviceID)

		found, err := repo.FindByCredentialID(ctx, created.CredentialID)
		require.NoError(t, err)
		assert.Equal(t, created.DeviceID, found.DeviceID)
		assert.Equal(t, int64(1), found.UserID)
		assert.Equal(t, statemachine.Enrolled, found.Status)
		assert.Equal(t, []string{"internal"}, found.Transports)
		assert.Nil(t, found.LastUsedAt)
	})

	t.Run("DuplicateCredentialRejected", func(t *testing.T) {
		repo := newRepo(t)
		d := newTestDevice(1, "fp-1", base)
		_, err := repo.Create(ctx, d)
		require.NoError(t, err)

		d.UserID = 2
		_, err = repo.Create(ctx, d)
		assert.ErrorIs(t, err, ErrCredentialExists)
	})

	t.Run("UnknownCredential", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.FindByCredentialID(ctx, "missing")
		assert.ErrorIs(t, err, ErrDeviceNotFound)
		_, err = repo.FindByCredentialIDIncludingInactive(ctx, "missing")
		assert.ErrorIs(t, err, ErrDeviceNotFound)
	})

	t.Run("FindByUserIDOrdersNewestFirst", func(t *testing.T) {
		repo := newRepo(t)
		older, err := repo.Create(ctx, newTestDevice(5, "fp-a", base))
		require.NoError(t, err)
		newer, err := repo.Create(ctx, newTestDevice(5, "fp-b", base.Add(time.Hour)))
		require.NoError(t, err)
		_, err = repo.Create(ctx, newTestDevice(6, "fp-c", base))
		require.NoError(t, err)

		devices, err := repo.FindByUserID(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, []int64{newer.DeviceID, older.DeviceID}, DeviceIDs(devices))
	})

	t.Run("RevokeHidesFromActiveLookups", func(t *testing.T) {
		repo := newRepo(t)
		d, err := repo.Create(ctx, newTestDevice(7, "fp-7", base))
		require.NoError(t, err)

		require.NoError(t, repo.Revoke(ctx, d.DeviceID, "lost phone"))

		_, err = repo.FindByCredentialID(ctx, d.CredentialID)
		assert.ErrorIs(t, err, ErrDeviceNotFound)

		active, err := repo.FindByUserID(ctx, 7)
		require.NoError(t, err)
		assert.Empty(t, active)

		all, err := repo.FindByUserIDIncludingInactive(ctx, 7)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.False(t, all[0].IsActive)
		assert.Equal(t, statemachine.Revoked, all[0].Status)

		inactive, err := repo.FindByCredentialIDIncludingInactive(ctx, d.CredentialID)
		require.NoError(t, err)
		assert.Equal(t, d.DeviceID, inactive.DeviceID)

		byFingerprint, err := repo.FindActiveByDeviceFingerprint(ctx, "fp-7")
		require.NoError(t, err)
		assert.Empty(t, byFingerprint)
	})

	t.Run("RevokeWritesHistoryOnce", func(t *testing.T) {
		repo := newRepo(t)
		d, err := repo.Create(ctx, newTestDevice(8, "fp-8", base))
		require.NoError(t, err)

		require.NoError(t, repo.Revoke(ctx, d.DeviceID, "first"))
		require.NoError(t, repo.Revoke(ctx, d.DeviceID, "second"))

		history, err := repo.FindHistory(ctx, d.DeviceID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, HistoryActionRevoked, history[0].Action)
		assert.Equal(t, "first", history[0].Reason)
		assert.Equal(t, int64(8), history[0].UserID)
		assert.NotEqual(t, uuid.Nil, history[0].ID)
	})

	t.Run("RevokeUnknownDevice", func(t *testing.T) {
		repo := newRepo(t)
		assert.ErrorIs(t, repo.Revoke(ctx, 424242, "nope"), ErrDeviceNotFound)
	})

	t.Run("RevokeAllByUserID", func(t *testing.T) {
		repo := newRepo(t)
		a, err := repo.Create(ctx, newTestDevice(9, "fp-9a", base))
		require.NoError(t, err)
		b, err := repo.Create(ctx, newTestDevice(9, "fp-9b", base.Add(time.Minute)))
		require.NoError(t, err)
		other, err := repo.Create(ctx, newTestDevice(10, "fp-10", base))
		require.NoError(t, err)
		require.NoError(t, repo.Revoke(ctx, a.DeviceID, "earlier"))

		count, err := repo.RevokeAllByUserID(ctx, 9, "admin reset")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		active, err := repo.FindByUserID(ctx, 9)
		require.NoError(t, err)
		assert.Empty(t, active)

		history, err := repo.FindHistory(ctx, b.DeviceID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "admin reset", history[0].Reason)

		stillActive, err := repo.FindByCredentialID(ctx, other.CredentialID)
		require.NoError(t, err)
		assert.True(t, stillActive.IsActive)

		count, err = repo.RevokeAllByUserID(ctx, 9, "again")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("FindActiveByDeviceFingerprintSpansUsers", func(t *testing.T) {
		repo := newRepo(t)
		fp := "shared-" + uuid.NewString()
		a, err := repo.Create(ctx, newTestDevice(11, fp, base))
		require.NoError(t, err)
		b, err := repo.Create(ctx, newTestDevice(12, fp, base.Add(time.Second)))
		require.NoError(t, err)

		devices, err := repo.FindActiveByDeviceFingerprint(ctx, fp)
		require.NoError(t, err)
		assert.Equal(t, []int64{b.DeviceID, a.DeviceID}, DeviceIDs(devices))
	})

	t.Run("Updates", func(t *testing.T) {
		repo := newRepo(t)
		d, err := repo.Create(ctx, newTestDevice(13, "fp-13", base))
		require.NoError(t, err)

		require.NoError(t, repo.UpdateLastUsed(ctx, d.DeviceID))
		require.NoError(t, repo.UpdateSignCount(ctx, d.DeviceID, 17))
		require.NoError(t, repo.UpdateFingerprint(ctx, d.DeviceID, "fp-13b"))

		found, err := repo.FindByCredentialID(ctx, d.CredentialID)
		require.NoError(t, err)
		require.NotNil(t, found.LastUsedAt)
		assert.Equal(t, uint32(17), found.SignCount)
		assert.Equal(t, "fp-13b", found.DeviceFingerprint)

		assert.ErrorIs(t, repo.UpdateLastUsed(ctx, 999999), ErrDeviceNotFound)
	})
}
