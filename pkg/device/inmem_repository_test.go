package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemDeviceRepository(t *testing.T) {
	runDeviceRepositoryContract(t, func(t *testing.T) DeviceRepository {
		return NewInMemDeviceRepository()
	})
}

func TestInMemDeviceRepository_ReturnsCopies(t *testing.T) {
	repo := NewInMemDeviceRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestDevice(1, "fp", time.Now()))
	require.NoError(t, err)
	created.Transports[0] = "mutated"

	found, err := repo.FindByCredentialID(ctx, created.CredentialID)
	require.NoError(t, err)
	assert.Equal(t, "internal", found.Transports[0])
}

func TestInMemDeviceRepository_CreateCopiesInput(t *testing.T) {
	repo := NewInMemDeviceRepository()
	ctx := context.Background()

	lastUsed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	input := newTestDevice(1, "fp", time.Now())
	input.LastUsedAt = &lastUsed
	_, err := repo.Create(ctx, input)
	require.NoError(t, err)

	*input.LastUsedAt = lastUsed.Add(time.Hour)
	input.Transports[0] = "mutated"

	found, err := repo.FindByCredentialID(ctx, input.CredentialID)
	require.NoError(t, err)
	require.NotNil(t, found.LastUsedAt)
	assert.Equal(t, lastUsed, *found.LastUsedAt)
	assert.Equal(t, "internal", found.Transports[0])
}

func TestInMemDeviceRepository_TieBreaksOnID(t *testing.T) {
	repo := NewInMemDeviceRepository()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first, err := repo.Create(ctx, newTestDevice(1, "fp-a", at))
	require.NoError(t, err)
	second, err := repo.Create(ctx, newTestDevice(1, "fp-b", at))
	require.NoError(t, err)

	devices, err := repo.FindByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{second.DeviceID, first.DeviceID}, DeviceIDs(devices))
}

func TestInMemDeviceRepository_DefaultsEnrolledAt(t *testing.T) {
	repo := NewInMemDeviceRepository()
	fixed := time.Date(2024, 2, 2, 2, 2, 2, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	d := newTestDevice(1, "fp", time.Time{})
	created, err := repo.Create(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, fixed, created.EnrolledAt)
}
