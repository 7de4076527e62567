package restriction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/attendance-gate/internal/pgtest"
	"github.com/tendant/attendance-gate/pkg/access"
)

func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	r, err := store.IsBlocked(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, access.Restriction{}, r)

	require.NoError(t, store.Block(ctx, 1, "unpaid fees", nil))
	r, err = store.IsBlocked(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, access.Restriction{Blocked: true, Reason: "unpaid fees"}, r)

	require.NoError(t, store.Block(ctx, 1, "disciplinary", nil))
	r, err = store.IsBlocked(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "disciplinary", r.Reason)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.Block(ctx, 2, "expired", &past))
	r, err = store.IsBlocked(ctx, 2)
	require.NoError(t, err)
	assert.False(t, r.Blocked)

	future := time.Now().Add(time.Hour)
	require.NoError(t, store.Block(ctx, 3, "temporary", &future))
	r, err = store.IsBlocked(ctx, 3)
	require.NoError(t, err)
	assert.True(t, r.Blocked)

	require.NoError(t, store.Unblock(ctx, 1))
	require.NoError(t, store.Unblock(ctx, 1))
	r, err = store.IsBlocked(ctx, 1)
	require.NoError(t, err)
	assert.False(t, r.Blocked)
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_ExpiresWithClock(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	until := now.Add(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Block(ctx, 1, "cooldown", &until))
	r, err := store.IsBlocked(ctx, 1)
	require.NoError(t, err)
	assert.True(t, r.Blocked)

	now = until
	r, err = store.IsBlocked(ctx, 1)
	require.NoError(t, err)
	assert.False(t, r.Blocked)
}

func TestPostgresStore(t *testing.T) {
	pool := pgtest.Start(t)
	require.NoError(t, EnsureSchema(context.Background(), pool))
	runStoreContract(t, NewPostgresStore(pool))
}
