package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/attendance-gate/pkg/device"
	"github.com/tendant/attendance-gate/pkg/enrollment"
	"github.com/tendant/attendance-gate/pkg/statemachine"
)

type fakeRestrictions struct {
	blocked map[int64]string
	calls   int
}

func (f *fakeRestrictions) IsBlocked(ctx context.Context, userID int64) (Restriction, error) {
	f.calls++
	reason, ok := f.blocked[userID]
	return Restriction{Blocked: ok, Reason: reason}, nil
}

type countingOrchestrator struct {
	inner Orchestrator
	calls int
}

func (c *countingOrchestrator) AttemptAccess(ctx context.Context, userID int64, fp string) (enrollment.AttemptAccessOutput, error) {
	c.calls++
	return c.inner.AttemptAccess(ctx, userID, fp)
}

type fakeSessions struct {
	active map[int64]bool
	calls  int
	err    error
}

func (f *fakeSessions) HasActiveSession(ctx context.Context, userID int64) (bool, error) {
	f.calls++
	return f.active[userID], f.err
}

type gatewayFixture struct {
	svc          *GatewayService
	repo         *device.InMemDeviceRepository
	restrictions *fakeRestrictions
	orchestrator *countingOrchestrator
	sessions     *fakeSessions
}

func setupGateway(t *testing.T) *gatewayFixture {
	t.Helper()
	repo := device.NewInMemDeviceRepository()
	f := &gatewayFixture{
		repo:         repo,
		restrictions: &fakeRestrictions{blocked: map[int64]string{}},
		orchestrator: &countingOrchestrator{inner: enrollment.NewFlowOrchestrator(repo)},
		sessions:     &fakeSessions{active: map[int64]bool{}},
	}
	f.svc = NewGatewayService(f.restrictions, f.orchestrator, f.sessions)
	return f
}

func (f *gatewayFixture) enroll(t *testing.T, userID int64, credentialID, fingerprint string) device.Device {
	t.Helper()
	d, err := f.repo.Create(context.Background(), device.Device{
		UserID:            userID,
		CredentialID:      credentialID,
		DeviceFingerprint: fingerprint,
		EnrolledAt:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:          true,
		Status:            statemachine.Enrolled,
	})
	require.NoError(t, err)
	return d
}

func TestGetState_BlockedShortCircuits(t *testing.T) {
	f := setupGateway(t)
	f.restrictions.blocked[100] = "suspended by registrar"
	f.enroll(t, 100, "cred", "fp")

	state, err := f.svc.GetState(context.Background(), 100, "fp")
	require.NoError(t, err)

	assert.Equal(t, AccessState{State: StateBlocked, Message: "suspended by registrar"}, state)
	assert.Nil(t, state.Action)
	assert.Equal(t, 1, f.restrictions.calls)
	assert.Zero(t, f.orchestrator.calls)
	assert.Zero(t, f.sessions.calls)
}

func TestGetState_NotEnrolled(t *testing.T) {
	f := setupGateway(t)

	state, err := f.svc.GetState(context.Background(), 100, "fp")
	require.NoError(t, err)

	assert.Equal(t, StateNotEnrolled, state.State)
	require.NotNil(t, state.Action)
	assert.Equal(t, ActionEnroll, *state.Action)
	assert.Empty(t, state.Message)
	assert.Nil(t, state.Device)
	assert.Zero(t, f.sessions.calls)
}

func TestGetState_ReenrollmentHasMessage(t *testing.T) {
	f := setupGateway(t)
	f.enroll(t, 100, "cred", "fp-A")

	state, err := f.svc.GetState(context.Background(), 100, "fp-B")
	require.NoError(t, err)

	assert.Equal(t, StateNotEnrolled, state.State)
	require.NotNil(t, state.Action)
	assert.Equal(t, ActionEnroll, *state.Action)
	assert.Equal(t, ReenrollmentMessage, state.Message)
	assert.Zero(t, f.sessions.calls)
}

func TestGetState_EnrolledNoSession(t *testing.T) {
	f := setupGateway(t)
	d := f.enroll(t, 100, "cred", "fp")

	state, err := f.svc.GetState(context.Background(), 100, "fp")
	require.NoError(t, err)

	assert.Equal(t, StateEnrolledNoSession, state.State)
	require.NotNil(t, state.Action)
	assert.Equal(t, ActionLogin, *state.Action)
	assert.Equal(t, &DeviceRef{CredentialID: "cred", DeviceID: d.DeviceID}, state.Device)
}

func TestGetState_Ready(t *testing.T) {
	f := setupGateway(t)
	d := f.enroll(t, 100, "cred", "fp")
	f.sessions.active[100] = true

	state, err := f.svc.GetState(context.Background(), 100, "fp")
	require.NoError(t, err)

	assert.Equal(t, StateReady, state.State)
	require.NotNil(t, state.Action)
	assert.Equal(t, ActionScan, *state.Action)
	assert.Equal(t, d.DeviceID, state.Device.DeviceID)
}

func TestGetState_Idempotent(t *testing.T) {
	f := setupGateway(t)
	f.enroll(t, 100, "cred", "fp")
	f.sessions.active[100] = true

	first, err := f.svc.GetState(context.Background(), 100, "fp")
	require.NoError(t, err)
	second, err := f.svc.GetState(context.Background(), 100, "fp")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGetState_SessionErrorPropagates(t *testing.T) {
	f := setupGateway(t)
	f.enroll(t, 100, "cred", "fp")
	f.sessions.err = errors.New("cache down")

	_, err := f.svc.GetState(context.Background(), 100, "fp")
	assert.ErrorContains(t, err, "cache down")
}
