package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/attendance-gate/pkg/client"
	"github.com/tendant/attendance-gate/pkg/device"
	"github.com/tendant/attendance-gate/pkg/handshake"
	"github.com/tendant/attendance-gate/pkg/login"
	"github.com/tendant/attendance-gate/pkg/sessionkey"
	"github.com/tendant/attendance-gate/pkg/statemachine"
)

type fixture struct {
	handler     http.Handler
	repo        *device.InMemDeviceRepository
	sessionKeys *sessionkey.MemoryRepository
}

func setupHandler(t *testing.T) *fixture {
	t.Helper()
	repo := device.NewInMemDeviceRepository()
	sessionKeys := sessionkey.NewMemoryRepository()
	h := NewHandle(
		login.NewEcdhUseCase(repo, sessionKeys, handshake.NewEcdhService(), handshake.NewHkdfService()),
		login.NewLogoutUseCase(repo, sessionKeys),
	)
	return &fixture{handler: Handler(h), repo: repo, sessionKeys: sessionKeys}
}

func (f *fixture) enroll(t *testing.T, userID int64, credentialID string) device.Device {
	t.Helper()
	secret, err := handshake.NewHandshakeSecret()
	require.NoError(t, err)
	d, err := f.repo.Create(context.Background(), device.Device{
		UserID:            userID,
		CredentialID:      credentialID,
		PublicKey:         "pk",
		HandshakeSecret:   secret,
		DeviceFingerprint: "fp-" + credentialID,
		IsActive:          true,
		Status:            statemachine.Enrolled,
	})
	require.NoError(t, err)
	return d
}

func withUser(req *http.Request, userID int64) *http.Request {
	ctx := context.WithValue(req.Context(), client.AuthUserKey, &client.AuthUser{UserID: userID})
	return req.WithContext(ctx)
}

func clientKey(t *testing.T) string {
	t.Helper()
	pair, err := handshake.NewEcdhService().GenerateKeyPair()
	require.NoError(t, err)
	return pair.PublicKey
}

func ecdhBody(credentialID, publicKey string) *strings.Reader {
	return strings.NewReader(fmt.Sprintf(`{"credentialId":%q,"clientPublicKey":%q}`, credentialID, publicKey))
}

func TestEcdh(t *testing.T) {
	t.Run("establishes session", func(t *testing.T) {
		f := setupHandler(t)
		d := f.enroll(t, 42, "cred-1")

		rr := httptest.NewRecorder()
		f.handler.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPost, "/ecdh", ecdhBody("cred-1", clientKey(t))), 42))

		require.Equal(t, http.StatusOK, rr.Code)
		var out login.EcdhOutput
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		assert.Equal(t, d.DeviceID, out.DeviceID)
		assert.Len(t, out.Totpu, 6)
		_, err := handshake.DecodePublicKey(out.ServerPublicKey)
		assert.NoError(t, err)

		stored, err := f.sessionKeys.FindByUserID(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, d.DeviceID, stored.DeviceID)
	})

	t.Run("malformed client key", func(t *testing.T) {
		f := setupHandler(t)
		f.enroll(t, 42, "cred-1")

		rr := httptest.NewRecorder()
		f.handler.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPost, "/ecdh", ecdhBody("cred-1", "AAAA")), 42))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := setupHandler(t)
		rr := httptest.NewRecorder()
		f.handler.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPost, "/ecdh", strings.NewReader(`{}`)), 42))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown credential", func(t *testing.T) {
		f := setupHandler(t)
		rr := httptest.NewRecorder()
		f.handler.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPost, "/ecdh", ecdhBody("nope", clientKey(t))), 42))

		require.Equal(t, http.StatusNotFound, rr.Code)
		var errResp client.ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
		assert.Equal(t, "DEVICE_NOT_FOUND", string(errResp.Code))
	})

	t.Run("device of another user", func(t *testing.T) {
		f := setupHandler(t)
		f.enroll(t, 42, "cred-1")
		rr := httptest.NewRecorder()
		f.handler.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPost, "/ecdh", ecdhBody("cred-1", clientKey(t))), 7))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("revoked device", func(t *testing.T) {
		f := setupHandler(t)
		d := f.enroll(t, 42, "cred-1")
		require.NoError(t, f.repo.Revoke(context.Background(), d.DeviceID, "test"))

		rr := httptest.NewRecorder()
		f.handler.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPost, "/ecdh", ecdhBody("cred-1", clientKey(t))), 42))

		require.Equal(t, http.StatusForbidden, rr.Code)
		var errResp client.ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
		assert.Equal(t, "SESSION_NOT_ALLOWED", string(errResp.Code))
	})

	t.Run("unauthenticated", func(t *testing.T) {
		f := setupHandler(t)
		rr := httptest.NewRecorder()
		f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ecdh", ecdhBody("cred-1", clientKey(t))))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestLogout(t *testing.T) {
	f := setupHandler(t)
	f.enroll(t, 42, "cred-1")

	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPost, "/ecdh", ecdhBody("cred-1", clientKey(t))), 42))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	f.handler.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPost, "/logout", nil), 42))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	_, err := f.sessionKeys.FindByUserID(context.Background(), 42)
	assert.ErrorIs(t, err, sessionkey.ErrNotFound)

	// second logout is a no-op
	rr = httptest.NewRecorder()
	f.handler.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPost, "/logout", nil), 42))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
