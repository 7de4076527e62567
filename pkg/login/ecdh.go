package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/awnumar/memguard"
	"github.com/tendant/attendance-gate/pkg/device"
	apperrors "github.com/tendant/attendance-gate/pkg/errors"
	"github.com/tendant/attendance-gate/pkg/handshake"
	"github.com/tendant/attendance-gate/pkg/sessionkey"
	"github.com/tendant/attendance-gate/pkg/statemachine"
)

// KeyExchanger runs the server side of an ephemeral key exchange
type KeyExchanger interface {
	PerformKeyExchange(clientPublicKey string) (handshake.KeyExchangeResult, error)
}

// KeyDeriver derives session keys and device codes
type KeyDeriver interface {
	DeriveSessionKey(sharedSecret []byte, credentialID string) ([]byte, error)
	GenerateTotp(handshakeSecret string) (string, error)
}

// EcdhInput is the login request
type EcdhInput struct {
	UserID          int64
	CredentialID    string
	ClientPublicKey string
}

// EcdhOutput is returned to the client after a successful login
type EcdhOutput struct {
	ServerPublicKey string `json:"serverPublicKey"`
	Totpu           string `json:"totpu"`
	DeviceID        int64  `json:"deviceId"`
}

// EcdhUseCase performs the login handshake
type EcdhUseCase struct {
	deviceRepo     device.DeviceRepository
	sessionKeys    sessionkey.Repository
	ecdh           KeyExchanger
	hkdf           KeyDeriver
	sessionMachine statemachine.SessionStateMachine
	now            func() time.Time
}

// Option configures an EcdhUseCase
type Option func(*EcdhUseCase)

// WithClock overrides the time source for SessionKey.CreatedAt
func WithClock(now func() time.Time) Option {
	return func(u *EcdhUseCase) {
		u.now = now
	}
}

// NewEcdhUseCase creates a new login use case
func NewEcdhUseCase(deviceRepo device.DeviceRepository, sessionKeys sessionkey.Repository, ecdh KeyExchanger, hkdf KeyDeriver, opts ...Option) *EcdhUseCase {
	u := &EcdhUseCase{
		deviceRepo:  deviceRepo,
		sessionKeys: sessionKeys,
		ecdh:        ecdh,
		hkdf:        hkdf,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Execute runs the login handshake for one credential
func (u *EcdhUseCase) Execute(ctx context.Context, input EcdhInput) (EcdhOutput, error) {
	d, err := u.deviceRepo.FindByCredentialIDIncludingInactive(ctx, input.CredentialID)
	if errors.Is(err, device.ErrDeviceNotFound) {
		return EcdhOutput{}, apperrors.Wrap(err, apperrors.ErrCodeDeviceNotFound, "no device for credential")
	}
	if err != nil {
		return EcdhOutput{}, fmt.Errorf("failed to look up device: %w", err)
	}

	if d.UserID != input.UserID {
		slog.Warn("Login with device of another user", "userID", input.UserID, "deviceID", d.DeviceID)
		return EcdhOutput{}, apperrors.New(apperrors.ErrCodeDeviceNotOwned, "device does not belong to user")
	}

	if !u.sessionMachine.IsEnabled(d.Status) {
		return EcdhOutput{}, apperrors.Newf(apperrors.ErrCodeSessionNotAllowed,
			"session not allowed for device in status %s", d.Status).WithDetail("status", d.Status)
	}

	exchange, err := u.ecdh.PerformKeyExchange(input.ClientPublicKey)
	if err != nil {
		return EcdhOutput{}, err
	}
	defer memguard.WipeBytes(exchange.SharedSecret)

	key, err := u.hkdf.DeriveSessionKey(exchange.SharedSecret, input.CredentialID)
	if err != nil {
		return EcdhOutput{}, err
	}
	defer memguard.WipeBytes(key)

	err = u.sessionKeys.Save(ctx, sessionkey.SessionKey{
		SessionKey: key,
		UserID:     input.UserID,
		DeviceID:   d.DeviceID,
		CreatedAt:  u.now(),
	}, sessionkey.DefaultTTL)
	if err != nil {
		return EcdhOutput{}, fmt.Errorf("failed to save session key: %w", err)
	}

	code, err := u.hkdf.GenerateTotp(d.HandshakeSecret)
	if err != nil {
		return EcdhOutput{}, fmt.Errorf("failed to generate device code: %w", err)
	}

	if err := u.deviceRepo.UpdateLastUsed(ctx, d.DeviceID); err != nil {
		return EcdhOutput{}, fmt.Errorf("failed to update device last used: %w", err)
	}

	slog.Info("Session established", "userID", input.UserID, "deviceID", d.DeviceID)
	return EcdhOutput{
		ServerPublicKey: exchange.ServerPublicKey,
		Totpu:           code,
		DeviceID:        d.DeviceID,
	}, nil
}
