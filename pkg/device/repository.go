package device

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/attendance-gate/pkg/statemachine"
)

var (
	// ErrDeviceNotFound is returned by lookups that match no device
	ErrDeviceNotFound = errors.New("device not found")
	// ErrCredentialExists is returned by Create when the credential is already stored
	ErrCredentialExists = errors.New("credential already exists")
)

// Device is an enrolled authenticator bound to one user.
// Devices are never hard deleted; revocation flips IsActive and Status.
type Device struct {
	DeviceID          int64                        `json:"deviceId"`
	UserID            int64                        `json:"userId"`
	CredentialID      string                       `json:"credentialId"`
	PublicKey         string                       `json:"publicKey"`
	HandshakeSecret   string                       `json:"-"` // long-lived per-device TOTP secret
	AAGUID            string                       `json:"aaguid"`
	DeviceFingerprint string                       `json:"deviceFingerprint"` // physical hardware identity
	SignCount         uint32                       `json:"signCount"`
	EnrolledAt        time.Time                    `json:"enrolledAt"`
	LastUsedAt        *time.Time                   `json:"lastUsedAt,omitempty"`
	IsActive          bool                         `json:"isActive"`
	Status            statemachine.EnrollmentState `json:"status"`
	Transports        []string                     `json:"transports,omitempty"`
}

// HistoryAction names an audit event recorded against a device
type HistoryAction string

const (
	HistoryActionRevoked HistoryAction = "revoked"
)

// HistoryEntry is an audit record written in the same transaction as the
// state change it describes
type HistoryEntry struct {
	ID        uuid.UUID     `json:"id"`
	DeviceID  int64         `json:"deviceId"`
	UserID    int64         `json:"userId"`
	Action    HistoryAction `json:"action"`
	Reason    string        `json:"reason"`
	CreatedAt time.Time     `json:"createdAt"`
}

// DeviceRepository defines the storage operations the access core relies on.
// Lookups without "IncludingInactive" only return active devices. List
// lookups return the most recently enrolled device first.
type DeviceRepository interface {
	FindByUserID(ctx context.Context, userID int64) ([]Device, error)
	FindByUserIDIncludingInactive(ctx context.Context, userID int64) ([]Device, error)
	FindByCredentialID(ctx context.Context, credentialID string) (Device, error)
	FindByCredentialIDIncludingInactive(ctx context.Context, credentialID string) (Device, error)
	FindActiveByDeviceFingerprint(ctx context.Context, fingerprint string) ([]Device, error)

	// Revoke soft-deletes one device and records the reason atomically.
	// Revoking an inactive device is a no-op.
	Revoke(ctx context.Context, deviceID int64, reason string) error
	// RevokeAllByUserID revokes every active device of the user atomically and
	// returns how many were revoked
	RevokeAllByUserID(ctx context.Context, userID int64, reason string) (int, error)
	UpdateLastUsed(ctx context.Context, deviceID int64) error

	Create(ctx context.Context, device Device) (Device, error)
	UpdateSignCount(ctx context.Context, deviceID int64, signCount uint32) error
	UpdateFingerprint(ctx context.Context, deviceID int64, fingerprint string) error
	FindHistory(ctx context.Context, deviceID int64) ([]HistoryEntry, error)
}

// DeviceIDs returns the ids of the given devices in order
func DeviceIDs(devices []Device) []int64 {
	ids := make([]int64, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, d.DeviceID)
	}
	return ids
}
