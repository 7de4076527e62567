package device

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/attendance-gate/pkg/statemachine"
)

// InMemDeviceRepository implements DeviceRepository using in-memory maps
type InMemDeviceRepository struct {
	devices map[int64]Device
	history []HistoryEntry
	nextID  int64
	now     func() time.Time
	mu      sync.Mutex
}

var _ DeviceRepository = (*InMemDeviceRepository)(nil)

// NewInMemDeviceRepository creates a new in-memory device repository
func NewInMemDeviceRepository() *InMemDeviceRepository {
	return &InMemDeviceRepository{
		devices: make(map[int64]Device),
		nextID:  1,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new device. A zero DeviceID is assigned from a sequence.
func (r *InMemDeviceRepository) Create(ctx context.Context, device Device) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.devices {
		if existing.CredentialID == device.CredentialID {
			return Device{}, ErrCredentialExists
		}
	}

	if device.DeviceID == 0 {
		device.DeviceID = r.nextID
	}
	if device.DeviceID >= r.nextID {
		r.nextID = device.DeviceID + 1
	}
	if _, exists := r.devices[device.DeviceID]; exists {
		return Device{}, fmt.Errorf("device id %d already exists", device.DeviceID)
	}
	if device.EnrolledAt.IsZero() {
		device.EnrolledAt = r.now()
	}
	if device.Status == "" {
		device.Status = statemachine.Enrolled
	}
	r.devices[device.DeviceID] = copyDevice(device)
	slog.Debug("Device created", "deviceID", device.DeviceID, "userID", device.UserID)
	return copyDevice(device), nil
}

// FindByUserID returns the active devices of a user
func (r *InMemDeviceRepository) FindByUserID(ctx context.Context, userID int64) ([]Device, error) {
	return r.filter(func(d Device) bool { return d.UserID == userID && d.IsActive }), nil
}

// FindByUserIDIncludingInactive returns every device of a user
func (r *InMemDeviceRepository) FindByUserIDIncludingInactive(ctx context.Context, userID int64) ([]Device, error) {
	return r.filter(func(d Device) bool { return d.UserID == userID }), nil
}

// FindByCredentialID returns the active device holding the credential
func (r *InMemDeviceRepository) FindByCredentialID(ctx context.Context, credentialID string) (Device, error) {
	found := r.filter(func(d Device) bool { return d.CredentialID == credentialID && d.IsActive })
	if len(found) == 0 {
		return Device{}, ErrDeviceNotFound
	}
	return found[0], nil
}

// FindByCredentialIDIncludingInactive returns the device holding the credential in any state
func (r *InMemDeviceRepository) FindByCredentialIDIncludingInactive(ctx context.Context, credentialID string) (Device, error) {
	found := r.filter(func(d Device) bool { return d.CredentialID == credentialID })
	if len(found) == 0 {
		return Device{}, ErrDeviceNotFound
	}
	return found[0], nil
}

// FindActiveByDeviceFingerprint returns the active devices sharing a hardware fingerprint
func (r *InMemDeviceRepository) FindActiveByDeviceFingerprint(ctx context.Context, fingerprint string) ([]Device, error) {
	return r.filter(func(d Device) bool { return d.DeviceFingerprint == fingerprint && d.IsActive }), nil
}

// Revoke deactivates a device and appends a history entry under the same lock
func (r *InMemDeviceRepository) Revoke(ctx context.Context, deviceID int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, exists := r.devices[deviceID]
	if !exists {
		return ErrDeviceNotFound
	}
	if !device.IsActive {
		return nil
	}
	r.revokeLocked(device, reason)
	return nil
}

// RevokeAllByUserID deactivates every active device of a user
func (r *InMemDeviceRepository) RevokeAllByUserID(ctx context.Context, userID int64, reason string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, device := range r.devices {
		if device.UserID != userID || !device.IsActive {
			continue
		}
		r.revokeLocked(device, reason)
		count++
	}
	return count, nil
}

func (r *InMemDeviceRepository) revokeLocked(device Device, reason string) {
	now := r.now()
	device.IsActive = false
	device.Status = statemachine.Revoked
	r.devices[device.DeviceID] = device
	r.history = append(r.history, HistoryEntry{
		ID:        uuid.New(),
		DeviceID:  device.DeviceID,
		UserID:    device.UserID,
		Action:    HistoryActionRevoked,
		Reason:    reason,
		CreatedAt: now,
	})
	slog.Debug("Device revoked", "deviceID", device.DeviceID, "userID", device.UserID, "reason", reason)
}

// UpdateLastUsed stamps the device with the current time
func (r *InMemDeviceRepository) UpdateLastUsed(ctx context.Context, deviceID int64) error {
	return r.update(deviceID, func(d *Device) {
		now := r.now()
		d.LastUsedAt = &now
	})
}

// UpdateSignCount stores the authenticator signature counter
func (r *InMemDeviceRepository) UpdateSignCount(ctx context.Context, deviceID int64, signCount uint32) error {
	return r.update(deviceID, func(d *Device) { d.SignCount = signCount })
}

// UpdateFingerprint replaces the hardware fingerprint of a device
func (r *InMemDeviceRepository) UpdateFingerprint(ctx context.Context, deviceID int64, fingerprint string) error {
	return r.update(deviceID, func(d *Device) { d.DeviceFingerprint = fingerprint })
}

// FindHistory returns the audit entries of a device, oldest first
func (r *InMemDeviceRepository) FindHistory(ctx context.Context, deviceID int64) ([]HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var entries []HistoryEntry
	for _, h := range r.history {
		if h.DeviceID == deviceID {
			entries = append(entries, h)
		}
	}
	return entries, nil
}

func (r *InMemDeviceRepository) update(deviceID int64, fn func(d *Device)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, exists := r.devices[deviceID]
	if !exists {
		return ErrDeviceNotFound
	}
	fn(&device)
	r.devices[deviceID] = device
	return nil
}

// filter returns matching devices, most recently enrolled first
func (r *InMemDeviceRepository) filter(match func(Device) bool) []Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	var devices []Device
	for _, d := range r.devices {
		if match(d) {
			devices = append(devices, copyDevice(d))
		}
	}
	slices.SortFunc(devices, func(a, b Device) int {
		if c := b.EnrolledAt.Compare(a.EnrolledAt); c != 0 {
			return c
		}
		return cmp.Compare(b.DeviceID, a.DeviceID)
	})
	return devices
}

func copyDevice(d Device) Device {
	d.Transports = slices.Clone(d.Transports)
	if d.LastUsedAt != nil {
		t := *d.LastUsedAt
		d.LastUsedAt = &t
	}
	return d
}
