package device

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tendant/attendance-gate/pkg/statemachine"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// DB is a DBTX that can also open transactions (*pgxpool.Pool, *pgx.Conn, pgx.Tx)
type DB interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// EnsureSchema creates the device tables if they do not exist
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply device schema: %w", err)
	}
	return nil
}

// PostgresDeviceRepository implements DeviceRepository using PostgreSQL
type PostgresDeviceRepository struct {
	db DB
}

var _ DeviceRepository = (*PostgresDeviceRepository)(nil)

// NewPostgresDeviceRepository creates a new PostgreSQL device repository
func NewPostgresDeviceRepository(db DB) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db}
}

const deviceColumns = `id, user_id, credential_id, public_key, handshake_secret, aaguid,
	device_fingerprint, sign_count, enrolled_at, last_used_at, is_active, status, transports`

func scanDevice(row pgx.Row) (Device, error) {
	var d Device
	var signCount int64
	var status string
	err := row.Scan(
		&d.DeviceID,
		&d.UserID,
		&d.CredentialID,
		&d.PublicKey,
		&d.HandshakeSecret,
		&d.AAGUID,
		&d.DeviceFingerprint,
		&signCount,
		&d.EnrolledAt,
		&d.LastUsedAt,
		&d.IsActive,
		&status,
		&d.Transports,
	)
	if err != nil {
		return Device{}, err
	}
	d.SignCount = uint32(signCount)
	d.Status = statemachine.EnrollmentState(status)
	return d, nil
}

func (r *PostgresDeviceRepository) queryDevices(ctx context.Context, query string, args ...interface{}) ([]Device, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}
	return devices, nil
}

func (r *PostgresDeviceRepository) queryDevice(ctx context.Context, query string, args ...interface{}) (Device, error) {
	d, err := scanDevice(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrDeviceNotFound
		}
		return Device{}, fmt.Errorf("failed to get device: %w", err)
	}
	return d, nil
}

// Create inserts a new device and returns it with its generated id
func (r *PostgresDeviceRepository) Create(ctx context.Context, device Device) (Device, error) {
	if device.EnrolledAt.IsZero() {
		device.EnrolledAt = time.Now().UTC()
	}
	if device.Status == "" {
		device.Status = statemachine.Enrolled
	}
	if device.Transports == nil {
		device.Transports = []string{}
	}

	query := `
		INSERT INTO devices (
			user_id, credential_id, public_key, handshake_secret, aaguid,
			device_fingerprint, sign_count, enrolled_at, is_active, status, transports
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		) RETURNING ` + deviceColumns

	created, err := scanDevice(r.db.QueryRow(ctx, query,
		device.UserID,
		device.CredentialID,
		device.PublicKey,
		device.HandshakeSecret,
		device.AAGUID,
		device.DeviceFingerprint,
		int64(device.SignCount),
		device.EnrolledAt,
		device.IsActive,
		string(device.Status),
		device.Transports,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Device{}, ErrCredentialExists
		}
		slog.Error("Failed to create device", "err", err, "userID", device.UserID)
		return Device{}, fmt.Errorf("failed to create device: %w", err)
	}

	slog.Debug("Device created", "deviceID", created.DeviceID, "userID", created.UserID)
	return created, nil
}

// FindByUserID returns the active devices of a user
func (r *PostgresDeviceRepository) FindByUserID(ctx context.Context, userID int64) ([]Device, error) {
	return r.queryDevices(ctx, `SELECT `+deviceColumns+` FROM devices
		WHERE user_id = $1 AND is_active ORDER BY enrolled_at DESC, id DESC`, userID)
}

// FindByUserIDIncludingInactive returns every device of a user
func (r *PostgresDeviceRepository) FindByUserIDIncludingInactive(ctx context.Context, userID int64) ([]Device, error) {
	return r.queryDevices(ctx, `SELECT `+deviceColumns+` FROM devices
		WHERE user_id = $1 ORDER BY enrolled_at DESC, id DESC`, userID)
}

// FindByCredentialID returns the active device holding the credential
func (r *PostgresDeviceRepository) FindByCredentialID(ctx context.Context, credentialID string) (Device, error) {
	return r.queryDevice(ctx, `SELECT `+deviceColumns+` FROM devices
		WHERE credential_id = $1 AND is_active`, credentialID)
}

// FindByCredentialIDIncludingInactive returns the device holding the credential in any state
func (r *PostgresDeviceRepository) FindByCredentialIDIncludingInactive(ctx context.Context, credentialID string) (Device, error) {
	return r.queryDevice(ctx, `SELECT `+deviceColumns+` FROM devices
		WHERE credential_id = $1`, credentialID)
}

// FindActiveByDeviceFingerprint returns the active devices sharing a hardware fingerprint
func (r *PostgresDeviceRepository) FindActiveByDeviceFingerprint(ctx context.Context, fingerprint string) ([]Device, error) {
	return r.queryDevices(ctx, `SELECT `+deviceColumns+` FROM devices
		WHERE device_fingerprint = $1 AND is_active ORDER BY enrolled_at DESC, id DESC`, fingerprint)
}

// Revoke flips the device to revoked and writes its history row in one transaction
func (r *PostgresDeviceRepository) Revoke(ctx context.Context, deviceID int64, reason string) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var userID int64
		err := tx.QueryRow(ctx, `
			UPDATE devices SET is_active = FALSE, status = $2
			WHERE id = $1 AND is_active
			RETURNING user_id`, deviceID, string(statemachine.Revoked)).Scan(&userID)
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM devices WHERE id = $1)`, deviceID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check device: %w", err)
			}
			if !exists {
				return ErrDeviceNotFound
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to revoke device: %w", err)
		}
		return insertHistory(ctx, tx, deviceID, userID, HistoryActionRevoked, reason)
	})
}

// RevokeAllByUserID revokes every active device of a user in one transaction
func (r *PostgresDeviceRepository) RevokeAllByUserID(ctx context.Context, userID int64, reason string) (int, error) {
	count := 0
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			UPDATE devices SET is_active = FALSE, status = $2
			WHERE user_id = $1 AND is_active
			RETURNING id`, userID, string(statemachine.Revoked))
		if err != nil {
			return fmt.Errorf("failed to revoke devices: %w", err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return fmt.Errorf("failed to collect revoked devices: %w", err)
		}
		for _, id := range ids {
			if err := insertHistory(ctx, tx, id, userID, HistoryActionRevoked, reason); err != nil {
				return err
			}
		}
		count = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, deviceID, userID int64, action HistoryAction, reason string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO device_history (id, device_id, user_id, action, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), deviceID, userID, string(action), reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record device history: %w", err)
	}
	return nil
}

// UpdateLastUsed stamps the device with the current time
func (r *PostgresDeviceRepository) UpdateLastUsed(ctx context.Context, deviceID int64) error {
	return r.exec(ctx, `UPDATE devices SET last_used_at = $2 WHERE id = $1`, deviceID, time.Now().UTC())
}

// UpdateSignCount stores the authenticator signature counter
func (r *PostgresDeviceRepository) UpdateSignCount(ctx context.Context, deviceID int64, signCount uint32) error {
	return r.exec(ctx, `UPDATE devices SET sign_count = $2 WHERE id = $1`, deviceID, int64(signCount))
}

// UpdateFingerprint replaces the hardware fingerprint of a device
func (r *PostgresDeviceRepository) UpdateFingerprint(ctx context.Context, deviceID int64, fingerprint string) error {
	return r.exec(ctx, `UPDATE devices SET device_fingerprint = $2 WHERE id = $1`, deviceID, fingerprint)
}

func (r *PostgresDeviceRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// FindHistory returns the audit entries of a device, oldest first
func (r *PostgresDeviceRepository) FindHistory(ctx context.Context, deviceID int64) ([]HistoryEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, device_id, user_id, action, reason, created_at
		FROM device_history WHERE device_id = $1 ORDER BY created_at ASC`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query device history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		var action string
		if err := rows.Scan(&h.ID, &h.DeviceID, &h.UserID, &action, &h.Reason, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device history: %w", err)
		}
		h.Action = HistoryAction(action)
		entries = append(entries, h)
	}
	return entries, rows.Err()
}
