// Package device stores the authenticators enrolled for each user.
//
// A device is bound to exactly one user and carries the long-lived handshake
// secret used to derive session keys and time-based codes. Devices are never
// hard deleted: revocation flips IsActive and Status and writes a history
// entry in the same transaction.
//
// # Storage
//
// Two DeviceRepository implementations are provided:
//   - InMemDeviceRepository for tests and single-process deployments
//   - PostgresDeviceRepository backed by pgx (see schema.sql and EnsureSchema)
//
// # Fingerprints
//
// DeviceFingerprint identifies the physical hardware independently of the
// credential. GetRequestFingerprint reads it from the X-Device-Fingerprint
// header or derives one from the request headers.
package device
