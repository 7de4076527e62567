// Package handshake implements the login key agreement.
//
// EcdhService runs an ephemeral P-256 exchange with a fresh server key for
// every call. HkdfService binds the resulting shared secret to one enrolled
// credential and derives the time-based codes shown to the scanner from the
// device's long-lived handshake secret.
//
// Public keys travel as base64 of the 65 byte uncompressed point. Shared
// secrets and session keys are raw 32 byte values that never leave the
// server.
package handshake
