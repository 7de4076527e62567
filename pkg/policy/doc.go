// Package policy enforces the 1:1 binding between users and active devices.
//
// Two identity axes are used on purpose. Validate detects conflicts by
// credential id, the cryptographic identity of an authenticator.
// RevokeViolations remediates by device fingerprint, the physical hardware
// identity, because the same hardware can carry different credentials over
// its lifetime.
//
// Violations are business outcomes and are returned as data. Only repository
// failures are returned as errors.
package policy
