// Package enrollment decides whether a user and the hardware they present
// are entitled to proceed, and persists newly verified credentials.
//
// FlowOrchestrator is read-only: AttemptAccess and ProcessEnrollmentConsent
// return decisions and never revoke anything. CompletionService is the write
// side that runs after the external WebAuthn verifier accepted a credential.
package enrollment
