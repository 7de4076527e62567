// Package login establishes and ends device sessions.
//
// EcdhUseCase checks that the presented credential belongs to the caller and
// is enrolled, runs the ephemeral key exchange, stores the derived session
// key for the user and returns the server public key with the device's
// current code. Nothing is persisted until every check has passed and the
// key has been derived.
package login
