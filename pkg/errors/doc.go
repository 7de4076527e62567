// Package errors provides structured error handling with error codes for attendance-gate.
//
// Business outcomes (policy violations, enrollment results) are returned as
// typed values by the services and never appear here. This package only
// carries boundary failures and broken invariants, each under a distinct code
// so the HTTP layer can map it to a status.
//
// # Basic Usage
//
//	import apperrors "github.com/tendant/attendance-gate/pkg/errors"
//
//	// Create a coded error
//	err := apperrors.Newf(apperrors.ErrCodeDeviceNotFound, "device not found: %s", credentialID)
//
//	// Inspect it at the boundary
//	if apperrors.IsCode(err, apperrors.ErrCodeSessionNotAllowed) {
//		// device is not enrolled
//	}
//	status := apperrors.StatusCode(err)
//
// # Error Codes
//
// State machines:
//   - ErrCodeInvalidTransition: device transition not in the table
//   - ErrCodeSessionBlocked: session transition while enrollment is not enrolled
//   - ErrCodeInvalidSessionTransition: session transition not in the table
//
// Login:
//   - ErrCodeDeviceNotFound
//   - ErrCodeDeviceNotOwned
//   - ErrCodeSessionNotAllowed
//
// Details such as the attempted pair or the current status are attached with
// WithDetail and can be read back with GetDetails.
package errors
