// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Gate denial sentinels. Handlers map these to HTTP codes; the response body
// never says which check failed beyond the status itself.
var (
	// ErrValidation indicates malformed input, fixable by the caller.
	ErrValidation = errors.New("invalid input")

	// ErrRateLimited indicates too many failed attempts from a source.
	ErrRateLimited = errors.New("rate limited")

	// ErrDeviceBanned indicates the device fingerprint is on the ban list.
	ErrDeviceBanned = errors.New("device banned")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCode indicates an access code digest mismatch.
	ErrInvalidCode = errors.New("invalid access code")

	// ErrGone indicates the catalog is burned, expired, or otherwise not viewable.
	ErrGone = errors.New("catalog gone")

	// ErrLocationRequired indicates a geofenced catalog got no geolocation.
	ErrLocationRequired = errors.New("location required")

	// ErrOutsideArea indicates the viewer is outside the geofence radius.
	ErrOutsideArea = errors.New("outside allowed area")

	// ErrOutsideHours indicates access outside the configured hour window.
	ErrOutsideHours = errors.New("outside allowed hours")

	// ErrUnauthorized indicates a missing or invalid owner token.
	ErrUnauthorized = errors.New("unauthorized")
)

// Crypto and fulfillment sentinels.
var (
	// ErrDecryption indicates AEAD open failure, a malformed blob, or a wrong
	// passphrase. Callers must treat all three identically.
	ErrDecryption = errors.New("decryption failed")

	// ErrInsufficientStock indicates a reservation could not be fully held.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrProductNotInCatalog indicates a requested product is absent from the catalog.
	ErrProductNotInCatalog = errors.New("product not in catalog")

	// ErrPaymentFailed indicates the payment processor declined or failed.
	ErrPaymentFailed = errors.New("payment failed")

	// ErrConflict indicates a state transition was refused (e.g. burning an
	// already-terminal catalog or confirming a cancelled reservation).
	ErrConflict = errors.New("state conflict")

	// ErrSystem indicates an internal invariant violation. The only sentinel
	// escalated to an operator-visible critical alert.
	ErrSystem = errors.New("internal error")

	// ErrZombieOrder indicates confirm failed after payment was captured and
	// the compensating refund path ran. A SystemError to the caller, but
	// carries its own code so support can correlate the refund.
	ErrZombieOrder = errors.New("zombie order recovered")
)
