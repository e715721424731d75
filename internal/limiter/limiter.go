// Package limiter defines the rate & trust ledger consulted by the gatekeeper:
// per-source failure throttling and the device-ban set. Backed by the shared
// persistent store so correctness holds across concurrent server instances.
package limiter

import (
	"context"
	"crypto/sha256"
)

// Ledger tracks per-source failed attempts and banned devices.
type Ledger interface {
	// Allow reports whether attempts from the source are currently permitted.
	Allow(ctx context.Context, ipHash []byte) (bool, error)
	// Failure records a failed access attempt from the source.
	Failure(ctx context.Context, ipHash []byte) error
	// IsBanned reports whether the device fingerprint is on the ban set.
	IsBanned(ctx context.Context, fpHash []byte) (bool, error)
	// Ban adds a device fingerprint to the ban set. Idempotent.
	Ban(ctx context.Context, fpHash []byte, reason string) error
}

// HashSource returns a stable hash for an IP or fingerprint string so raw
// identifiers are never stored.
func HashSource(s string) []byte {
	h := sha256.Sum256([]byte(s))
	return h[:]
}
