package repository

import (
	"context"
	"time"

	"github.com/avetisov/flashmenu/internal/model"
	"github.com/gofrs/uuid/v5"
)

// InventoryRepository exposes the atomic reserve/cancel/confirm operations the
// order saga builds on. The store is the sole arbiter of stock invariants:
// concurrent reservations against the same catalog never double-spend a unit.
type InventoryRepository interface {
	// Reserve atomically holds stock for every requested item in a single
	// transaction. Partial reservation is never visible: if any item cannot
	// be fully held the whole call fails with errs.ErrInsufficientStock.
	Reserve(ctx context.Context, catalogID uuid.UUID, items []model.ReservationItem) (*model.Reservation, error)

	// Cancel releases a held reservation and restores its stock. Idempotent:
	// cancelling an already-cancelled or confirmed reservation is a no-op.
	Cancel(ctx context.Context, reservationID uuid.UUID, reason string) error

	// ConfirmOrder atomically converts a held reservation into a persisted
	// order carrying the payment reference. Fails with errs.ErrConflict when
	// the reservation is no longer held.
	ConfirmOrder(ctx context.Context, reservationID uuid.UUID, totalCents int64, paymentRef string) (*model.Order, error)

	// ReclaimStale cancels held reservations older than maxAge, restoring
	// their stock. Returns the number of reservations reclaimed.
	ReclaimStale(ctx context.Context, maxAge time.Duration) (int, error)
}

// CustomerRepository upserts lightweight contact records per catalog.
type CustomerRepository interface {
	// Upsert inserts a customer or refreshes an existing one matched by
	// (catalog, contact search hash).
	Upsert(ctx context.Context, c *model.Customer) error
}
