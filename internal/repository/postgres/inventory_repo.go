package postgres

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/avetisov/flashmenu/internal/errs"
	"github.com/avetisov/flashmenu/internal/model"
)

// InventoryRepo implements InventoryRepository using PostgreSQL. All stock
// arithmetic happens store-side via conditional updates so concurrent order
// attempts cannot both hold the same unit.
type InventoryRepo struct{ db *DB }

// NewInventoryRepo constructs an inventory repository.
func NewInventoryRepo(db *DB) *InventoryRepo { return &InventoryRepo{db: db} }

// Reserve holds stock for every item inside one transaction. The conditional
// decrement (stock >= quantity) is the arbiter; zero rows affected on any item
// rolls back the whole reservation.
func (r *InventoryRepo) Reserve(ctx context.Context, catalogID uuid.UUID, items []model.ReservationItem) (res *model.Reservation, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
			res = nil
		}
	}()

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	lockToken, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	const decr = `
UPDATE catalog_items SET stock = stock - $3
WHERE catalog_id=$1 AND product_id=$2 AND stock >= $3`
	for _, it := range items {
		tag, decErr := tx.Exec(ctx, decr, catalogID, it.ProductID, it.Quantity)
		if decErr != nil {
			err = decErr
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			err = errs.ErrInsufficientStock
			return nil, err
		}
	}

	const insRes = `
INSERT INTO reservations (id, catalog_id, lock_token, state)
VALUES ($1,$2,$3,'held')`
	if _, err = tx.Exec(ctx, insRes, id, catalogID, lockToken); err != nil {
		return nil, err
	}
	const insItem = `
INSERT INTO reservation_items (reservation_id, product_id, quantity)
VALUES ($1,$2,$3)`
	for _, it := range items {
		if _, err = tx.Exec(ctx, insItem, id, it.ProductID, it.Quantity); err != nil {
			return nil, err
		}
	}

	return &model.Reservation{
		ID:        id,
		CatalogID: catalogID,
		LockToken: lockToken,
		State:     model.ReservationHeld,
		Items:     items,
		CreatedAt: time.Now(),
	}, nil
}

// Cancel flips a held reservation to cancelled and restores its stock.
// The state guard makes the call idempotent: a reservation that is already
// cancelled or confirmed is left untouched and no stock moves.
func (r *InventoryRepo) Cancel(ctx context.Context, reservationID uuid.UUID, reason string) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const flip = `
UPDATE reservations SET state='cancelled', cancel_reason=$2
WHERE id=$1 AND state='held'`
	tag, err := tx.Exec(ctx, flip, reservationID, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	const restore = `
UPDATE catalog_items AS ci
SET stock = ci.stock + ri.quantity
FROM reservations r
JOIN reservation_items ri ON ri.reservation_id = r.id
WHERE r.id=$1 AND ci.catalog_id = r.catalog_id AND ci.product_id = ri.product_id`
	if _, err = tx.Exec(ctx, restore, reservationID); err != nil {
		return err
	}
	return nil
}

// ConfirmOrder converts a held reservation into a persisted order in one
// transaction. The order row only ever exists in confirmed state.
func (r *InventoryRepo) ConfirmOrder(ctx context.Context, reservationID uuid.UUID, totalCents int64, paymentRef string) (order *model.Order, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
			order = nil
		}
	}()

	const flip = `
UPDATE reservations SET state='confirmed'
WHERE id=$1 AND state='held'`
	tag, err := tx.Exec(ctx, flip, reservationID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		err = errs.ErrConflict
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	const ins = `
INSERT INTO orders (id, reservation_id, total_cents, payment_ref, status)
VALUES ($1,$2,$3,$4,'confirmed')`
	if _, err = tx.Exec(ctx, ins, id, reservationID, totalCents, paymentRef); err != nil {
		return nil, err
	}

	return &model.Order{
		ID:            id,
		ReservationID: reservationID,
		TotalCents:    totalCents,
		PaymentRef:    paymentRef,
		Status:        "confirmed",
		CreatedAt:     time.Now(),
	}, nil
}

// ReclaimStale cancels held reservations older than maxAge and restores their
// stock. The cancel flip runs first and takes the row locks; stock is restored
// only for reservations the flip actually claimed, so a confirm racing the
// sweep cannot end up with both a confirmed order and re-credited stock.
// Safe to run repeatedly and from multiple instances.
func (r *InventoryRepo) ReclaimStale(ctx context.Context, maxAge time.Duration) (n int, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
			n = 0
		}
	}()

	const flip = `
UPDATE reservations SET state='cancelled', cancel_reason='stale_reclaimed'
WHERE state='held' AND created_at < now() - $1::interval
RETURNING id`
	rows, err := tx.Query(ctx, flip, maxAge)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id uuid.UUID
		if err = rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id.String())
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	const restore = `
UPDATE catalog_items AS ci
SET stock = ci.stock + ri.quantity
FROM reservations r
JOIN reservation_items ri ON ri.reservation_id = r.id
WHERE r.id = ANY($1::uuid[])
  AND ci.catalog_id = r.catalog_id AND ci.product_id = ri.product_id`
	if _, err = tx.Exec(ctx, restore, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}
