package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/avetisov/flashmenu/internal/errs"
	"github.com/avetisov/flashmenu/internal/model"
)

// CatalogRepo implements CatalogRepository using PostgreSQL.
type CatalogRepo struct{ db *DB }

// NewCatalogRepo constructs a catalog repository.
func NewCatalogRepo(db *DB) *CatalogRepo { return &CatalogRepo{db: db} }

const catalogColumns = `
id, owner_id, name_enc, token_enc, token_search, code_digest, status,
burn_reason, expires_at, never_expires,
require_geofence, geofence_lat, geofence_lng, geofence_radius_km,
hour_start, hour_end, max_views, single_use, whitelist_required,
capture_action, created_at`

func scanCatalog(row pgx.Row) (*model.Catalog, error) {
	var c model.Catalog
	var expiresAt *time.Time
	if err := row.Scan(
		&c.ID, &c.OwnerID, &c.NameEnc, &c.TokenEnc, &c.TokenSearch, &c.CodeDigest, &c.Status,
		&c.BurnReason, &expiresAt, &c.NeverExpires,
		&c.Policy.RequireGeofence, &c.Policy.GeofenceCenter.Lat, &c.Policy.GeofenceCenter.Lng, &c.Policy.GeofenceRadiusKm,
		&c.Policy.HourStart, &c.Policy.HourEnd, &c.Policy.MaxViews, &c.Policy.SingleUse, &c.Policy.WhitelistRequired,
		&c.Policy.CaptureAction, &c.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if expiresAt != nil {
		c.ExpiresAt = *expiresAt
	}
	return &c, nil
}

// Create inserts a catalog and its line items in one transaction.
func (r *CatalogRepo) Create(ctx context.Context, c *model.Catalog, items []model.LineItem) (err error) {
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

	const ins = `
INSERT INTO catalogs (
  id, owner_id, name_enc, token_enc, token_search, code_digest, status,
  burn_reason, expires_at, never_expires,
  require_geofence, geofence_lat, geofence_lng, geofence_radius_km,
  hour_start, hour_end, max_views, single_use, whitelist_required, capture_action
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`

	var expiresAt *time.Time
	if !c.NeverExpires {
		expiresAt = &c.ExpiresAt
	}
	if _, err = tx.Exec(ctx, ins,
		c.ID, c.OwnerID, c.NameEnc, c.TokenEnc, c.TokenSearch, c.CodeDigest, c.Status,
		c.BurnReason, expiresAt, c.NeverExpires,
		c.Policy.RequireGeofence, c.Policy.GeofenceCenter.Lat, c.Policy.GeofenceCenter.Lng, c.Policy.GeofenceRadiusKm,
		c.Policy.HourStart, c.Policy.HourEnd, c.Policy.MaxViews, c.Policy.SingleUse, c.Policy.WhitelistRequired,
		c.Policy.CaptureAction,
	); err != nil {
		if isUniqueViolation(err) {
			return errs.ErrConflict
		}
		return err
	}

	const insItem = `
INSERT INTO catalog_items (id, catalog_id, product_id, name_enc, price_cents, stock, display_order)
VALUES ($1,$2,$3,$4,$5,$6,$7)`
	for _, it := range items {
		if _, err = tx.Exec(ctx, insItem,
			it.ID, c.ID, it.ProductID, it.NameEnc, it.PriceCents, it.Stock, it.DisplayOrder,
		); err != nil {
			return err
		}
	}
	return nil
}

// GetByID selects a catalog by ID.
func (r *CatalogRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Catalog, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+catalogColumns+` FROM catalogs WHERE id=$1`, id)
	return scanCatalog(row)
}

// GetByTokenSearch selects a catalog by the search hash of its URL token.
func (r *CatalogRepo) GetByTokenSearch(ctx context.Context, tokenSearch string) (*model.Catalog, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+catalogColumns+` FROM catalogs WHERE token_search=$1`, tokenSearch)
	return scanCatalog(row)
}

// ListItems returns line items ordered for display.
func (r *CatalogRepo) ListItems(ctx context.Context, catalogID uuid.UUID) ([]model.LineItem, error) {
	const q = `
SELECT id, catalog_id, product_id, name_enc, price_cents, stock, display_order
FROM catalog_items
WHERE catalog_id=$1
ORDER BY display_order ASC, product_id ASC`
	rows, err := r.db.Pool.Query(ctx, q, catalogID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LineItem
	for rows.Next() {
		var it model.LineItem
		if err = rows.Scan(&it.ID, &it.CatalogID, &it.ProductID, &it.NameEnc, &it.PriceCents, &it.Stock, &it.DisplayOrder); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Transition updates status with a source-state guard so transitions stay
// monotonic. Zero rows affected means the catalog is missing or already past
// the requested transition.
func (r *CatalogRepo) Transition(ctx context.Context, id uuid.UUID, from []model.CatalogStatus, to model.CatalogStatus, reason string) error {
	const q = `
UPDATE catalogs SET status=$2, burn_reason=$3
WHERE id=$1 AND status = ANY($4)`
	src := make([]string, len(from))
	for i, s := range from {
		src[i] = string(s)
	}
	tag, err := r.db.Pool.Exec(ctx, q, id, to, reason, src)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrConflict
	}
	return nil
}

// PurgeContent deletes line-item rows and blanks encrypted content.
func (r *CatalogRepo) PurgeContent(ctx context.Context, id uuid.UUID) (err error) {
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

	if _, err = tx.Exec(ctx, `DELETE FROM catalog_items WHERE catalog_id=$1`, id); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE catalogs SET name_enc='', token_enc='' WHERE id=$1`, id); err != nil {
		return err
	}
	return nil
}
