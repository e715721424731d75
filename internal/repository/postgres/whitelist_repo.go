package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/avetisov/flashmenu/internal/errs"
	"github.com/avetisov/flashmenu/internal/model"
)

// WhitelistRepo implements WhitelistRepository using PostgreSQL.
type WhitelistRepo struct{ db *DB }

// NewWhitelistRepo constructs a whitelist repository.
func NewWhitelistRepo(db *DB) *WhitelistRepo { return &WhitelistRepo{db: db} }

// Create inserts a whitelist entry.
func (r *WhitelistRepo) Create(ctx context.Context, e *model.WhitelistEntry) error {
	const q = `
INSERT INTO whitelist_entries (id, catalog_id, viewer_name_enc, contact_enc, contact_search, sub_token_hash, revoked, view_count)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.db.Pool.Exec(ctx, q,
		e.ID, e.CatalogID, e.ViewerNameEnc, e.ContactEnc, e.ContactSearch, e.SubTokenHash, e.Revoked, e.ViewCount)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	return err
}

// FindBySubToken selects a non-revoked entry by sub-token search hash.
func (r *WhitelistRepo) FindBySubToken(ctx context.Context, subTokenHash string) (*model.WhitelistEntry, error) {
	const q = `
SELECT id, catalog_id, viewer_name_enc, contact_enc, contact_search, sub_token_hash, revoked, view_count, created_at
FROM whitelist_entries
WHERE sub_token_hash=$1 AND revoked=false`
	row := r.db.Pool.QueryRow(ctx, q, subTokenHash)
	var e model.WhitelistEntry
	if err := row.Scan(&e.ID, &e.CatalogID, &e.ViewerNameEnc, &e.ContactEnc, &e.ContactSearch,
		&e.SubTokenHash, &e.Revoked, &e.ViewCount, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListActive returns all non-revoked entries of a catalog.
func (r *WhitelistRepo) ListActive(ctx context.Context, catalogID uuid.UUID) ([]model.WhitelistEntry, error) {
	const q = `
SELECT id, catalog_id, viewer_name_enc, contact_enc, contact_search, sub_token_hash, revoked, view_count, created_at
FROM whitelist_entries
WHERE catalog_id=$1 AND revoked=false
ORDER BY created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, catalogID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WhitelistEntry
	for rows.Next() {
		var e model.WhitelistEntry
		if err = rows.Scan(&e.ID, &e.CatalogID, &e.ViewerNameEnc, &e.ContactEnc, &e.ContactSearch,
			&e.SubTokenHash, &e.Revoked, &e.ViewCount, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// IncrementViews bumps the view counter and returns the new value.
func (r *WhitelistRepo) IncrementViews(ctx context.Context, id uuid.UUID) (int, error) {
	const q = `UPDATE whitelist_entries SET view_count = view_count + 1 WHERE id=$1 RETURNING view_count`
	var n int
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errs.ErrNotFound
		}
		return 0, err
	}
	return n, nil
}

// Revoke permanently disables an entry.
func (r *WhitelistRepo) Revoke(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE whitelist_entries SET revoked=true WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
