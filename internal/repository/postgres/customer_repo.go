package postgres

import (
	"context"

	"github.com/avetisov/flashmenu/internal/model"
)

// CustomerRepo implements CustomerRepository using PostgreSQL.
type CustomerRepo struct{ db *DB }

// NewCustomerRepo constructs a customer repository.
func NewCustomerRepo(db *DB) *CustomerRepo { return &CustomerRepo{db: db} }

// Upsert inserts or refreshes a customer matched by (catalog, contact hash).
func (r *CustomerRepo) Upsert(ctx context.Context, c *model.Customer) error {
	const q = `
INSERT INTO customers (id, catalog_id, contact_enc, contact_search)
VALUES ($1,$2,$3,$4)
ON CONFLICT (catalog_id, contact_search)
DO UPDATE SET contact_enc = EXCLUDED.contact_enc`
	_, err := r.db.Pool.Exec(ctx, q, c.ID, c.CatalogID, c.ContactEnc, c.ContactSearch)
	return err
}
