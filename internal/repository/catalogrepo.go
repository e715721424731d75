// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/avetisov/flashmenu/internal/model"
	"github.com/gofrs/uuid/v5"
)

// CatalogRepository provides access to catalogs and their line items.
type CatalogRepository interface {
	// Create inserts a catalog together with its line items.
	Create(ctx context.Context, c *model.Catalog, items []model.LineItem) error

	// GetByID loads a catalog by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Catalog, error)

	// GetByTokenSearch loads a catalog by the search hash of its URL token.
	GetByTokenSearch(ctx context.Context, tokenSearch string) (*model.Catalog, error)

	// ListItems returns the catalog's line items ordered for display.
	ListItems(ctx context.Context, catalogID uuid.UUID) ([]model.LineItem, error)

	// Transition moves a catalog between lifecycle states. It only succeeds
	// when the current status is one of the allowed source states, keeping
	// transitions monotonic toward a terminal state. Returns errs.ErrConflict
	// when the guard does not match.
	Transition(ctx context.Context, id uuid.UUID, from []model.CatalogStatus, to model.CatalogStatus, reason string) error

	// PurgeContent removes line-item rows and blanks encrypted content.
	// Used by hard burn; flagging status alone is not enough.
	PurgeContent(ctx context.Context, id uuid.UUID) error
}
