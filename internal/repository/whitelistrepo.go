package repository

import (
	"context"

	"github.com/avetisov/flashmenu/internal/model"
	"github.com/gofrs/uuid/v5"
)

// WhitelistRepository manages pre-authorized viewer entries.
type WhitelistRepository interface {
	// Create inserts a whitelist entry.
	Create(ctx context.Context, e *model.WhitelistEntry) error

	// FindBySubToken loads a non-revoked entry by sub-token search hash.
	FindBySubToken(ctx context.Context, subTokenHash string) (*model.WhitelistEntry, error)

	// ListActive returns all non-revoked entries of a catalog.
	ListActive(ctx context.Context, catalogID uuid.UUID) ([]model.WhitelistEntry, error)

	// IncrementViews bumps the entry's view counter and returns the new count.
	IncrementViews(ctx context.Context, id uuid.UUID) (int, error)

	// Revoke permanently disables an entry. There is no un-revoke.
	Revoke(ctx context.Context, id uuid.UUID) error
}
