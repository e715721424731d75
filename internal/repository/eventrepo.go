package repository

import (
	"context"

	"github.com/avetisov/flashmenu/internal/model"
)

// SecurityEventRepository persists the append-only audit trail.
type SecurityEventRepository interface {
	// Insert appends one security event. Rows are never updated or deleted.
	Insert(ctx context.Context, ev *model.SecurityEvent) error
}
