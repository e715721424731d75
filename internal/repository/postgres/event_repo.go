package postgres

import (
	"context"

	"github.com/avetisov/flashmenu/internal/model"
)

// EventRepo implements SecurityEventRepository using PostgreSQL.
// security_events is append-only; there are no update or delete paths.
type EventRepo struct{ db *DB }

// NewEventRepo constructs a security-event repository.
func NewEventRepo(db *DB) *EventRepo { return &EventRepo{db: db} }

// Insert appends one audit row.
func (r *EventRepo) Insert(ctx context.Context, ev *model.SecurityEvent) error {
	const q = `
INSERT INTO security_events (id, catalog_id, event_type, severity, source_ip, device_fp, lat, lng, detail)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	var catalogID any
	if ev.CatalogID.Valid {
		catalogID = ev.CatalogID.UUID
	}
	var lat, lng any
	if ev.Location != nil {
		lat, lng = ev.Location.Lat, ev.Location.Lng
	}
	_, err := r.db.Pool.Exec(ctx, q,
		ev.ID, catalogID, ev.Type, ev.Severity, ev.SourceIP, ev.DeviceFP, lat, lng, ev.Detail)
	return err
}
