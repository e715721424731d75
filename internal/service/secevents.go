package service

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/avetisov/flashmenu/internal/errs"
	"github.com/avetisov/flashmenu/internal/model"
	"github.com/avetisov/flashmenu/internal/repository"
)

// Action tells the reporting client how the server reacted to a signal.
type Action string

const (
	ActionNone   Action = "none"
	ActionBlock  Action = "block"
	ActionBurned Action = "burned"
)

// severityByType is the fixed event-type → severity lookup. Unknown types
// default to low.
var severityByType = map[model.EventType]model.Severity{
	model.EventRateLimitExceeded:       model.SeverityHigh,
	model.EventBannedDeviceAccess:      model.SeverityCritical,
	model.EventFailedMenuLookup:        model.SeverityMedium,
	model.EventFailedAccessCode:        model.SeverityMedium,
	model.EventGeofenceLocationDenied:  model.SeverityMedium,
	model.EventGeofenceViolation:       model.SeverityHigh,
	model.EventOutsideTimeWindow:       model.SeverityLow,
	model.EventCatalogGone:             model.SeverityLow,
	model.EventMaxViewsExceeded:        model.SeverityMedium,
	model.EventMenuAccessed:            model.SeverityLow,
	model.EventScreenshotDetected:      model.SeverityHigh,
	model.EventScreenRecordingDetected: model.SeverityHigh,
	model.EventDevtoolsDetected:        model.SeverityHigh,
	model.EventPrintAttempt:            model.SeverityMedium,
	model.EventCopyAttempt:             model.SeverityMedium,
	model.EventVisibilityChange:        model.SeverityLow,
	model.EventAutoBurnTriggered:       model.SeverityCritical,
	model.EventZombieOrderRecovered:    model.SeverityCritical,
	model.EventRefundFailed:            model.SeverityCritical,
}

// captureEvents are the signal types that can trigger a policy auto-burn.
var captureEvents = map[model.EventType]bool{
	model.EventScreenshotDetected:      true,
	model.EventScreenRecordingDetected: true,
	model.EventDevtoolsDetected:        true,
	model.EventPrintAttempt:            true,
}

// SeverityFor returns the configured severity for an event type.
func SeverityFor(t model.EventType) model.Severity {
	if s, ok := severityByType[t]; ok {
		return s
	}
	return model.SeverityLow
}

// SecurityEvents classifies, persists, and reacts to security signals.
type SecurityEvents struct {
	repo      repository.SecurityEventRepository
	catalogs  repository.CatalogRepository
	lifecycle *Lifecycle
	log       *zap.Logger
}

// NewSecurityEvents constructs the event processor.
func NewSecurityEvents(repo repository.SecurityEventRepository, catalogs repository.CatalogRepository, lifecycle *Lifecycle, log *zap.Logger) *SecurityEvents {
	return &SecurityEvents{repo: repo, catalogs: catalogs, lifecycle: lifecycle, log: log}
}

// Record persists one audit row. It never fails the caller: losing an audit
// row must not block the triggering request, so persistence errors degrade to
// a best-effort log line.
func (s *SecurityEvents) Record(ctx context.Context, ev model.SecurityEvent) {
	if ev.ID.IsNil() {
		if id, err := uuid.NewV4(); err == nil {
			ev.ID = id
		}
	}
	if ev.Severity == "" {
		ev.Severity = SeverityFor(ev.Type)
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	if err := s.repo.Insert(ctx, &ev); err != nil {
		s.log.Warn("audit row dropped",
			zap.String("event_type", string(ev.Type)),
			zap.String("severity", string(ev.Severity)),
			zap.Error(err),
		)
	}
}

// Process records a client-reported signal and applies the catalog's capture
// policy. Burn policy soft-burns synchronously and records a second
// auto_burn_triggered event in the same call.
func (s *SecurityEvents) Process(ctx context.Context, ev model.SecurityEvent) Action {
	s.Record(ctx, ev)

	if !captureEvents[ev.Type] || !ev.CatalogID.Valid {
		return ActionNone
	}
	catalog, err := s.catalogs.GetByID(ctx, ev.CatalogID.UUID)
	if err != nil {
		return ActionNone
	}

	switch catalog.Policy.CaptureAction {
	case model.CaptureBurn:
		reason := "auto_burn:" + string(ev.Type)
		if err := s.lifecycle.SoftBurn(ctx, catalog.ID, reason); err != nil {
			if !errors.Is(err, errs.ErrConflict) {
				s.log.Error("auto burn failed", zap.String("catalog_id", catalog.ID.String()), zap.Error(err))
				return ActionBlock
			}
			// Already terminal; the catalog is gone either way.
		}
		s.Record(ctx, model.SecurityEvent{
			CatalogID: ev.CatalogID,
			Type:      model.EventAutoBurnTriggered,
			SourceIP:  ev.SourceIP,
			DeviceFP:  ev.DeviceFP,
			Detail:    reason,
		})
		return ActionBurned
	case model.CaptureBlock:
		return ActionBlock
	default:
		return ActionNone
	}
}
