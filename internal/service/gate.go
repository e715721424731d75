package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/avetisov/flashmenu/internal/errs"
	"github.com/avetisov/flashmenu/internal/fieldcrypt"
	"github.com/avetisov/flashmenu/internal/geo"
	"github.com/avetisov/flashmenu/internal/limiter"
	"github.com/avetisov/flashmenu/internal/model"
	"github.com/avetisov/flashmenu/internal/repository"
)

// AccessRequest is one attempt to view a catalog.
type AccessRequest struct {
	Token    string
	Code     string
	DeviceFP string
	SourceIP string
	Location *model.GeoPoint
}

// ItemView is a decrypted line item returned to a granted viewer.
type ItemView struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	PriceCents   int64  `json:"price_cents"`
	Stock        int    `json:"stock"`
	DisplayOrder int    `json:"display_order"`
}

// CatalogView is the decrypted catalog contents returned on a granted pass.
type CatalogView struct {
	CatalogID uuid.UUID  `json:"catalog_id"`
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Items     []ItemView `json:"items"`
}

// Gate validates access attempts end to end. Every denial records exactly one
// security event before returning, so audit completeness never depends on the
// caller.
type Gate struct {
	catalogs   repository.CatalogRepository
	whitelist  repository.WhitelistRepository
	ledger     limiter.Ledger
	events     *SecurityEvents
	lifecycle  *Lifecycle
	passphrase string
	log        *zap.Logger
	now        func() time.Time
}

// NewGate constructs the access gatekeeper.
func NewGate(
	catalogs repository.CatalogRepository,
	whitelist repository.WhitelistRepository,
	ledger limiter.Ledger,
	events *SecurityEvents,
	lifecycle *Lifecycle,
	passphrase string,
	log *zap.Logger,
) *Gate {
	return &Gate{
		catalogs:   catalogs,
		whitelist:  whitelist,
		ledger:     ledger,
		events:     events,
		lifecycle:  lifecycle,
		passphrase: passphrase,
		log:        log,
		now:        time.Now,
	}
}

// codeDigest returns the SHA-256 digest of an access code.
func codeDigest(code string) []byte {
	h := sha256.Sum256([]byte(code))
	return h[:]
}

// codeMatches compares digests in constant time: lengths first, then every
// byte position regardless of early mismatch.
func codeMatches(code string, digest []byte) bool {
	got := codeDigest(code)
	if len(got) != len(digest) {
		return false
	}
	return subtle.ConstantTimeCompare(got, digest) == 1
}

// deny records the audit event for a failed check, counts the failure against
// the source's rate window, and returns the sentinel.
func (g *Gate) deny(ctx context.Context, req AccessRequest, catalogID uuid.NullUUID, evType model.EventType, detail string, sentinel error) error {
	g.events.Record(ctx, model.SecurityEvent{
		CatalogID: catalogID,
		Type:      evType,
		SourceIP:  req.SourceIP,
		DeviceFP:  req.DeviceFP,
		Location:  req.Location,
		Detail:    detail,
	})
	if err := g.ledger.Failure(ctx, limiter.HashSource(req.SourceIP)); err != nil {
		g.log.Warn("failure count not recorded", zap.Error(err))
	}
	return sentinel
}

// Evaluate runs the ordered gate checks, short-circuiting on the first
// failure, and decrypts catalog contents on success.
func (g *Gate) Evaluate(ctx context.Context, req AccessRequest) (*CatalogView, error) {
	if req.Token == "" || req.Code == "" || req.SourceIP == "" {
		return nil, errs.ErrValidation
	}

	// 1. Rate limit. Being throttled is logged but not counted as another failure.
	allowed, err := g.ledger.Allow(ctx, limiter.HashSource(req.SourceIP))
	if err != nil {
		return nil, errs.ErrSystem
	}
	if !allowed {
		g.events.Record(ctx, model.SecurityEvent{
			Type:     model.EventRateLimitExceeded,
			SourceIP: req.SourceIP,
			DeviceFP: req.DeviceFP,
		})
		return nil, errs.ErrRateLimited
	}

	// 2. Device ban.
	if req.DeviceFP != "" {
		banned, err := g.ledger.IsBanned(ctx, limiter.HashSource(req.DeviceFP))
		if err != nil {
			return nil, errs.ErrSystem
		}
		if banned {
			return nil, g.deny(ctx, req, uuid.NullUUID{}, model.EventBannedDeviceAccess, "", errs.ErrDeviceBanned)
		}
	}

	// 3. Lookup. A direct catalog token and a per-viewer whitelist sub-token
	// share one URL slot; a miss never says which of the two was wrong.
	tokenHash := fieldcrypt.SearchHash(req.Token)
	var entry *model.WhitelistEntry
	catalog, err := g.catalogs.GetByTokenSearch(ctx, tokenHash)
	if errors.Is(err, errs.ErrNotFound) {
		entry, err = g.whitelist.FindBySubToken(ctx, tokenHash)
		if err == nil {
			catalog, err = g.catalogs.GetByID(ctx, entry.CatalogID)
		}
	}
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, g.deny(ctx, req, uuid.NullUUID{}, model.EventFailedMenuLookup, "", errs.ErrNotFound)
		}
		return nil, errs.ErrSystem
	}
	catalogID := uuid.NullUUID{UUID: catalog.ID, Valid: true}

	if catalog.Policy.WhitelistRequired && entry == nil {
		// Catalog-level token is not enough when a whitelist is enforced.
		return nil, g.deny(ctx, req, catalogID, model.EventFailedMenuLookup, "whitelist_required", errs.ErrNotFound)
	}

	// 4. Access code, constant time.
	if !codeMatches(req.Code, catalog.CodeDigest) {
		return nil, g.deny(ctx, req, catalogID, model.EventFailedAccessCode, "", errs.ErrInvalidCode)
	}

	// 5. Status.
	if catalog.Status != model.StatusActive {
		return nil, g.deny(ctx, req, catalogID, model.EventCatalogGone, "status:"+string(catalog.Status), errs.ErrGone)
	}

	// 6. Expiry.
	now := g.now()
	if !catalog.NeverExpires && catalog.ExpiresAt.Before(now) {
		if err := g.lifecycle.SoftBurn(ctx, catalog.ID, "expired"); err != nil && !errors.Is(err, errs.ErrConflict) {
			g.log.Error("expiry burn failed", zap.String("catalog_id", catalog.ID.String()), zap.Error(err))
		}
		return nil, g.deny(ctx, req, catalogID, model.EventCatalogGone, "status:expired", errs.ErrGone)
	}

	// 7. Geofence. A point exactly at the radius is allowed.
	if catalog.Policy.RequireGeofence {
		if req.Location == nil {
			return nil, g.deny(ctx, req, catalogID, model.EventGeofenceLocationDenied, "", errs.ErrLocationRequired)
		}
		dist := geo.DistanceKm(
			req.Location.Lat, req.Location.Lng,
			catalog.Policy.GeofenceCenter.Lat, catalog.Policy.GeofenceCenter.Lng,
		)
		if dist > catalog.Policy.GeofenceRadiusKm {
			return nil, g.deny(ctx, req, catalogID, model.EventGeofenceViolation, "", errs.ErrOutsideArea)
		}
	}

	// 8. Hour window, [start, end), wrapping across midnight.
	if catalog.Policy.HourStart != nil && catalog.Policy.HourEnd != nil {
		h := now.Hour()
		start, end := *catalog.Policy.HourStart, *catalog.Policy.HourEnd
		var ok bool
		if start <= end {
			ok = h >= start && h < end
		} else {
			ok = h >= start || h < end
		}
		if !ok {
			return nil, g.deny(ctx, req, catalogID, model.EventOutsideTimeWindow, "", errs.ErrOutsideHours)
		}
	}

	// Whitelist view caps.
	if entry != nil {
		if catalog.Policy.SingleUse && entry.ViewCount >= 1 {
			return nil, g.deny(ctx, req, catalogID, model.EventMaxViewsExceeded, "single_use", errs.ErrGone)
		}
		if catalog.Policy.MaxViews > 0 && entry.ViewCount >= catalog.Policy.MaxViews {
			return nil, g.deny(ctx, req, catalogID, model.EventMaxViewsExceeded, "", errs.ErrGone)
		}
	}

	view, err := g.decryptView(ctx, catalog)
	if err != nil {
		// A failed decrypt is indistinguishable from access denied to the caller.
		return nil, g.deny(ctx, req, catalogID, model.EventCatalogGone, "decrypt", errs.ErrDecryption)
	}

	// Bookkeeping runs only once content is actually delivered. A decrypt
	// failure must not consume a single-use entry or a view.
	if entry != nil {
		if _, err := g.whitelist.IncrementViews(ctx, entry.ID); err != nil {
			g.log.Warn("view counter not incremented", zap.Error(err))
		}
		if catalog.Policy.SingleUse {
			if err := g.whitelist.Revoke(ctx, entry.ID); err != nil {
				g.log.Warn("single-use revoke failed", zap.Error(err))
			}
		}
	}

	g.events.Record(ctx, model.SecurityEvent{
		CatalogID: catalogID,
		Type:      model.EventMenuAccessed,
		SourceIP:  req.SourceIP,
		DeviceFP:  req.DeviceFP,
		Location:  req.Location,
	})
	return view, nil
}

func (g *Gate) decryptView(ctx context.Context, catalog *model.Catalog) (*CatalogView, error) {
	name, err := fieldcrypt.Decrypt(catalog.NameEnc, g.passphrase)
	if err != nil {
		return nil, err
	}
	items, err := g.catalogs.ListItems(ctx, catalog.ID)
	if err != nil {
		return nil, err
	}
	view := &CatalogView{CatalogID: catalog.ID, Name: name}
	if !catalog.NeverExpires {
		t := catalog.ExpiresAt
		view.ExpiresAt = &t
	}
	for _, it := range items {
		itemName, err := fieldcrypt.Decrypt(it.NameEnc, g.passphrase)
		if err != nil {
			return nil, err
		}
		view.Items = append(view.Items, ItemView{
			ProductID:    it.ProductID,
			Name:         itemName,
			PriceCents:   it.PriceCents,
			Stock:        it.Stock,
			DisplayOrder: it.DisplayOrder,
		})
	}
	return view, nil
}
