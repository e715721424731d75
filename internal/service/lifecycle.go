// Package service contains the gatekeeper, lifecycle, security-event
// processing, and order-fulfillment logic.
package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/avetisov/flashmenu/internal/errs"
	"github.com/avetisov/flashmenu/internal/fieldcrypt"
	"github.com/avetisov/flashmenu/internal/model"
	"github.com/avetisov/flashmenu/internal/repository"
)

// Notifier is signaled on burn transitions. Delivery is out of scope; the
// lifecycle never depends on the signal succeeding.
type Notifier interface {
	CatalogBurned(ctx context.Context, catalogID uuid.UUID, mode, reason string)
}

// NopNotifier discards burn signals.
type NopNotifier struct{}

func (NopNotifier) CatalogBurned(context.Context, uuid.UUID, string, string) {}

// Lifecycle owns catalog status transitions. All transitions are monotonic
// toward a terminal state; the repository's source-state guard enforces it.
type Lifecycle struct {
	catalogs   repository.CatalogRepository
	whitelist  repository.WhitelistRepository
	notifier   Notifier
	passphrase string
	log        *zap.Logger
}

// NewLifecycle constructs the lifecycle state machine.
func NewLifecycle(catalogs repository.CatalogRepository, whitelist repository.WhitelistRepository, notifier Notifier, passphrase string, log *zap.Logger) *Lifecycle {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Lifecycle{catalogs: catalogs, whitelist: whitelist, notifier: notifier, passphrase: passphrase, log: log}
}

// Activate publishes a draft catalog.
func (l *Lifecycle) Activate(ctx context.Context, id uuid.UUID) error {
	return l.catalogs.Transition(ctx, id, []model.CatalogStatus{model.StatusDraft}, model.StatusActive, "")
}

// SoftBurn deactivates a catalog. Content rows are kept so the owner can
// still migrate viewers to a replacement.
func (l *Lifecycle) SoftBurn(ctx context.Context, id uuid.UUID, reason string) error {
	err := l.catalogs.Transition(ctx, id,
		[]model.CatalogStatus{model.StatusDraft, model.StatusActive},
		model.StatusSoftBurned, reason)
	if err != nil {
		return err
	}
	l.log.Info("catalog soft-burned", zap.String("catalog_id", id.String()), zap.String("reason", reason))
	l.notifier.CatalogBurned(ctx, id, "soft", reason)
	return nil
}

// HardBurn irreversibly deactivates a catalog and purges its line-item and
// content rows, not just the status flag.
func (l *Lifecycle) HardBurn(ctx context.Context, id uuid.UUID, reason string) error {
	err := l.catalogs.Transition(ctx, id,
		[]model.CatalogStatus{model.StatusDraft, model.StatusActive, model.StatusSoftBurned, model.StatusExpired},
		model.StatusHardBurned, reason)
	if err != nil {
		return err
	}
	if err := l.catalogs.PurgeContent(ctx, id); err != nil {
		// Status already flipped, so the catalog is unreachable either way.
		l.log.Error("hard burn purge failed", zap.String("catalog_id", id.String()), zap.Error(err))
		return err
	}
	l.log.Info("catalog hard-burned", zap.String("catalog_id", id.String()), zap.String("reason", reason))
	l.notifier.CatalogBurned(ctx, id, "hard", reason)
	return nil
}

// Expire marks an active catalog expired (owner/cron initiated; the gate's
// own expiry detection soft-burns with reason "expired" instead).
func (l *Lifecycle) Expire(ctx context.Context, id uuid.UUID) error {
	return l.catalogs.Transition(ctx, id,
		[]model.CatalogStatus{model.StatusActive}, model.StatusExpired, "expired")
}

// MigratedViewer pairs a copied whitelist entry with its fresh sub-token.
// The plaintext sub-token exists only in this response.
type MigratedViewer struct {
	EntryID  uuid.UUID
	SubToken string
}

// MigratedCatalog describes the replacement catalog created by MigrateViewers.
type MigratedCatalog struct {
	CatalogID  uuid.UUID
	Token      string
	AccessCode string
	Viewers    []MigratedViewer
}

// MigrateViewers creates a replacement for a soft-burned catalog and copies
// its non-revoked whitelist. Deliberately a distinct, non-atomic follow-up to
// the burn: a partial copy leaves the old entries intact and retryable.
func (l *Lifecycle) MigrateViewers(ctx context.Context, oldID uuid.UUID) (*MigratedCatalog, error) {
	old, err := l.catalogs.GetByID(ctx, oldID)
	if err != nil {
		return nil, err
	}
	if old.Status != model.StatusSoftBurned {
		return nil, errs.ErrConflict
	}

	token, err := newURLToken()
	if err != nil {
		return nil, err
	}
	code, err := newAccessCode()
	if err != nil {
		return nil, err
	}
	tokenEnc, err := fieldcrypt.Encrypt(token, l.passphrase)
	if err != nil {
		return nil, err
	}

	newID, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	replacement := &model.Catalog{
		ID:           newID,
		OwnerID:      old.OwnerID,
		NameEnc:      old.NameEnc,
		TokenEnc:     tokenEnc,
		TokenSearch:  fieldcrypt.SearchHash(token),
		CodeDigest:   codeDigest(code),
		Status:       model.StatusActive,
		ExpiresAt:    old.ExpiresAt,
		NeverExpires: old.NeverExpires,
		Policy:       old.Policy,
	}

	oldItems, err := l.catalogs.ListItems(ctx, oldID)
	if err != nil {
		return nil, err
	}
	items := make([]model.LineItem, 0, len(oldItems))
	for _, it := range oldItems {
		itemID, idErr := uuid.NewV4()
		if idErr != nil {
			return nil, idErr
		}
		it.ID = itemID
		it.CatalogID = newID
		items = append(items, it)
	}

	if err := l.catalogs.Create(ctx, replacement, items); err != nil {
		return nil, err
	}

	entries, err := l.whitelist.ListActive(ctx, oldID)
	if err != nil {
		return nil, err
	}
	out := &MigratedCatalog{CatalogID: newID, Token: token, AccessCode: code}
	for _, e := range entries {
		subToken, stErr := newURLToken()
		if stErr != nil {
			return nil, stErr
		}
		entryID, idErr := uuid.NewV4()
		if idErr != nil {
			return nil, idErr
		}
		clone := model.WhitelistEntry{
			ID:            entryID,
			CatalogID:     newID,
			ViewerNameEnc: e.ViewerNameEnc,
			ContactEnc:    e.ContactEnc,
			ContactSearch: e.ContactSearch,
			SubTokenHash:  fieldcrypt.SearchHash(subToken),
		}
		if err := l.whitelist.Create(ctx, &clone); err != nil {
			return nil, fmt.Errorf("copy whitelist: %w", err)
		}
		out.Viewers = append(out.Viewers, MigratedViewer{EntryID: entryID, SubToken: subToken})
	}
	return out, nil
}

func newURLToken() (string, error) {
	u, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// newAccessCode returns a 6-digit numeric code.
func newAccessCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
