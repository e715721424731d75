package httpserver

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/avetisov/flashmenu/internal/errs"
	"github.com/avetisov/flashmenu/internal/limiter"
	"github.com/avetisov/flashmenu/internal/model"
	"github.com/avetisov/flashmenu/internal/repository"
	"github.com/avetisov/flashmenu/internal/service"
)

// In-memory repositories backing the full service stack in handler tests.

type memCatalogs struct {
	byID  map[uuid.UUID]*model.Catalog
	items map[uuid.UUID][]model.LineItem
}

var _ repository.CatalogRepository = (*memCatalogs)(nil)

func newMemCatalogs() *memCatalogs {
	return &memCatalogs{
		byID:  map[uuid.UUID]*model.Catalog{},
		items: map[uuid.UUID][]model.LineItem{},
	}
}

func (m *memCatalogs) Create(_ context.Context, c *model.Catalog, items []model.LineItem) error {
	cpy := *c
	m.byID[c.ID] = &cpy
	m.items[c.ID] = append([]model.LineItem(nil), items...)
	return nil
}

func (m *memCatalogs) GetByID(_ context.Context, id uuid.UUID) (*model.Catalog, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cpy := *c
	return &cpy, nil
}

func (m *memCatalogs) GetByTokenSearch(_ context.Context, tokenSearch string) (*model.Catalog, error) {
	for _, c := range m.byID {
		if c.TokenSearch == tokenSearch {
			cpy := *c
			return &cpy, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *memCatalogs) ListItems(_ context.Context, catalogID uuid.UUID) ([]model.LineItem, error) {
	return append([]model.LineItem(nil), m.items[catalogID]...), nil
}

func (m *memCatalogs) Transition(_ context.Context, id uuid.UUID, from []model.CatalogStatus, to model.CatalogStatus, reason string) error {
	c, ok := m.byID[id]
	if !ok {
		return errs.ErrConflict
	}
	for _, s := range from {
		if c.Status == s {
			c.Status = to
			c.BurnReason = reason
			return nil
		}
	}
	return errs.ErrConflict
}

func (m *memCatalogs) PurgeContent(_ context.Context, id uuid.UUID) error {
	if c, ok := m.byID[id]; ok {
		c.NameEnc = ""
		c.TokenEnc = ""
	}
	delete(m.items, id)
	return nil
}

type memWhitelist struct {
	entries map[uuid.UUID]*model.WhitelistEntry
}

var _ repository.WhitelistRepository = (*memWhitelist)(nil)

func newMemWhitelist() *memWhitelist {
	return &memWhitelist{entries: map[uuid.UUID]*model.WhitelistEntry{}}
}

func (m *memWhitelist) Create(_ context.Context, e *model.WhitelistEntry) error {
	cpy := *e
	m.entries[e.ID] = &cpy
	return nil
}

func (m *memWhitelist) FindBySubToken(_ context.Context, subTokenHash string) (*model.WhitelistEntry, error) {
	for _, e := range m.entries {
		if e.SubTokenHash == subTokenHash && !e.Revoked {
			cpy := *e
			return &cpy, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *memWhitelist) ListActive(_ context.Context, catalogID uuid.UUID) ([]model.WhitelistEntry, error) {
	var out []model.WhitelistEntry
	for _, e := range m.entries {
		if e.CatalogID == catalogID && !e.Revoked {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memWhitelist) IncrementViews(_ context.Context, id uuid.UUID) (int, error) {
	e, ok := m.entries[id]
	if !ok {
		return 0, errs.ErrNotFound
	}
	e.ViewCount++
	return e.ViewCount, nil
}

func (m *memWhitelist) Revoke(_ context.Context, id uuid.UUID) error {
	e, ok := m.entries[id]
	if !ok {
		return errs.ErrNotFound
	}
	e.Revoked = true
	return nil
}

type memLedger struct {
	blocked bool
	banned  map[string]bool
}

var _ limiter.Ledger = (*memLedger)(nil)

func (l *memLedger) Allow(context.Context, []byte) (bool, error) { return !l.blocked, nil }
func (l *memLedger) Failure(context.Context, []byte) error       { return nil }
func (l *memLedger) IsBanned(_ context.Context, fpHash []byte) (bool, error) {
	return l.banned[string(fpHash)], nil
}
func (l *memLedger) Ban(_ context.Context, fpHash []byte, _ string) error {
	if l.banned == nil {
		l.banned = map[string]bool{}
	}
	l.banned[string(fpHash)] = true
	return nil
}

type memEvents struct {
	events []model.SecurityEvent
}

var _ repository.SecurityEventRepository = (*memEvents)(nil)

func (m *memEvents) Insert(_ context.Context, ev *model.SecurityEvent) error {
	m.events = append(m.events, *ev)
	return nil
}

type memInventory struct {
	stock        map[string]int
	reservations map[uuid.UUID]*model.Reservation
	confirmErr   error
}

var _ repository.InventoryRepository = (*memInventory)(nil)

func newMemInventory(stock map[string]int) *memInventory {
	return &memInventory{stock: stock, reservations: map[uuid.UUID]*model.Reservation{}}
}

func (m *memInventory) Reserve(_ context.Context, catalogID uuid.UUID, items []model.ReservationItem) (*model.Reservation, error) {
	for _, it := range items {
		if m.stock[it.ProductID] < it.Quantity {
			return nil, errs.ErrInsufficientStock
		}
	}
	for _, it := range items {
		m.stock[it.ProductID] -= it.Quantity
	}
	res := &model.Reservation{
		ID:        uuid.Must(uuid.NewV4()),
		CatalogID: catalogID,
		LockToken: uuid.Must(uuid.NewV4()),
		State:     model.ReservationHeld,
		Items:     append([]model.ReservationItem(nil), items...),
		CreatedAt: time.Now(),
	}
	m.reservations[res.ID] = res
	return res, nil
}

func (m *memInventory) Cancel(_ context.Context, reservationID uuid.UUID, reason string) error {
	res, ok := m.reservations[reservationID]
	if !ok || res.State != model.ReservationHeld {
		return nil
	}
	res.State = model.ReservationCancelled
	res.CancelReason = reason
	for _, it := range res.Items {
		m.stock[it.ProductID] += it.Quantity
	}
	return nil
}

func (m *memInventory) ConfirmOrder(_ context.Context, reservationID uuid.UUID, totalCents int64, paymentRef string) (*model.Order, error) {
	if m.confirmErr != nil {
		return nil, m.confirmErr
	}
	res, ok := m.reservations[reservationID]
	if !ok || res.State != model.ReservationHeld {
		return nil, errs.ErrConflict
	}
	res.State = model.ReservationConfirmed
	return &model.Order{
		ID:            uuid.Must(uuid.NewV4()),
		ReservationID: reservationID,
		TotalCents:    totalCents,
		PaymentRef:    paymentRef,
		Status:        "confirmed",
		CreatedAt:     time.Now(),
	}, nil
}

func (m *memInventory) ReclaimStale(context.Context, time.Duration) (int, error) { return 0, nil }

type memCustomers struct {
	upserts []model.Customer
}

var _ repository.CustomerRepository = (*memCustomers)(nil)

func (m *memCustomers) Upsert(_ context.Context, c *model.Customer) error {
	m.upserts = append(m.upserts, *c)
	return nil
}

type stubPayments struct {
	chargeErr error
}

var _ service.PaymentProcessor = (*stubPayments)(nil)

func (p *stubPayments) Charge(context.Context, int64, string) (string, error) {
	if p.chargeErr != nil {
		return "", p.chargeErr
	}
	return "stub-ref", nil
}

func (p *stubPayments) Refund(context.Context, string) error { return nil }
