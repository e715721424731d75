package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/avetisov/flashmenu/internal/errs"
	"github.com/avetisov/flashmenu/internal/fieldcrypt"
	"github.com/avetisov/flashmenu/internal/limiter"
	"github.com/avetisov/flashmenu/internal/model"
	"github.com/avetisov/flashmenu/internal/repository"
)

const testPassphrase = "service-test-passphrase"

func mustEncrypt(t *testing.T, plaintext string) string {
	t.Helper()
	enc, err := fieldcrypt.Encrypt(plaintext, testPassphrase)
	if err != nil {
		t.Fatalf("encrypt %q: %v", plaintext, err)
	}
	return enc
}

/************ catalogs ************/

type fakeCatalogs struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*model.Catalog
	items map[uuid.UUID][]model.LineItem

	getErr  error
	listErr error

	purged []uuid.UUID
}

var _ repository.CatalogRepository = (*fakeCatalogs)(nil)

func newFakeCatalogs() *fakeCatalogs {
	return &fakeCatalogs{
		byID:  map[uuid.UUID]*model.Catalog{},
		items: map[uuid.UUID][]model.LineItem{},
	}
}

func (f *fakeCatalogs) add(c *model.Catalog, items []model.LineItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cpy := *c
	f.byID[c.ID] = &cpy
	f.items[c.ID] = append([]model.LineItem(nil), items...)
}

func (f *fakeCatalogs) Create(_ context.Context, c *model.Catalog, items []model.LineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byID[c.ID]; exists {
		return errs.ErrConflict
	}
	cpy := *c
	f.byID[c.ID] = &cpy
	f.items[c.ID] = append([]model.LineItem(nil), items...)
	return nil
}

func (f *fakeCatalogs) GetByID(_ context.Context, id uuid.UUID) (*model.Catalog, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cpy := *c
	return &cpy, nil
}

func (f *fakeCatalogs) GetByTokenSearch(_ context.Context, tokenSearch string) (*model.Catalog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byID {
		if c.TokenSearch == tokenSearch {
			cpy := *c
			return &cpy, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeCatalogs) ListItems(_ context.Context, catalogID uuid.UUID) ([]model.LineItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.LineItem(nil), f.items[catalogID]...), nil
}

func (f *fakeCatalogs) Transition(_ context.Context, id uuid.UUID, from []model.CatalogStatus, to model.CatalogStatus, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
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

func (f *fakeCatalogs) PurgeContent(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.byID[id]; ok {
		c.NameEnc = ""
		c.TokenEnc = ""
	}
	delete(f.items, id)
	f.purged = append(f.purged, id)
	return nil
}

func (f *fakeCatalogs) status(t *testing.T, id uuid.UUID) model.CatalogStatus {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		t.Fatalf("catalog %s not found", id)
	}
	return c.Status
}

/************ whitelist ************/

type fakeWhitelist struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*model.WhitelistEntry

	incErr error
}

var _ repository.WhitelistRepository = (*fakeWhitelist)(nil)

func newFakeWhitelist() *fakeWhitelist {
	return &fakeWhitelist{entries: map[uuid.UUID]*model.WhitelistEntry{}}
}

func (f *fakeWhitelist) add(e model.WhitelistEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cpy := e
	f.entries[e.ID] = &cpy
}

func (f *fakeWhitelist) Create(_ context.Context, e *model.WhitelistEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cpy := *e
	f.entries[e.ID] = &cpy
	return nil
}

func (f *fakeWhitelist) FindBySubToken(_ context.Context, subTokenHash string) (*model.WhitelistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.SubTokenHash == subTokenHash && !e.Revoked {
			cpy := *e
			return &cpy, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeWhitelist) ListActive(_ context.Context, catalogID uuid.UUID) ([]model.WhitelistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.WhitelistEntry
	for _, e := range f.entries {
		if e.CatalogID == catalogID && !e.Revoked {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeWhitelist) IncrementViews(_ context.Context, id uuid.UUID) (int, error) {
	if f.incErr != nil {
		return 0, f.incErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return 0, errs.ErrNotFound
	}
	e.ViewCount++
	return e.ViewCount, nil
}

func (f *fakeWhitelist) Revoke(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return errs.ErrNotFound
	}
	e.Revoked = true
	return nil
}

func (f *fakeWhitelist) get(t *testing.T, id uuid.UUID) model.WhitelistEntry {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		t.Fatalf("entry %s not found", id)
	}
	return *e
}

/************ rate/ban ledger ************/

type fakeLedger struct {
	mu       sync.Mutex
	blocked  bool
	allowErr error
	banned   map[string]bool
	failures int
}

var _ limiter.Ledger = (*fakeLedger)(nil)

func (l *fakeLedger) Allow(context.Context, []byte) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.blocked, l.allowErr
}

func (l *fakeLedger) Failure(context.Context, []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures++
	return nil
}

func (l *fakeLedger) IsBanned(_ context.Context, fpHash []byte) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.banned[string(fpHash)], nil
}

func (l *fakeLedger) Ban(_ context.Context, fpHash []byte, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.banned == nil {
		l.banned = map[string]bool{}
	}
	l.banned[string(fpHash)] = true
	return nil
}

func (l *fakeLedger) failureCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures
}

/************ security events ************/

type fakeEventStore struct {
	mu        sync.Mutex
	events    []model.SecurityEvent
	insertErr error
}

var _ repository.SecurityEventRepository = (*fakeEventStore)(nil)

func (f *fakeEventStore) Insert(_ context.Context, ev *model.SecurityEvent) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeEventStore) all() []model.SecurityEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SecurityEvent(nil), f.events...)
}

func (f *fakeEventStore) types() []model.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.EventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

func (f *fakeEventStore) last(t *testing.T) model.SecurityEvent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		t.Fatalf("no events recorded")
	}
	return f.events[len(f.events)-1]
}

/************ inventory ************/

type fakeInventory struct {
	mu           sync.Mutex
	stock        map[string]int
	reservations map[uuid.UUID]*model.Reservation

	confirmErr error
	reclaimN   int
	reclaimErr error

	cancelReasons []string
	reclaimCalls  int
}

var _ repository.InventoryRepository = (*fakeInventory)(nil)

func newFakeInventory(stock map[string]int) *fakeInventory {
	return &fakeInventory{
		stock:        stock,
		reservations: map[uuid.UUID]*model.Reservation{},
	}
}

func (f *fakeInventory) Reserve(_ context.Context, catalogID uuid.UUID, items []model.ReservationItem) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range items {
		if f.stock[it.ProductID] < it.Quantity {
			return nil, errs.ErrInsufficientStock
		}
	}
	for _, it := range items {
		f.stock[it.ProductID] -= it.Quantity
	}
	res := &model.Reservation{
		ID:        uuid.Must(uuid.NewV4()),
		CatalogID: catalogID,
		LockToken: uuid.Must(uuid.NewV4()),
		State:     model.ReservationHeld,
		Items:     append([]model.ReservationItem(nil), items...),
		CreatedAt: time.Now(),
	}
	f.reservations[res.ID] = res
	return res, nil
}

func (f *fakeInventory) Cancel(_ context.Context, reservationID uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[reservationID]
	if !ok || res.State != model.ReservationHeld {
		return nil
	}
	res.State = model.ReservationCancelled
	res.CancelReason = reason
	for _, it := range res.Items {
		f.stock[it.ProductID] += it.Quantity
	}
	f.cancelReasons = append(f.cancelReasons, reason)
	return nil
}

func (f *fakeInventory) ConfirmOrder(_ context.Context, reservationID uuid.UUID, totalCents int64, paymentRef string) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	res, ok := f.reservations[reservationID]
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

func (f *fakeInventory) ReclaimStale(context.Context, time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reclaimCalls++
	return f.reclaimN, f.reclaimErr
}

func (f *fakeInventory) stockOf(productID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[productID]
}

func (f *fakeInventory) reservation(t *testing.T, id uuid.UUID) model.Reservation {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[id]
	if !ok {
		t.Fatalf("reservation %s not found", id)
	}
	return *res
}

func (f *fakeInventory) soleReservation(t *testing.T) model.Reservation {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reservations) != 1 {
		t.Fatalf("reservations=%d, want 1", len(f.reservations))
	}
	for _, res := range f.reservations {
		return *res
	}
	panic("unreachable")
}

/************ customers ************/

type fakeCustomers struct {
	mu      sync.Mutex
	upserts []model.Customer
}

var _ repository.CustomerRepository = (*fakeCustomers)(nil)

func (f *fakeCustomers) Upsert(_ context.Context, c *model.Customer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, *c)
	return nil
}

/************ payments ************/

type fakePayments struct {
	mu         sync.Mutex
	chargeErr  error
	refundErrs []error // popped per call; nil once exhausted

	chargeCalls int
	refundCalls int
	lastRef     string
}

var _ PaymentProcessor = (*fakePayments)(nil)

func (p *fakePayments) Charge(_ context.Context, amountCents int64, method string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chargeCalls++
	if p.chargeErr != nil {
		return "", p.chargeErr
	}
	p.lastRef = "fake-" + uuid.Must(uuid.NewV4()).String()
	return p.lastRef, nil
}

func (p *fakePayments) Refund(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refundCalls++
	if len(p.refundErrs) == 0 {
		return nil
	}
	err := p.refundErrs[0]
	p.refundErrs = p.refundErrs[1:]
	return err
}
