package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/avetisov/flashmenu/internal/errs"
	"github.com/avetisov/flashmenu/internal/fieldcrypt"
	"github.com/avetisov/flashmenu/internal/model"
	"github.com/avetisov/flashmenu/internal/repository"
)

// sagaState tracks an order attempt through its linear step sequence.
// Compensating is never user-visible; callers only see Confirmed or a typed
// failure.
type sagaState string

const (
	stateReserving    sagaState = "reserving"
	statePricing      sagaState = "pricing"
	statePaying       sagaState = "paying"
	stateConfirming   sagaState = "confirming"
	stateConfirmed    sagaState = "confirmed"
	stateCompensating sagaState = "compensating"
)

// OrderRequest is one order placement against an active catalog.
type OrderRequest struct {
	CatalogID     uuid.UUID
	Items         []model.ReservationItem
	PaymentMethod string
	ContactEmail  string
	TraceID       string
}

// OrderResult is the confirmed outcome of a successful saga run.
type OrderResult struct {
	OrderID    uuid.UUID
	TotalCents int64
	TraceID    string
}

// OrderSaga executes reserve → price → pay → confirm with compensating
// cancellation on any failure. The inventory store is the sole arbiter of
// stock; the saga never does stock arithmetic itself.
type OrderSaga struct {
	catalogs   repository.CatalogRepository
	inventory  repository.InventoryRepository
	customers  repository.CustomerRepository
	payments   PaymentProcessor
	events     *SecurityEvents
	passphrase string
	log        *zap.Logger
}

// NewOrderSaga constructs the order fulfillment saga.
func NewOrderSaga(
	catalogs repository.CatalogRepository,
	inventory repository.InventoryRepository,
	customers repository.CustomerRepository,
	payments PaymentProcessor,
	events *SecurityEvents,
	passphrase string,
	log *zap.Logger,
) *OrderSaga {
	return &OrderSaga{
		catalogs:   catalogs,
		inventory:  inventory,
		customers:  customers,
		payments:   payments,
		events:     events,
		passphrase: passphrase,
		log:        log,
	}
}

// PlaceOrder runs the saga. Every early return after Reserve has compensated
// by cancelling the reservation; cancellation is idempotent so a repeated
// compensation attempt is harmless.
func (s *OrderSaga) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if req.CatalogID.IsNil() || len(req.Items) == 0 || req.PaymentMethod == "" {
		return nil, errs.ErrValidation
	}
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return nil, errs.ErrValidation
		}
	}

	catalog, err := s.catalogs.GetByID(ctx, req.CatalogID)
	if err != nil {
		return nil, err
	}
	if catalog.Status != model.StatusActive {
		return nil, errs.ErrGone
	}

	// Reserve.
	state := stateReserving
	reservation, err := s.inventory.Reserve(ctx, req.CatalogID, req.Items)
	if err != nil {
		if errors.Is(err, errs.ErrInsufficientStock) {
			return nil, err
		}
		return nil, fmt.Errorf("reserve: %w", errs.ErrSystem)
	}

	// Price from stored line items; the client-supplied total is never trusted.
	state = statePricing
	items, err := s.catalogs.ListItems(ctx, req.CatalogID)
	if err != nil {
		s.compensate(ctx, state, reservation.ID, "pricing_unavailable")
		return nil, fmt.Errorf("price: %w", errs.ErrSystem)
	}
	prices := make(map[string]int64, len(items))
	for _, it := range items {
		prices[it.ProductID] = it.PriceCents
	}
	var total int64
	for _, it := range req.Items {
		price, ok := prices[it.ProductID]
		if !ok {
			s.compensate(ctx, state, reservation.ID, "product_not_in_menu")
			return nil, errs.ErrProductNotInCatalog
		}
		total += price * int64(it.Quantity)
	}

	// Pay.
	state = statePaying
	payRef, err := s.payments.Charge(ctx, total, req.PaymentMethod)
	if err != nil {
		s.compensate(ctx, state, reservation.ID, "payment_failed")
		return nil, fmt.Errorf("%w: %s", errs.ErrPaymentFailed, req.PaymentMethod)
	}

	// Confirm. Failure here after a successful charge is the zombie-order
	// path: money must never stay captured without either a confirmed order
	// or a verified refund attempt.
	state = stateConfirming
	order, err := s.inventory.ConfirmOrder(ctx, reservation.ID, total, payRef)
	if err != nil {
		state = stateCompensating
		s.recoverZombie(ctx, req, reservation.ID, payRef, err)
		return nil, errs.ErrZombieOrder
	}
	state = stateConfirmed

	if req.ContactEmail != "" {
		s.upsertCustomer(ctx, req.CatalogID, req.ContactEmail)
	}

	s.log.Info("order confirmed",
		zap.String("order_id", order.ID.String()),
		zap.String("catalog_id", req.CatalogID.String()),
		zap.Int64("total_cents", total),
		zap.String("state", string(state)),
		zap.String("trace_id", req.TraceID),
	)
	return &OrderResult{OrderID: order.ID, TotalCents: total, TraceID: req.TraceID}, nil
}

// compensate cancels the reservation. Cancel is idempotent, so a second
// compensation of the same reservation is a no-op.
func (s *OrderSaga) compensate(ctx context.Context, failedAt sagaState, reservationID uuid.UUID, reason string) {
	if err := s.inventory.Cancel(ctx, reservationID, reason); err != nil {
		s.log.Error("compensation failed",
			zap.String("reservation_id", reservationID.String()),
			zap.String("failed_at", string(failedAt)),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

// recoverZombie handles confirm-after-pay failure: refund with a single
// retry, escalate to a critical alert when the refund itself fails, then
// cancel the reservation.
func (s *OrderSaga) recoverZombie(ctx context.Context, req OrderRequest, reservationID uuid.UUID, payRef string, confirmErr error) {
	refundErr := s.payments.Refund(ctx, payRef)
	if refundErr != nil {
		refundErr = s.payments.Refund(ctx, payRef)
	}

	catalogID := uuid.NullUUID{UUID: req.CatalogID, Valid: true}
	if refundErr != nil {
		// The one failure that must never be silent: durable critical record
		// plus an operator-visible log line.
		s.log.Error("UNRECOVERABLE: refund failed after confirm failure",
			zap.String("payment_ref", payRef),
			zap.String("reservation_id", reservationID.String()),
			zap.String("trace_id", req.TraceID),
			zap.NamedError("confirm_err", confirmErr),
			zap.NamedError("refund_err", refundErr),
		)
		s.events.Record(ctx, model.SecurityEvent{
			CatalogID: catalogID,
			Type:      model.EventRefundFailed,
			Detail:    "payment_ref:" + payRef,
		})
	} else {
		s.log.Warn("zombie order recovered: payment refunded",
			zap.String("payment_ref", payRef),
			zap.String("reservation_id", reservationID.String()),
			zap.String("trace_id", req.TraceID),
			zap.NamedError("confirm_err", confirmErr),
		)
		s.events.Record(ctx, model.SecurityEvent{
			CatalogID: catalogID,
			Type:      model.EventZombieOrderRecovered,
			Detail:    "payment_ref:" + payRef,
		})
	}
	s.compensate(ctx, stateConfirming, reservationID, "confirm_failed")
}

// upsertCustomer attaches a lightweight contact record. Outside the
// compensable chain: the order stands whether or not this succeeds.
func (s *OrderSaga) upsertCustomer(ctx context.Context, catalogID uuid.UUID, email string) {
	enc, err := fieldcrypt.Encrypt(email, s.passphrase)
	if err != nil {
		s.log.Warn("customer contact not stored", zap.Error(err))
		return
	}
	id, err := uuid.NewV4()
	if err != nil {
		return
	}
	c := &model.Customer{
		ID:            id,
		CatalogID:     catalogID,
		ContactEnc:    enc,
		ContactSearch: fieldcrypt.SearchHash(email),
	}
	if err := s.customers.Upsert(ctx, c); err != nil {
		s.log.Warn("customer upsert failed", zap.Error(err))
	}
}
