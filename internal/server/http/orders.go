package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/gofrs/uuid/v5"

	"github.com/avetisov/flashmenu/internal/errs"
	"github.com/avetisov/flashmenu/internal/model"
	"github.com/avetisov/flashmenu/internal/service"
)

type orderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type orderRequest struct {
	CatalogID     string      `json:"catalog_id"`
	Items         []orderItem `json:"items"`
	PaymentMethod string      `json:"payment_method"`
	ContactEmail  string      `json:"contact_email"`
	ContactPhone  string      `json:"contact_phone"`
}

type orderResponse struct {
	Success    bool   `json:"success"`
	OrderID    string `json:"order_id"`
	Status     string `json:"status"`
	TotalCents int64  `json:"total_cents"`
	TraceID    string `json:"trace_id"`
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errs.ErrValidation)
		return
	}
	catalogID, err := uuid.FromString(req.CatalogID)
	if err != nil {
		writeError(w, r, errs.ErrValidation)
		return
	}
	items := make([]model.ReservationItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, model.ReservationItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	result, err := s.saga.PlaceOrder(r.Context(), service.OrderRequest{
		CatalogID:     catalogID,
		Items:         items,
		PaymentMethod: req.PaymentMethod,
		ContactEmail:  req.ContactEmail,
		TraceID:       traceID(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{
		Success:    true,
		OrderID:    result.OrderID.String(),
		Status:     "confirmed",
		TotalCents: result.TotalCents,
		TraceID:    result.TraceID,
	})
}
