// Package httpserver exposes the gate, saga, event, and lifecycle services
// over HTTP.
package httpserver

import (
	"context"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/avetisov/flashmenu/internal/model"
	"github.com/avetisov/flashmenu/internal/service"
)

// catalogGetter is the slice of the catalog repository the owner endpoints need.
type catalogGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Catalog, error)
}

// Server bundles the request handlers and their dependencies.
type Server struct {
	gate      *service.Gate
	saga      *service.OrderSaga
	events    *service.SecurityEvents
	lifecycle *service.Lifecycle
	catalogs  catalogGetter
	signKey   []byte
	log       *zap.Logger
}

// New constructs the HTTP server.
func New(
	gate *service.Gate,
	saga *service.OrderSaga,
	events *service.SecurityEvents,
	lifecycle *service.Lifecycle,
	catalogs catalogGetter,
	signKey []byte,
	log *zap.Logger,
) *Server {
	return &Server{
		gate:      gate,
		saga:      saga,
		events:    events,
		lifecycle: lifecycle,
		catalogs:  catalogs,
		signKey:   signKey,
		log:       log,
	}
}

// Routes mounts all endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer(s.log))
	r.Use(withTraceID)
	r.Use(requestLogger(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/access", s.handleAccess)
		r.Post("/orders", s.handleOrder)
		r.Post("/events", s.handleEvent)
		r.Post("/catalogs/{catalogID}/burn", s.handleBurn)
	})
	return r
}

// clientIP strips the port from RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
