package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/gofrs/uuid/v5"

	"github.com/avetisov/flashmenu/internal/errs"
	"github.com/avetisov/flashmenu/internal/model"
)

type eventRequest struct {
	CatalogID         string       `json:"catalog_id"`
	EventType         string       `json:"event_type"`
	DeviceFingerprint string       `json:"device_fingerprint"`
	Geolocation       *geolocation `json:"geolocation"`
	Detail            string       `json:"detail"`
}

type eventResponse struct {
	Action string `json:"action"`
}

// handleEvent ingests client-side security signals (screenshot, devtools,
// copy, print, visibility). It always accepts: recording must never fail the
// reporting client. The response action tells the client how to react.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errs.ErrValidation)
		return
	}
	if req.EventType == "" {
		writeError(w, r, errs.ErrValidation)
		return
	}

	ev := model.SecurityEvent{
		Type:     model.EventType(req.EventType),
		SourceIP: clientIP(r),
		DeviceFP: req.DeviceFingerprint,
		Detail:   req.Detail,
	}
	if id, err := uuid.FromString(req.CatalogID); err == nil {
		ev.CatalogID = uuid.NullUUID{UUID: id, Valid: true}
	}
	if req.Geolocation != nil {
		ev.Location = &model.GeoPoint{Lat: req.Geolocation.Lat, Lng: req.Geolocation.Lng}
	}

	action := s.events.Process(r.Context(), ev)
	writeJSON(w, http.StatusAccepted, eventResponse{Action: string(action)})
}
