package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/avetisov/flashmenu/internal/errs"
	"github.com/avetisov/flashmenu/internal/model"
	"github.com/avetisov/flashmenu/internal/service"
)

type geolocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type accessRequest struct {
	URLToken          string       `json:"url_token"`
	AccessCode        string       `json:"access_code"`
	DeviceFingerprint string       `json:"device_fingerprint"`
	Geolocation       *geolocation `json:"geolocation"`
}

type accessResponse struct {
	Success bool                 `json:"success"`
	Catalog *service.CatalogView `json:"catalog"`
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errs.ErrValidation)
		return
	}
	if req.URLToken == "" || req.AccessCode == "" {
		writeError(w, r, errs.ErrValidation)
		return
	}

	gateReq := service.AccessRequest{
		Token:    req.URLToken,
		Code:     req.AccessCode,
		DeviceFP: req.DeviceFingerprint,
		SourceIP: clientIP(r),
	}
	if req.Geolocation != nil {
		gateReq.Location = &model.GeoPoint{Lat: req.Geolocation.Lat, Lng: req.Geolocation.Lng}
	}

	view, err := s.gate.Evaluate(r.Context(), gateReq)
	if err != nil {
		if errors.Is(err, errs.ErrRateLimited) {
			// Clients may retry after the failure window has passed.
			w.Header().Set("Retry-After", strconv.Itoa(15*60))
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accessResponse{Success: true, Catalog: view})
}
