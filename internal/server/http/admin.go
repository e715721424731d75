package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/avetisov/flashmenu/internal/auth"
	"github.com/avetisov/flashmenu/internal/errs"
	"github.com/avetisov/flashmenu/internal/service"
)

type burnRequest struct {
	Mode    string `json:"mode"` // soft | hard
	Reason  string `json:"reason"`
	Migrate bool   `json:"migrate"` // soft burn only: clone catalog + whitelist
}

type migratedViewer struct {
	EntryID  string `json:"entry_id"`
	SubToken string `json:"sub_token"`
}

type burnResponse struct {
	Success     bool                `json:"success"`
	Status      string              `json:"status"`
	Replacement *replacementCatalog `json:"replacement,omitempty"`
}

type replacementCatalog struct {
	CatalogID  string           `json:"catalog_id"`
	Token      string           `json:"token"`
	AccessCode string           `json:"access_code"`
	Viewers    []migratedViewer `json:"viewers"`
}

// ownerFromRequest verifies the bearer token and returns the owner ID.
func (s *Server) ownerFromRequest(r *http.Request) (uuid.UUID, error) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return auth.VerifyOwnerToken(s.signKey, strings.TrimPrefix(h, prefix))
}

// handleBurn is the explicit owner action of the lifecycle machine.
func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	ownerID, err := s.ownerFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	catalogID, err := uuid.FromString(chi.URLParam(r, "catalogID"))
	if err != nil {
		writeError(w, r, errs.ErrValidation)
		return
	}

	var req burnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errs.ErrValidation)
		return
	}
	if req.Mode != "soft" && req.Mode != "hard" {
		writeError(w, r, errs.ErrValidation)
		return
	}

	catalog, err := s.catalogs.GetByID(r.Context(), catalogID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if catalog.OwnerID != ownerID {
		// Foreign catalogs look absent, not forbidden.
		writeError(w, r, errs.ErrNotFound)
		return
	}

	resp := burnResponse{Success: true}
	switch req.Mode {
	case "hard":
		if err := s.lifecycle.HardBurn(r.Context(), catalogID, req.Reason); err != nil {
			writeError(w, r, err)
			return
		}
		resp.Status = "hard_burned"
	case "soft":
		if err := s.lifecycle.SoftBurn(r.Context(), catalogID, req.Reason); err != nil {
			writeError(w, r, err)
			return
		}
		resp.Status = "soft_burned"
		if req.Migrate {
			migrated, err := s.lifecycle.MigrateViewers(r.Context(), catalogID)
			if err != nil && !errors.Is(err, errs.ErrConflict) {
				// Burn already happened; report the partial outcome.
				s.log.Error("viewer migration failed", zap.Error(err))
				writeError(w, r, errs.ErrSystem)
				return
			}
			if migrated != nil {
				resp.Replacement = toReplacement(migrated)
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func toReplacement(m *service.MigratedCatalog) *replacementCatalog {
	out := &replacementCatalog{
		CatalogID:  m.CatalogID.String(),
		Token:      m.Token,
		AccessCode: m.AccessCode,
	}
	for _, v := range m.Viewers {
		out.Viewers = append(out.Viewers, migratedViewer{EntryID: v.EntryID.String(), SubToken: v.SubToken})
	}
	return out
}
