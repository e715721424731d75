package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avetisov/flashmenu/internal/errs"
)

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps sentinel errors to HTTP codes. Denials share codes wide
// enough that the body never reveals which gate check failed.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, ""
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, ""
	case errors.Is(err, errs.ErrDeviceBanned),
		errors.Is(err, errs.ErrInvalidCode),
		errors.Is(err, errs.ErrLocationRequired),
		errors.Is(err, errs.ErrOutsideArea),
		errors.Is(err, errs.ErrOutsideHours),
		errors.Is(err, errs.ErrDecryption):
		return http.StatusForbidden, ""
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized, ""
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, ""
	case errors.Is(err, errs.ErrGone):
		return http.StatusGone, ""
	case errors.Is(err, errs.ErrInsufficientStock),
		errors.Is(err, errs.ErrProductNotInCatalog):
		return http.StatusBadRequest, ""
	case errors.Is(err, errs.ErrPaymentFailed):
		return http.StatusPaymentRequired, ""
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict, ""
	case errors.Is(err, errs.ErrZombieOrder):
		return http.StatusInternalServerError, "ZOMBIE_ORDER_RECOVERED"
	default:
		return http.StatusInternalServerError, ""
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := http.StatusText(status)
	if status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code, TraceID: traceID(r.Context())})
}
