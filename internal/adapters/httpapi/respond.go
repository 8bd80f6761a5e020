package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bnema/accountpool/internal/domain"
)

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}

// respondDomainError maps sentinel errors to status codes; anything else is
// logged and reported as a 500 without details.
func (h *Handler) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrPoolNotFound), errors.Is(err, domain.ErrAccountNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNoAccountsAvailable), errors.Is(err, domain.ErrNoValidNextAccount):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrQueueQuotaExceeded):
		respondError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrPoolConflict), errors.Is(err, domain.ErrIllegalTransition):
		respondError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
