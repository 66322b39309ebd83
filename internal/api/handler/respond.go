package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/deskhub/helpdesk/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// mapError translates domain sentinel errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNotRestorable):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidTier),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidRequester),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidEventType),
		errors.Is(err, domain.ErrInvalidVolume),
		errors.Is(err, domain.ErrInvalidBody):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrQueueFull):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
