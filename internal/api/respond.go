package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"slotbook/internal/availability"
	"slotbook/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrServiceNotFound), errors.Is(err, model.ErrEmployeeNotFound):
		return http.StatusNotFound
	case errors.Is(err, availability.ErrRangeTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInvalidSchedule), errors.Is(err, model.ErrInvalidException),
		errors.Is(err, model.ErrInvalidService):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, model.ErrUpstreamFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
