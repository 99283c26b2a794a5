// Package handler provides HTTP handlers for the Trove API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/campus-tf/trove/internal/domain"
	"github.com/campus-tf/trove/internal/service"
)

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// messageResponse is the body for errors and simple confirmations.
type messageResponse struct {
	Message string `json:"message"`
}

// respondMessage writes a plain message body.
func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, messageResponse{Message: message})
}

// respondError maps domain and service errors to HTTP status codes.
// Unrecognized errors become a generic 500 so internals never leak.
func respondError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	switch {
	// Validation failures
	case errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidPassword),
		errors.Is(err, service.ErrInvalidItemName),
		errors.Is(err, service.ErrInvalidDescription),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidContact),
		errors.Is(err, service.ErrMissingImage),
		errors.Is(err, domain.ErrImageTypeNotAllowed),
		errors.Is(err, domain.ErrImageTooLarge):
		respondMessage(w, http.StatusBadRequest, err.Error())

	// Lifecycle conflicts. Reported as 400 rather than 409 to keep the
	// API contract the frontend was built against.
	case errors.Is(err, domain.ErrItemAlreadyClaimed),
		errors.Is(err, domain.ErrSelfClaim),
		errors.Is(err, domain.ErrItemNotClaimed),
		errors.Is(err, domain.ErrUserAlreadyExists):
		respondMessage(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUserInactive):
		respondMessage(w, http.StatusUnauthorized, err.Error())

	case errors.Is(err, domain.ErrNotFinder):
		respondMessage(w, http.StatusForbidden, err.Error())

	case errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrImageNotFound):
		respondMessage(w, http.StatusNotFound, err.Error())

	default:
		logger.Error().Err(err).Msg("request failed")
		respondMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads a request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
