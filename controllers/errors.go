package controllers

import (
	"errors"
	"net/http"

	"github.com/yeremiapane/diner-app/services"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrUnknownMenuItem),
		errors.Is(err, services.ErrInvalidRating),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidItemID):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, services.ErrExportUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var errInternal = errors.New("something went wrong, please try again")

// publicError hides internal failures from the client.
func publicError(err error) error {
	if statusFor(err) == http.StatusInternalServerError {
		return errInternal
	}
	return err
}
