package api

import (
	"errors"
	"net/http"

	service "github.com/okian/footprint/internal/app"
)

// ErrBadRequest marks malformed request bodies.
var ErrBadRequest = errors.New("bad request")

// statusFor maps service errors onto HTTP status and error code. Only
// configuration problems and failed writes are server errors.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrVisitorNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "not_ready"
	case errors.Is(err, service.ErrStoreWrite):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, service.ErrFingerprint):
		return http.StatusInternalServerError, "model_error"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
