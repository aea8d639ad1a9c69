package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/desertthunder/jukebox/internal/shared"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError sends {"error": "..."}. Server errors carry only the outermost sentinel message.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = publicMessage(err)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps a sentinel error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrTrackNotFound), errors.Is(err, shared.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrTrackLocked):
		return http.StatusConflict
	case errors.Is(err, shared.ErrRangeNotSatisfiable):
		return http.StatusRequestedRangeNotSatisfiable
	case errors.Is(err, shared.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, shared.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal detail such as paths and provider stderr from clients.
func publicMessage(err error) string {
	for _, sentinel := range []error{
		shared.ErrMetadataFetch,
		shared.ErrSourceStream,
		shared.ErrStorage,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
