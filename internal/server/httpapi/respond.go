package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/usersvc/internal/common"
)

type messageResponse struct {
	Message string `json:"message"`
}

// statusFor maps domain errors to HTTP status codes. Anything unknown is a
// server error.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, common.ErrInvalidEmail),
		errors.Is(err, common.ErrInvalidInput),
		errors.Is(err, common.ErrAlreadyExists),
		errors.Is(err, common.ErrInvalidFields),
		errors.Is(err, common.ErrNoChange),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrExpiredToken),
		errors.Is(err, common.ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrAuthRequired),
		errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrUnverified):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound),
		errors.Is(err, common.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="usersvc", charset="UTF-8"`)
	}

	writeJSON(w, status, messageResponse{Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
