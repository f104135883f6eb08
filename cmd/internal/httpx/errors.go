package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"pulse/cmd/identity"
	"pulse/cmd/internal/auth"
	"pulse/cmd/internal/repo"
	"pulse/cmd/internal/tracking/ingest"
	"pulse/cmd/internal/tracking/session"
)

// Stable machine codes carried by 4xx/5xx envelopes.
const (
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeInternal           = "INTERNAL"
)

// WriteErr maps err to the documented status/code pair and writes the
// envelope. 5xx detail goes to the log, not the client.
func WriteErr(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")

	case errors.Is(err, auth.ErrForbidden):
		WriteError(w, http.StatusForbidden, CodeForbidden, "insufficient privileges")

	case errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, session.ErrNotFound),
		errors.Is(err, repo.ErrNotFound),
		identity.IsNotFound(err):
		WriteError(w, http.StatusNotFound, CodeNotFound, "resource not found")

	case errors.Is(err, session.ErrConflict),
		errors.Is(err, repo.ErrConflict),
		identity.IsConflict(err):
		WriteError(w, http.StatusConflict, CodeConflict, "state conflict, refetch and retry")

	case errors.Is(err, session.ErrInvalidInput),
		errors.Is(err, session.ErrInvalidTime),
		errors.Is(err, ingest.ErrEmptyBatch),
		ingest.IsValidation(err),
		identity.IsInvalidInput(err):
		WriteError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())

	case identity.IsNotActive(err):
		WriteError(w, http.StatusForbidden, CodeForbidden, "account disabled")

	case repo.IsTransient(err):
		if log != nil {
			log.Warn("http.storage.transient", "err", err)
		}
		WriteError(w, http.StatusServiceUnavailable, CodeStorageUnavailable, "storage temporarily unavailable")

	default:
		if log != nil {
			log.Error("http.internal", "err", err)
		}
		WriteError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
