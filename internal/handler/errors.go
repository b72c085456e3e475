package handler

import (
	"errors"
	"net/http"

	"github.com/templui/ressona/internal/artifact"
	"github.com/templui/ressona/internal/capture"
	"github.com/templui/ressona/internal/identity"
	"github.com/templui/ressona/internal/respond"
	"github.com/templui/ressona/internal/service"
	"github.com/templui/ressona/internal/session"
	"github.com/templui/ressona/internal/store"
	"github.com/templui/ressona/internal/workspace"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrValidation),
		errors.Is(err, service.ErrNotReady),
		errors.Is(err, session.ErrNotRecording),
		errors.Is(err, capture.ErrTooLarge),
		errors.Is(err, store.ErrImmutableField),
		errors.Is(err, store.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, artifact.ErrNotFound),
		errors.Is(err, artifact.ErrRevoked):
		return http.StatusNotFound
	case errors.Is(err, capture.ErrDeviceAccess),
		errors.Is(err, capture.ErrClosed),
		errors.Is(err, session.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, service.ErrSubmission),
		errors.Is(err, store.ErrStore):
		return http.StatusBadGateway
	case errors.Is(err, identity.ErrIdentityUnavailable),
		errors.Is(err, workspace.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the mapped status. message is the text shown
// to the user; it falls back to the error itself.
func writeError(w http.ResponseWriter, err error, message string) {
	if message == "" {
		message = err.Error()
	}
	respond.WriteError(w, statusFor(err), message)
}
