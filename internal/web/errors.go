package web

// errors.go turns errors into JSON responses.
//
//  1. A handler calls respondError(w, r, err)
//  2. statusFor picks the HTTP status from the error
//  3. core.MapError supplies the user message and code
//  4. The technical error is logged with the request ID

import (
	"context"
	"errors"
	"net/http"

	"github.com/kafkasder-git/starter-function-sub002/internal/bulkimport"
	"github.com/kafkasder-git/starter-function-sub002/internal/core"
	"github.com/kafkasder-git/starter-function-sub002/internal/logging"
	"github.com/kafkasder-git/starter-function-sub002/internal/source"
)

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, core.ErrUnknownTarget), errors.Is(err, core.ErrNoResult):
		return http.StatusNotFound
	case errors.Is(err, bulkimport.ErrAlreadyInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyImports), errors.Is(err, core.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, source.ErrFileTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, source.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, bulkimport.ErrNoValidRecords),
		errors.Is(err, bulkimport.ErrNoRecordsAfterDeduplication),
		errors.Is(err, source.ErrEmptyFile),
		errors.Is(err, source.ErrUnreadable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNoFile):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)
	if errors.As(err, new(*http.MaxBytesError)) {
		msg = core.MapError(source.ErrFileTooLarge)
	}

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	}
	if status >= 500 {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "10")
	}
	writeJSON(w, r, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
