package client

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	apperrors "github.com/tendant/attendance-gate/pkg/errors"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Status  string              `json:"status"`
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// RenderError writes err as JSON with the status mapped from its error code.
// Internal errors are logged and their message is not exposed.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.StatusCode(err)

	message := "internal error"
	var appErr *apperrors.Error
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "err", err)
	} else if errors.As(err, &appErr) {
		message = appErr.Message
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{
		Status:  "error",
		Code:    apperrors.GetCode(err),
		Message: message,
	})
}
