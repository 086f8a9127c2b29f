package server

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/parsea-dev/parsea/internal/common"
)

// StatusClientClosedRequest is the nginx 499 convention, used to make
// user-requested cancellation distinguishable from every other failure.
const StatusClientClosedRequest = 499

// errorResponse is the JSON body for every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps application errors onto HTTP statuses. Per-unit upload
// failures never reach here; they ride inside a 2xx outcome.
func writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	message := "internal server error"

	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, common.ErrCancelled):
		status = StatusClientClosedRequest
		message = err.Error()
	case errors.Is(err, common.ErrInvalidInput),
		errors.Is(err, common.ErrUnsupportedFileType),
		errors.As(err, &validationErrs):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, common.ErrDuplicateEntry):
		status = http.StatusConflict
		message = err.Error()
	}

	return c.JSON(status, errorResponse{Error: message})
}
