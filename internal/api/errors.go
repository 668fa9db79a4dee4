package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/studysync/internal/apperr"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps an error kind to an HTTP status
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindCapacity:
		return http.StatusConflict
	case apperr.KindAuthorization:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// errorHandler renders classified errors as JSON and hides internal failures
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := ErrorResponse{Error: "internal error", Code: string(apperr.KindUnknown)}

		var httpErr *echo.HTTPError
		var appErr *apperr.Error
		switch {
		case errors.As(err, &appErr):
			status = statusFor(appErr.Kind)
			body = ErrorResponse{Error: appErr.Error(), Code: string(appErr.Kind)}
		case errors.As(err, &httpErr):
			status = httpErr.Code
			body = ErrorResponse{Error: http.StatusText(status), Code: http.StatusText(status)}
			if msg, ok := httpErr.Message.(string); ok {
				body.Error = msg
			}
		}

		if status >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "request failed",
				"method", c.Request().Method, "path", c.Path(), "error", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Warn("failed to write error response", "error", err)
		}
	}
}
