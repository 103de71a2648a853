package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Body is the JSON error envelope.
type Body struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// HTTPErrorHandler renders every error returned from a handler or middleware
// as {"error": ...}. Internal failures are logged and replaced by a generic
// message.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().
				Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("failed to write error response")
		}
	}
}

func render(err error) (int, Body) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind.Status(), Body{Error: appErr.Message, Details: appErr.Details}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Code >= http.StatusInternalServerError {
			return httpErr.Code, Body{Error: "Internal server error"}
		}
		msg := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok && m != "" {
			msg = m
		} else if httpErr.Message != nil {
			msg = fmt.Sprintf("%v", httpErr.Message)
		}
		return httpErr.Code, Body{Error: msg}
	}

	return http.StatusInternalServerError, Body{Error: "Internal server error"}
}
