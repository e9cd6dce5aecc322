package errors

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// CustomHTTPErrorHandler renders domain errors with the status code they carry.
// Everything else is handled by echo, unknown errors become 500.
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr HttpError
	if !errors.As(err, &httpErr) {
		c.Echo().DefaultHTTPErrorHandler(err, c)
		return
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(httpErr.Code)
	} else {
		writeErr = c.JSON(httpErr.Code, ErrorResponse{Code: httpErr.Code, Message: err.Error()})
	}
	if writeErr != nil {
		c.Logger().Error(writeErr)
	}
}
