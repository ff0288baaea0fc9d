package http

import (
	"github.com/labstack/echo/v4"
)

// ErrorBody is the body of every failed request.
type ErrorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// JSONResponse writes data with the given status.
func JSONResponse(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, data)
}

// ErrorResponse writes {"ok":false,"error":message}.
func ErrorResponse(c echo.Context, status int, message string) error {
	return c.JSON(status, ErrorBody{OK: false, Error: message})
}
