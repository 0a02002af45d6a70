package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// envelope is the uniform response body shared with the rest of the admin
// backend: a status code (200 on success, a business code on failure), a
// message, an optional data payload and an ISO 8601 timestamp. Business
// failures are carried inside an HTTP 200 so the frontend has one decoding
// path; only malformed requests surface as HTTP 4xx.
type envelope struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, envelope{
		Code:      http.StatusOK,
		Message:   "success",
		Data:      data,
		Timestamp: stamp(),
	})
}

func fail(c echo.Context, code int, message string) error {
	return c.JSON(http.StatusOK, envelope{
		Code:      code,
		Message:   message,
		Timestamp: stamp(),
	})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, envelope{
		Code:      http.StatusBadRequest,
		Message:   message,
		Timestamp: stamp(),
	})
}

func stamp() string { return time.Now().UTC().Format(time.RFC3339) }
