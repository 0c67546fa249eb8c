// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	authsvc "codeberg.org/oliverandrich/assistant-hub/internal/services/auth"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/password"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// errorStatus maps service errors to HTTP status codes. The error text is
// safe to show to clients.
var errorStatus = []struct {
	err    error
	status int
}{
	{authsvc.ErrResendThrottled, http.StatusTooManyRequests},
	{authsvc.ErrNotAdmin, http.StatusUnauthorized},
	{authsvc.ErrSessionExpired, http.StatusUnauthorized},
	{authsvc.ErrEmailTaken, http.StatusBadRequest},
	{authsvc.ErrInvalidEmail, http.StatusBadRequest},
	{authsvc.ErrNameRequired, http.StatusBadRequest},
	{authsvc.ErrWeakPassword, http.StatusBadRequest},
	{authsvc.ErrInvalidCredentials, http.StatusBadRequest},
	{authsvc.ErrNotVerified, http.StatusBadRequest},
	{authsvc.ErrInvalidCode, http.StatusBadRequest},
	{authsvc.ErrInvalidSecret, http.StatusBadRequest},
	{authsvc.ErrAccountNotFound, http.StatusBadRequest},
	{authsvc.ErrAlreadyVerified, http.StatusBadRequest},
	{authsvc.ErrInvalidRole, http.StatusBadRequest},
	{authsvc.ErrSelfModification, http.StatusBadRequest},
}

// HTTPErrorHandler renders every error as {success:false, message}. Unknown
// errors become a generic 500 and are logged.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request_failed",
			"method", c.Request().Method, "path", c.Path(), "error", err)
	}

	var respErr error
	if c.Request().Method == http.MethodHead {
		respErr = c.NoContent(status)
	} else {
		respErr = c.JSON(status, ErrorResponse{Success: false, Message: message})
	}
	if respErr != nil {
		slog.Error("failed to write error response", "error", respErr)
	}
}

func classify(err error) (int, string) {
	var validationErr *password.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, validationErr.Message
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil && he.Code >= http.StatusInternalServerError {
			return he.Code, http.StatusText(he.Code)
		}
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg
		}
		return he.Code, fmt.Sprint(he.Message)
	}

	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return m.status, m.err.Error()
		}
	}

	return http.StatusInternalServerError, "internal server error"
}
