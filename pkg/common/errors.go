package common

import (
	"errors"
	"net/http"
)

// AppError is the application error taxonomy. Services return it so handlers
// can map failures to HTTP statuses without string matching.
type AppError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

func NewValidationError(message string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Status: http.StatusNotFound, Message: message}
}

func NewConflictError(message string) *AppError {
	return &AppError{Status: http.StatusConflict, Message: message}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Status: http.StatusUnauthorized, Message: message}
}

func NewInternalError(message string) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Message: message}
}

// StatusOf returns the HTTP status carried by err, or 500 for anything that
// is not an AppError (store failures and the like, whose details stay logged
// server-side).
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the client-safe message for err. Non-AppError messages
// are withheld.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}
