package http

import (
	"fmt"
	"net/http"
)

// AppError represents application-level error with HTTP status.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
	Status  int            `json:"-"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
	}
}

// WithField names the offending request field.
func (e *AppError) WithField(field string) *AppError {
	e.Field = field
	return e
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value any) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]any)
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundError(message string) *AppError {
	return NewAppError("ERR_NOT_FOUND", "", message, http.StatusNotFound)
}

func BadRequestError(message string) *AppError {
	return NewAppError("ERR_BAD_REQUEST", "", message, http.StatusBadRequest)
}

func BadRequestErrorf(format string, a ...any) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

// ConflictError is returned when an optimistic write lost a race.
func ConflictError(message string) *AppError {
	return NewAppError("ERR_CONFLICT", "", message, http.StatusConflict)
}

// UnprocessableError is returned when the request is valid but there is
// not enough data to act on it.
func UnprocessableError(message string) *AppError {
	return NewAppError("ERR_UNPROCESSABLE", "", message, http.StatusUnprocessableEntity)
}

func InternalError(message string) *AppError {
	return NewAppError("ERR_INTERNAL", "", message, http.StatusInternalServerError)
}

// UnavailableError marks a failing dependency.
func UnavailableError(message string) *AppError {
	return NewAppError("ERR_UNAVAILABLE", "", message, http.StatusServiceUnavailable)
}
