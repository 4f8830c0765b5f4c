package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrInvalidEvent ErrorType = "INVALID_EVENT"
	ErrStorage      ErrorType = "STORAGE_ERROR"
	ErrNotFound     ErrorType = "NOT_FOUND"
	ErrInternal     ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
	}
}

func NewInvalidEvent(msg string) *AppError {
	return New(ErrInvalidEvent, msg, nil)
}

func NewStorage(msg string, cause error) *AppError {
	return New(ErrStorage, msg, cause)
}

func NewNotFound(msg string) *AppError {
	return New(ErrNotFound, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidEvent:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrStorage:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
