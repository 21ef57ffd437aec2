// Package apperrors defines the error kinds shared by the booking, chat and
// notification services and the HTTP status each one maps to.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind string

const (
	KindValidation   Kind = "VALIDATION"
	KindAuth         Kind = "UNAUTHORIZED"
	KindRemoteWrite  Kind = "REMOTE_WRITE"
	KindRemoteRead   Kind = "REMOTE_READ"
	KindSubscription Kind = "SUBSCRIPTION"
	KindNotFound     Kind = "NOT_FOUND"
	KindForbidden    Kind = "FORBIDDEN"
)

type AppError struct {
	Kind    Kind
	Message string
	Status  int
	// Step and Fields are set on validation errors.
	Step   string
	Fields []string
	Err    error
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if len(e.Fields) > 0 {
		msg += " [" + strings.Join(e.Fields, ", ") + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Validation reports the fields that block leaving a wizard step.
func Validation(step string, fields ...string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Message: "required fields are missing or malformed",
		Status:  http.StatusUnprocessableEntity,
		Step:    step,
		Fields:  fields,
	}
}

func Auth(message string) *AppError {
	return &AppError{
		Kind:    KindAuth,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

// RemoteWrite wraps a failed insert or update. Writes are never retried
// automatically.
func RemoteWrite(operation string, err error) *AppError {
	return &AppError{
		Kind:    KindRemoteWrite,
		Message: operation + " failed",
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

func RemoteRead(operation string, err error) *AppError {
	return &AppError{
		Kind:    KindRemoteRead,
		Message: operation + " failed",
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

func Subscription(channel string, err error) *AppError {
	return &AppError{
		Kind:    KindSubscription,
		Message: "subscribe to " + channel + " failed",
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: resource + " not found",
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Kind:    KindForbidden,
		Message: message,
		Status:  http.StatusForbidden,
	}
}

// IsKind reports whether any error in err's chain is an AppError of kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
