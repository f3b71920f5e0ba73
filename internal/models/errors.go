package models

import (
	"errors"
	"fmt"
)

// Error kinds. Every AppError wraps exactly one of them, and the HTTP layer
// maps kinds to status codes.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrAuth       = errors.New("authentication error")
	ErrForbidden  = errors.New("forbidden")
)

// AppError is a client-facing failure with a stable code.
type AppError struct {
	Kind    error
	Code    string
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Kind
}

var (
	ErrDuplicateEmail = &AppError{
		Kind:    ErrConflict,
		Code:    "DuplicateEmail",
		Message: "a user with this email already exists",
	}
	ErrUserNotFound = &AppError{
		Kind:    ErrValidation,
		Code:    "UserNotFound",
		Message: "no user with this email",
	}
	ErrInvalidPassword = &AppError{
		Kind:    ErrValidation,
		Code:    "InvalidPassword",
		Message: "invalid password",
	}
	ErrInvalidQuantity = &AppError{
		Kind:    ErrValidation,
		Code:    "InvalidQuantity",
		Message: "quantity must be at least 1",
	}
	ErrInvalidRequest = &AppError{
		Kind:    ErrValidation,
		Code:    "InvalidRequest",
		Message: "malformed request",
	}
	ErrRecordNotFound = &AppError{
		Kind:    ErrNotFound,
		Code:    "NotFound",
		Message: "not found",
	}
	ErrProductNotFound = &AppError{
		Kind:    ErrNotFound,
		Code:    "ProductNotFound",
		Message: "product not found",
	}
	ErrNoToken = &AppError{
		Kind:    ErrAuth,
		Code:    "NoToken",
		Message: "authorization token is missing",
	}
	ErrInvalidToken = &AppError{
		Kind:    ErrAuth,
		Code:    "InvalidToken",
		Message: "authorization token is invalid or expired",
	}
	ErrAccessDenied = &AppError{
		Kind:    ErrForbidden,
		Code:    "Forbidden",
		Message: "access to another user's cart is not allowed",
	}
)
