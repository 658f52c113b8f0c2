// Package errors provides structured error types for autoloop.
package errors

import (
	"errors"
	"fmt"
)

// Code represents a unique error code.
type Code string

// Error codes for autoloop.
const (
	// Boundary errors
	CodeConfigInvalid    Code = "CONFIG_INVALID"
	CodeValidationFailed Code = "VALIDATION_FAILED"
	CodePrecondition     Code = "PRECONDITION_FAILED"
	CodeNotFound         Code = "NOT_FOUND"

	// Runtime errors
	CodeBudgetBlocked Code = "BUDGET_BLOCKED"
	CodeAdapterFailed Code = "ADAPTER_FAILED"
	CodeStateIllegal  Code = "STATE_ILLEGAL"
	CodeStorage       Code = "STORAGE_FAILED"
)

// Category groups error codes for HTTP status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNotFound
	CategoryBadRequest
	CategoryConflict
	CategoryInternal
)

var codeCategories = map[Code]Category{
	CodeConfigInvalid:    CategoryBadRequest,
	CodeValidationFailed: CategoryBadRequest,
	CodePrecondition:     CategoryConflict,
	CodeNotFound:         CategoryNotFound,
	CodeBudgetBlocked:    CategoryConflict,
	CodeAdapterFailed:    CategoryInternal,
	CodeStateIllegal:     CategoryConflict,
	CodeStorage:          CategoryInternal,
}

// HTTPStatus returns the HTTP status code for a category.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryNotFound:
		return 404
	case CategoryBadRequest:
		return 400
	case CategoryConflict:
		return 409
	default:
		return 500
	}
}

// Error is the structured error type for autoloop.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Category returns the error category for HTTP status mapping.
func (e *Error) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Category().HTTPStatus()
}

// New creates an error with a code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// --- Common constructors ---

// ErrNotFound reports a missing entity.
func ErrNotFound(kind, id string) *Error {
	return New(CodeNotFound, "%s %s not found", kind, id)
}

// ErrPrecondition reports an operation attempted in the wrong state.
func ErrPrecondition(format string, args ...any) *Error {
	return New(CodePrecondition, format, args...)
}

// ErrValidation reports a schema violation on input.
func ErrValidation(format string, args ...any) *Error {
	return New(CodeValidationFailed, format, args...)
}
