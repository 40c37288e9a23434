package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// Application error codes.
const (
	EINVALID      = "invalid"
	ENOTFOUND     = "not_found"
	ECONFLICT     = "conflict"
	EUNAUTHORIZED = "unauthorized"
	EINTERNAL     = "internal"
)

const DefaultMessage = "An internal error has occurred."

// Error is an operation-scoped application error. Code and Message are
// safe to show to API callers; Err is kept for logs.
type Error struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(op, code, message string) *Error {
	return &Error{Op: op, Code: code, Message: message}
}

func Invalid(op, message string) *Error {
	return New(op, EINVALID, message)
}

func NotFound(op, message string) *Error {
	return New(op, ENOTFOUND, message)
}

func Conflict(op, message string) *Error {
	return New(op, ECONFLICT, message)
}

func Unauthorized(op, message string) *Error {
	return New(op, EUNAUTHORIZED, message)
}

// OpError wraps err with op. Nil stays nil. gorm.ErrRecordNotFound is
// turned into ENOTFOUND.
func OpError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Op: op, Code: ENOTFOUND, Message: "record not found", Err: err}
	}
	return &Error{Op: op, Err: err}
}

// WithCode wraps err with op and forces code.
func WithCode(op string, err error, code string) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Code: code, Err: err, Message: err.Error()}
}

// Code returns the first non-empty code in the chain, or EINTERNAL.
func Code(err error) string {
	var appErr *Error
	for err != nil {
		if !errors.As(err, &appErr) {
			return EINTERNAL
		}
		if appErr.Code != "" {
			return appErr.Code
		}
		err = appErr.Err
	}
	return EINTERNAL
}

// Message returns the first non-empty public message in the chain.
func Message(err error) string {
	if Code(err) == EINTERNAL {
		return DefaultMessage
	}
	var appErr *Error
	for err != nil {
		if !errors.As(err, &appErr) {
			break
		}
		if appErr.Message != "" {
			return appErr.Message
		}
		err = appErr.Err
	}
	return DefaultMessage
}

func HTTPStatus(err error) int {
	switch Code(err) {
	case EINVALID:
		return http.StatusBadRequest
	case ENOTFOUND:
		return http.StatusNotFound
	case ECONFLICT:
		return http.StatusConflict
	case EUNAUTHORIZED:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func Is(err error, code string) bool {
	return Code(err) == code
}
