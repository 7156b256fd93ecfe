package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
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

// HTTPStatus maps the error code onto the status returned at the HTTP boundary.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest, ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrInvalidTransition, ErrDuplicateLink, ErrConflict:
		return http.StatusConflict
	case ErrInvalidInvite:
		return http.StatusGone
	case ErrTooManyRequests:
		return http.StatusTooManyRequests
	case ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrValidation
	ErrInvalidTransition
	ErrInvalidInvite
	ErrDuplicateLink
	ErrConflict
	ErrTooManyRequests
	ErrTimeout
)

var codeNames = map[ErrorCode]string{
	ErrNotFound:          "NotFound",
	ErrBadRequest:        "BadRequest",
	ErrUnauthorized:      "Unauthorized",
	ErrForbidden:         "Forbidden",
	ErrInternal:          "Internal",
	ErrValidation:        "ValidationError",
	ErrInvalidTransition: "InvalidTransition",
	ErrInvalidInvite:     "InvalidInvite",
	ErrDuplicateLink:     "DuplicateLink",
	ErrConflict:          "Conflict",
	ErrTooManyRequests:   "TooManyRequests",
	ErrTimeout:           "Timeout",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{Code: ErrBadRequest, Message: message, Err: err}
}

func Validation(format string, args ...interface{}) *AppError {
	return &AppError{Code: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return &AppError{Code: ErrForbidden, Message: message}
}

func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("cannot move job from %s to %s", from, to),
	}
}

func InvalidInvite(reason string) *AppError {
	return &AppError{Code: ErrInvalidInvite, Message: "invalid invite: " + reason}
}

func DuplicateLink(err error) *AppError {
	return &AppError{
		Code:    ErrDuplicateLink,
		Message: "lab and clinic are already linked",
		Err:     err,
	}
}

func Conflict(message string, err error) *AppError {
	return &AppError{Code: ErrConflict, Message: message, Err: err}
}

func TooManyRequests() *AppError {
	return &AppError{Code: ErrTooManyRequests, Message: "rate limit exceeded"}
}

func Timeout() *AppError {
	return &AppError{Code: ErrTimeout, Message: "request timed out"}
}

// CodeOf returns the code of the first AppError in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

// As extracts the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
