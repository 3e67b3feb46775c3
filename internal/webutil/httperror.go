package webutil

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	msgBadRequest     = "Bad Request"
	msgNotFound       = "Resource not found"
	msgInternalServer = "Internal Server Error"
	msgUnauthorized   = "Unauthorized"
)

// Kind classifies an Error for logging and metrics. The HTTP status is
// carried separately in Code.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindConflict
	KindOTP
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindOTP:
		return "otp"
	default:
		return "internal"
	}
}

// Error is an error with an HTTP status and a user-facing message.
type Error struct {
	cause   error
	Kind    Kind
	Code    int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func defaultMessageIfEmpty(initialMsg, defaultVal string) string {
	if initialMsg == "" {
		return defaultVal
	}
	return initialMsg
}

// NewError creates an Error whose message is used verbatim.
func NewError(kind Kind, code int, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches cause to a copy of e, keeping e's status and message.
// errors.Is(Wrap(e, c), e) holds.
func Wrap(e *Error, cause error) error {
	return fmt.Errorf("%w: %w", e, cause)
}

func ErrBadRequest(message string) *Error {
	return NewError(KindValidation, http.StatusBadRequest, defaultMessageIfEmpty(message, msgBadRequest))
}

func ErrUnauthorized(message string) *Error {
	return NewError(KindAuth, http.StatusUnauthorized, defaultMessageIfEmpty(message, msgUnauthorized))
}

func ErrNotFound(message string) *Error {
	return NewError(KindNotFound, http.StatusNotFound, defaultMessageIfEmpty(message, msgNotFound))
}

// ErrConflict reports a uniqueness violation. The API answers these with 400.
func ErrConflict(message string) *Error {
	return NewError(KindConflict, http.StatusBadRequest, defaultMessageIfEmpty(message, msgBadRequest))
}

func ErrOTP(message string) *Error {
	return NewError(KindOTP, http.StatusBadRequest, defaultMessageIfEmpty(message, msgBadRequest))
}

// ErrInternalServerWrap hides message and cause from the client; both are logged.
func ErrInternalServerWrap(message string, cause error) *Error {
	return &Error{
		cause:   fmt.Errorf("%s: %w", message, cause),
		Kind:    KindInternal,
		Code:    http.StatusInternalServerError,
		Message: msgInternalServer,
	}
}

// StatusOf returns the HTTP status and public message for err.
// Errors outside the taxonomy become 500 with a generic message.
func StatusOf(err error) (int, string, Kind) {
	var e *Error
	if errors.As(err, &e) {
		code := e.Code
		if code == 0 {
			code = http.StatusInternalServerError
		}
		return code, e.Message, e.Kind
	}
	return http.StatusInternalServerError, msgInternalServer, KindInternal
}
