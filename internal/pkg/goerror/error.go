package goerror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned by persistence adapters when a record does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict is returned by persistence adapters when a write collides with existing state.
	ErrConflict = errors.New("resource conflict")
)

// Type classifies errors into high-level buckets.
type Type int

const (
	// TypeServer represents infrastructure or unexpected failures.
	TypeServer Type = iota
	// TypeBusiness represents a rule the request did not satisfy.
	TypeBusiness
	// TypeValidation represents malformed or invalid input.
	TypeValidation
)

var typeNames = map[Type]string{
	TypeServer:     "ERROR_TYPE_SERVER",
	TypeBusiness:   "ERROR_TYPE_BUSINESS",
	TypeValidation: "ERROR_TYPE_VALIDATION",
}

// String returns the string representation of the error type.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "ERROR_TYPE_UNKNOWN"
}

// Code is a stable identifier mapped onto an HTTP status code.
type Code int

const (
	// CodeInternal represents an internal or unspecified error.
	CodeInternal Code = iota
	// CodeInvalidFormat indicates the request body could not be decoded.
	CodeInvalidFormat
	// CodeInvalidInput indicates the request failed validation.
	CodeInvalidInput
	// CodeNotFound indicates a missing resource.
	CodeNotFound
	// CodeConflict indicates a conflicting write.
	CodeConflict
	// CodeTooManyRequest indicates rate limiting.
	CodeTooManyRequest
	// CodeUnauthorized indicates an authentication or verification failure.
	CodeUnauthorized
	// CodeForbidden indicates an authorization failure.
	CodeForbidden
	// CodeTimeout indicates a timeout.
	CodeTimeout
	// CodeUnavailable indicates a backing dependency could not be reached.
	CodeUnavailable
)

type codeInfo struct {
	name   string
	status int
}

var codes = map[Code]codeInfo{
	CodeInternal:       {"ERROR_CODE_INTERNAL", http.StatusInternalServerError},
	CodeInvalidFormat:  {"ERROR_CODE_INVALID_FORMAT", http.StatusBadRequest},
	CodeInvalidInput:   {"ERROR_CODE_INVALID_INPUT", http.StatusUnprocessableEntity},
	CodeNotFound:       {"ERROR_CODE_NOT_FOUND", http.StatusNotFound},
	CodeConflict:       {"ERROR_CODE_CONFLICT", http.StatusConflict},
	CodeTooManyRequest: {"ERROR_CODE_TOO_MANY_REQUESTS", http.StatusTooManyRequests},
	CodeUnauthorized:   {"ERROR_CODE_UNAUTHORIZED", http.StatusUnauthorized},
	CodeForbidden:      {"ERROR_CODE_FORBIDDEN", http.StatusForbidden},
	CodeTimeout:        {"ERROR_CODE_TIMEOUT", http.StatusRequestTimeout},
	CodeUnavailable:    {"ERROR_CODE_UNAVAILABLE", http.StatusServiceUnavailable},
}

// String returns the string representation of the error code.
func (c Code) String() string {
	if info, ok := codes[c]; ok {
		return info.name
	}
	return codes[CodeInternal].name
}

// Error is the structured error returned across layer boundaries.
//
// It carries a user-facing message, a type, a stable code and optionally the
// underlying cause and per-field details.
type Error struct {
	err     error
	msg     string
	errType Type
	code    Code
	fields  map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.err != nil && e.msg != "":
		return e.msg + ": " + e.err.Error()
	case e.err != nil:
		return e.err.Error()
	case e.msg != "":
		return e.msg
	}

	switch e.errType {
	case TypeValidation:
		return "Validation violation"
	case TypeBusiness:
		return "Logical business not meet with requirement"
	default:
		return "Internal error"
	}
}

// String returns a verbose representation for debugging.
func (e *Error) String() string {
	return fmt.Sprintf("Error Type: %s, Code: %s, Message: %s, Underlying Error: %v",
		e.errType, e.code, e.msg, e.err)
}

// Msg returns the user-facing message.
func (e *Error) Msg() string { return e.msg }

// Type returns the high-level error type.
func (e *Error) Type() Type { return e.errType }

// Code returns the stable error code.
func (e *Error) Code() Code { return e.code }

// Fields returns per-field details, if any.
func (e *Error) Fields() map[string]string { return e.fields }

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.err }

// StatusCode maps the error code to an HTTP status code.
func (e *Error) StatusCode() int {
	if info, ok := codes[e.code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

func newError(err error, msg string, et Type, code Code) *Error {
	return &Error{err: err, msg: msg, errType: et, code: code}
}

// NewServer creates a server-type error wrapping err.
func NewServer(err error) error {
	return newError(err, "Internal server error", TypeServer, CodeInternal)
}

// NewUnavailable creates a server-type error for an unreachable dependency.
func NewUnavailable(msg string, err error) error {
	return newError(err, msg, TypeServer, CodeUnavailable)
}

// NewBusiness creates a business-type error with the given message and code.
func NewBusiness(msg string, code Code) error {
	return newError(nil, msg, TypeBusiness, code)
}

// NewBusinessCause is NewBusiness with an underlying cause kept for errors.Is.
func NewBusinessCause(msg string, code Code, cause error) error {
	return newError(cause, msg, TypeBusiness, code)
}

// NewInvalidInput creates a validation error.
//
// With a non-nil err the error wraps it (typically a validator field map).
// Otherwise kv is read as field/message pairs.
func NewInvalidInput(err error, kv ...string) error {
	if err != nil {
		return newError(err, "Validation error", TypeValidation, CodeInvalidInput)
	}

	if len(kv)%2 != 0 {
		return NewInvalidFormat()
	}

	e := newError(nil, "Validation error", TypeValidation, CodeInvalidInput)
	e.fields = make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		e.fields[kv[i]] = kv[i+1]
	}

	return e
}

// NewInvalidFormat creates a validation error for an undecodable request body.
func NewInvalidFormat(msgs ...string) error {
	msg := "Invalid request body"
	if len(msgs) > 0 {
		msg = msgs[0]
	}
	return newError(nil, msg, TypeValidation, CodeInvalidFormat)
}
