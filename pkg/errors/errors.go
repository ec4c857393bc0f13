package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata is how a code surfaces over HTTP.
type Metadata struct {
	HTTPStatus    int
	PublicMessage string
	// ExposeMessage lets the error's own message replace PublicMessage.
	ExposeMessage  bool
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {http.StatusBadRequest, "validation failed", true, true},
	CodeUnauthorized:  {http.StatusUnauthorized, "authentication required", true, false},
	CodeForbidden:     {http.StatusForbidden, "access denied", true, false},
	CodeNotFound:      {http.StatusNotFound, "resource not found", true, false},
	CodeConflict:      {http.StatusConflict, "conflict detected", true, false},
	CodeStateConflict: {http.StatusUnprocessableEntity, "state transition disallowed", true, true},
	CodeIdempotency:   {http.StatusConflict, "idempotency key reused", true, false},
	CodeRateLimit:     {http.StatusTooManyRequests, "rate limit exceeded", true, false},
	CodeInternal:      {http.StatusInternalServerError, "internal server error", false, false},
	CodeDependency:    {http.StatusServiceUnavailable, "dependency unavailable", false, false},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is what services return. Responses pick status and wording by code.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether any *Error in err's chain carries code.
func IsCode(err error, code Code) bool {
	for err != nil {
		typed := As(err)
		if typed == nil {
			return false
		}
		if typed.code == code {
			return true
		}
		err = typed.cause
	}
	return false
}

// FieldErrors collects field-keyed validation failures. The zero value is
// ready to use.
type FieldErrors map[string]string

// Add records reason for field, keeping the first reason reported.
func (f *FieldErrors) Add(field, reason string) {
	if *f == nil {
		*f = FieldErrors{}
	}
	if _, exists := (*f)[field]; exists {
		return
	}
	(*f)[field] = reason
}

func (f FieldErrors) Empty() bool {
	return len(f) == 0
}

// Err returns a validation error carrying the collected fields, or nil.
func (f FieldErrors) Err() error {
	if f.Empty() {
		return nil
	}
	details := make(map[string]string, len(f))
	for k, v := range f {
		details[k] = v
	}
	return New(CodeValidation, "validation failed").WithDetails(details)
}
