package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeNotFound      Code = "NOT_FOUND"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeUpstream      Code = "UPSTREAM_ERROR"
	CodeGeneration    Code = "GENERATION_ERROR"
	CodeConfiguration Code = "CONFIGURATION_ERROR"
)

// Error is the error type surfaced to HTTP callers. Reason is short and
// human-readable; Err keeps the underlying cause for logs.
type Error struct {
	Code   Code
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("%s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(code Code, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

func NotFound(reason string, err error) *Error {
	return New(CodeNotFound, reason, err)
}

func InvalidInput(reason string, err error) *Error {
	return New(CodeInvalidInput, reason, err)
}

func Upstream(reason string, err error) *Error {
	return New(CodeUpstream, reason, err)
}

func Generation(reason string, err error) *Error {
	return New(CodeGeneration, reason, err)
}

func Configuration(reason string, err error) *Error {
	return New(CodeConfiguration, reason, err)
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps an error to the status returned to callers.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUpstream, CodeGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
