package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies a lending failure for the API boundary.
type Code string

const (
	CodeNotFound      Code = "NOT_FOUND"
	CodeInvalidState  Code = "INVALID_STATE"
	CodeNotAuthorized Code = "NOT_AUTHORIZED"
	CodeUpdateFailed  Code = "UPDATE_FAILED"
)

// Error is the typed error returned by the lending core.
type Error struct {
	Code    Code
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an error with an explicit code and operation.
func New(code Code, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

func NotFound(op, message string) error {
	return New(CodeNotFound, op, message, nil)
}

func InvalidState(op, message string) error {
	return New(CodeInvalidState, op, message, nil)
}

func NotAuthorized(op, message string) error {
	return New(CodeNotAuthorized, op, message, nil)
}

func UpdateFailed(op, message string) error {
	return New(CodeUpdateFailed, op, message, nil)
}

// Wrap annotates an existing error with a code. A nil err stays nil.
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(code, op, err.Error(), err)
}

// IsCode reports whether err (or anything it wraps) carries code.
func IsCode(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// CodeOf extracts the code, or "" for unclassified errors.
func CodeOf(err error) Code {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}
