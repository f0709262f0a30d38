package aggregates

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode standardizes aggregate failure semantics across domains.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "validation"
	CodeNotFound           ErrorCode = "not_found"
	CodeForbidden          ErrorCode = "forbidden"
	CodeConflict           ErrorCode = "conflict"
	CodeInvariantViolation ErrorCode = "invariant_violation"
	CodePreconditionFailed ErrorCode = "precondition_failed"
	CodeRetryable          ErrorCode = "retryable"
	CodeInternal           ErrorCode = "internal"
)

// Error is the canonical aggregate error wrapper.
//
// Fields carries field-scoped validation messages keyed by payload path
// (for example "skills.2.name"). Reason is a stable machine-readable
// discriminator for invariant violations.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Reason  string
	Fields  map[string][]string
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

// NewError builds an aggregate error with explicit code + operation.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// NewInvariantError builds an invariant violation with a user-facing message and reason.
func NewInvariantError(op, reason, message string, cause error) error {
	return &Error{
		Code:    CodeInvariantViolation,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Reason:  strings.TrimSpace(reason),
		Cause:   cause,
	}
}

// NewValidationError builds a validation failure from field-scoped messages.
// Returns nil when fields is empty.
func NewValidationError(op string, fields map[string][]string) error {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msg := "invalid payload"
	if first := fields[keys[0]]; len(first) > 0 {
		msg = fmt.Sprintf("%s: %s", keys[0], first[0])
		if len(keys) > 1 {
			msg = fmt.Sprintf("%s (and %d more)", msg, len(keys)-1)
		}
	}
	return &Error{
		Code:    CodeValidation,
		Op:      strings.TrimSpace(op),
		Message: msg,
		Fields:  fields,
	}
}

// Wrap annotates an existing error with aggregate error semantics.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// IsCode checks whether err (or wrapped err) carries the given aggregate code.
func IsCode(err error, code ErrorCode) bool {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return false
	}
	return aggErr.Code == code
}

// CodeOf extracts the aggregate error code when available.
func CodeOf(err error) ErrorCode {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return ""
	}
	return aggErr.Code
}

// As returns the aggregate error carried by err, if any.
func As(err error) (*Error, bool) {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return nil, false
	}
	return aggErr, true
}
