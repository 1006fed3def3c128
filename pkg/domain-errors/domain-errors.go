// Package domainerrors carries transport-agnostic failure codes from stores
// and services up to the HTTP layer, which maps them to statuses once.
package domainerrors

import "errors"

// Code names a failure in business terms.
type Code string

// Caller mistakes.
const (
	CodeBadRequest       Code = "bad_request"
	CodeInvalidInput     Code = "invalid_input"
	CodeValidation       Code = "validation_failed"
	CodeMethodNotAllowed Code = "method_not_allowed"
	// CodeInvalidToken covers every verification token failure (bad signature,
	// expired, replayed, malformed). Callers must not learn which check failed.
	CodeInvalidToken Code = "invalid_token"
	// CodeMissingConsent is returned when a tracked action needs a category
	// the visitor has not granted.
	CodeMissingConsent Code = "missing_consent"
	CodeNotFound       Code = "not_found"
)

// Server side failures. Their messages never reach the client.
const (
	CodeInternal    Code = "internal_error"
	CodeTimeout     Code = "timeout"
	CodeUnavailable Code = "unavailable"
)

// Error is a failure tagged with a Code. Message is safe to show to callers
// for client-side codes.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Code, so errors.Is(err, &Error{Code: c})
// works through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches msg to err. A code already carried by err wins over code.
func Wrap(err error, code Code, msg string) error {
	if inner, ok := As(err); ok {
		code = inner.Code
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsDomain reports whether err carries a Code.
func IsDomain(err error) bool {
	_, ok := As(err)
	return ok
}

func HasCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// CodeOf returns the Code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}
