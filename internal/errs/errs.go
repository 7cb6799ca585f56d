// Package errs defines the error kinds returned by the case tracking core.
//
// Every failure leaving the engine is an *Error carrying one Kind, so callers
// can tell a missing case from a missing fiscal without parsing messages.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindStorage    Kind = "storage"
)

// Error codes.
const (
	CodeInvalidField      = "invalid_field"
	CodeRequiredField     = "required_field"
	CodeInvalidStatus     = "invalid_status"
	CodeFiscalNotFound    = "fiscal_not_found"
	CodeFiscaliaNotFound  = "fiscalia_not_found"
	CodeCaseNotFound      = "case_not_found"
	CodeSameFiscal        = "same_fiscal"
	CodeEmailTaken        = "email_taken"
	CodeInvalidTransition = "invalid_transition"
	CodeStorage           = "storage_unavailable"
)

// Error is a classified core error.
type Error struct {
	Kind    Kind
	Code    string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports malformed input or a reference to something that does not exist.
func Validation(code, field, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Field: field, Message: message}
}

// NotFound reports that the addressed entity does not exist.
func NotFound(code, field, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Field: field, Message: message}
}

// Conflict reports a request that contradicts current state.
func Conflict(code, field, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Field: field, Message: message}
}

// Storage wraps an underlying store failure.
func Storage(err error, message string) *Error {
	return &Error{Kind: KindStorage, Code: CodeStorage, Message: message, Err: err}
}

// As extracts an *Error from the chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindStorage for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindStorage
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// HTTPStatus maps a kind to the status code used by the REST boundary.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
