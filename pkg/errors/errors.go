// Package errors defines the coded errors shared by the billing services and
// the HTTP layer. A Code decides the response status, whether callers may retry,
// and how much of the error is shown to clients.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeStateConflict     Code = "STATE_CONFLICT"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeStaleState        Code = "STALE_STATE"
	CodeAlreadyResolved   Code = "ALREADY_RESOLVED"
	CodeNoEligibleEntries Code = "NO_ELIGIBLE_ENTRIES"
	CodeBusy              Code = "BUSY"
	CodeIdempotency       Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit         Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

// Metadata is the client-facing policy of a Code.
//
// ExposeMessage lets the error's own message replace PublicMessage in the
// response; DetailsAllowed does the same for its details payload.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	ExposeMessage  bool
	DetailsAllowed bool
}

type exposure uint8

const (
	hidden exposure = iota
	messageOnly
	messageAndDetails
	detailsOnly
)

func policy(status int, retryable bool, show exposure, public string) Metadata {
	return Metadata{
		HTTPStatus:     status,
		Retryable:      retryable,
		PublicMessage:  public,
		ExposeMessage:  show == messageOnly || show == messageAndDetails,
		DetailsAllowed: show == messageAndDetails || show == detailsOnly,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:        policy(http.StatusBadRequest, false, messageAndDetails, "validation failed"),
	CodeUnauthorized:      policy(http.StatusUnauthorized, false, messageOnly, "authentication required"),
	CodeForbidden:         policy(http.StatusForbidden, false, messageOnly, "access denied"),
	CodeNotFound:          policy(http.StatusNotFound, false, messageOnly, "resource not found"),
	CodeConflict:          policy(http.StatusConflict, false, messageOnly, "conflict detected"),
	CodeStateConflict:     policy(http.StatusUnprocessableEntity, false, messageAndDetails, "state transition disallowed"),
	CodeInvalidTransition: policy(http.StatusUnprocessableEntity, false, messageAndDetails, "invalid status transition"),
	CodeStaleState:        policy(http.StatusConflict, true, messageAndDetails, "record changed since it was read"),
	CodeAlreadyResolved:   policy(http.StatusConflict, false, messageOnly, "dispute already resolved"),
	CodeNoEligibleEntries: policy(http.StatusUnprocessableEntity, false, messageAndDetails, "no eligible ledger entries"),
	CodeBusy:              policy(http.StatusServiceUnavailable, true, messageOnly, "resource busy, retry later"),
	CodeIdempotency:       policy(http.StatusConflict, false, messageAndDetails, "idempotency key reused"),
	CodeRateLimit:         policy(http.StatusTooManyRequests, false, messageOnly, "rate limit exceeded"),
	CodeInternal:          policy(http.StatusInternalServerError, true, hidden, "internal server error"),
	CodeDependency:        policy(http.StatusServiceUnavailable, true, detailsOnly, "dependency unavailable"),
}

// MetadataFor returns the policy for code; unknown codes are treated as internal.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error. The message is written for API clients; the cause
// is kept for logs only.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code and client message to err. A nil err yields a plain New.
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
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code of the outermost *Error in err's chain. Untyped
// errors report CodeInternal.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

// IsRetryable reports whether callers may retry the failed operation unchanged.
// Untyped errors are not retryable.
func IsRetryable(err error) bool {
	typed := As(err)
	return typed != nil && MetadataFor(typed.Code()).Retryable
}
