package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a failed transition attempt. Every kind is terminal for
// the single attempt; the engine never retries internally.
type Kind string

const (
	KindValidation            Kind = "validation"
	KindAuthorization         Kind = "authorization"
	KindDuplicateSchedule     Kind = "duplicate_schedule"
	KindIncompleteFeedback    Kind = "incomplete_feedback"
	KindUnsupportedFileType   Kind = "unsupported_file_type"
	KindStaleState            Kind = "stale_state"
	KindNotFound              Kind = "not_found"
	KindDependencyUnavailable Kind = "dependency_unavailable"
)

// Error is a structured transition failure: a kind plus the offending field
// (when one can be named), so callers can render a specific message.
type Error struct {
	Kind  Kind
	Field string
	msg   string
	cause error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.msg)
	case e.msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.msg)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.cause }

// Message returns the human-readable part without the kind prefix.
func (e *Error) Message() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.msg)
	}
	return e.msg
}

func newError(kind Kind, field, msg string) *Error {
	return &Error{Kind: kind, Field: field, msg: msg}
}

// Validationf builds a ValidationError for the named payload field.
func Validationf(field, format string, args ...any) *Error {
	return newError(KindValidation, field, fmt.Sprintf(format, args...))
}

// Authorizationf builds an AuthorizationError.
func Authorizationf(format string, args ...any) *Error {
	return newError(KindAuthorization, "", fmt.Sprintf(format, args...))
}

// DuplicateSchedulef signals a conflicting open interview.
func DuplicateSchedulef(format string, args ...any) *Error {
	return newError(KindDuplicateSchedule, "", fmt.Sprintf(format, args...))
}

// IncompleteFeedbackf signals a completed mock interview whose feedback
// fields are not all present, blocking the sales hand-off.
func IncompleteFeedbackf(format string, args ...any) *Error {
	return newError(KindIncompleteFeedback, "", fmt.Sprintf(format, args...))
}

// UnsupportedFileType signals an attachment outside the MIME whitelist.
func UnsupportedFileType(contentType string) *Error {
	return newError(KindUnsupportedFileType, "file", fmt.Sprintf("unsupported content type %q", contentType))
}

// StaleStatef signals that preconditions no longer hold because another
// writer changed the record; the caller should re-fetch and retry.
func StaleStatef(format string, args ...any) *Error {
	return newError(KindStaleState, "", fmt.Sprintf(format, args...))
}

// NotFoundf signals a missing candidate or interview record.
func NotFoundf(format string, args ...any) *Error {
	return newError(KindNotFound, "", fmt.Sprintf(format, args...))
}

// DependencyUnavailable wraps an upstream I/O failure (object store, queue).
// The caller may retry with backoff; no partial record was committed.
func DependencyUnavailable(op string, cause error) *Error {
	return &Error{Kind: KindDependencyUnavailable, msg: op, cause: cause}
}

// KindOf extracts the kind from err, or an empty kind for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is a pipeline error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
