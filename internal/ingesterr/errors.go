// Package ingesterr defines the error taxonomy shared across the ingestion
// pipeline. Every package in this module that can fail in a way the
// dispatcher needs to translate into an HTTP-style status wraps the
// underlying cause in an *Error with a Kind, the same way the teacher
// wraps activity failures with fmt.Errorf("...: %w", err) but additionally
// tags the failure so the edge never has to pattern-match on strings.
package ingesterr

import "fmt"

// Kind identifies one of the error categories from the error handling
// design. It is deliberately a closed set: every kind except AlertEmail
// (which is only logged, never surfaced) has a matching entry in Status
// below.
type Kind string

const (
	InvalidJSON           Kind = "InvalidJson"
	SchemaViolation       Kind = "SchemaViolation"
	InvalidSourceType     Kind = "InvalidSourceType"
	InvalidType           Kind = "InvalidType"
	InvalidDatasetEdition Kind = "InvalidDatasetEdition"
	Unauthorized          Kind = "Unauthorized"
	DatasetNotFound       Kind = "DatasetNotFound"
	DataExists            Kind = "DataExists"
	Locked                Kind = "Locked"
	MissingMergeColumns   Kind = "MissingMergeColumns"
	PayloadTooLarge       Kind = "PayloadTooLarge"
	QueueUnavailable      Kind = "QueueUnavailable"
	Internal              Kind = "Internal"
	AlertEmail            Kind = "AlertEmail"
)

// Status maps a Kind to its default HTTP-style status code. InvalidDatasetEdition
// is special-cased in StatusFor: 422 for a malformed id (the "Invalid dataset
// edition format" message), 400 when the id is well-formed but unresolvable
// (see §7).
var Status = map[Kind]int{
	InvalidJSON:           400,
	SchemaViolation:       400,
	InvalidSourceType:     400,
	InvalidType:           400,
	InvalidDatasetEdition: 400,
	Unauthorized:          403,
	DatasetNotFound:       404,
	DataExists:            409,
	Locked:                409,
	MissingMergeColumns:   422,
	PayloadTooLarge:       400,
	QueueUnavailable:      503,
	Internal:              500,
}

// Error is the typed error carried through the pipeline. Message is the
// outward-facing text from §7; Cause, if present, is the underlying error
// being wrapped.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New returns an *Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an *Error of the given kind wrapping cause, formatting the
// message the way the teacher formats its own wrapped errors.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// StatusFor returns the HTTP-style status code for err, defaulting to 500
// for errors that aren't a *Error at all.
func StatusFor(err error) int {
	var e *Error
	if !asError(err, &e) {
		return Status[Internal]
	}
	if e.Kind == InvalidDatasetEdition && e.Message == invalidFormatMessage {
		return 422
	}
	status, ok := Status[e.Kind]
	if !ok {
		return Status[Internal]
	}
	return status
}

const invalidFormatMessage = "Invalid dataset edition format"

// asError is a tiny errors.As wrapper kept local to avoid importing errors
// for a single call site in every caller.
func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
