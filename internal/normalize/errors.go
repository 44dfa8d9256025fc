package normalize

import (
	"errors"
	"fmt"
)

// Failure classes reported by Normalize and ParseResponse. Match them with
// errors.Is; the concrete *Error carries the concept and detail.
var (
	ErrMalformedResponse        = errors.New("malformed response")
	ErrSchemaMismatch           = errors.New("schema mismatch")
	ErrUnsupportedSchemaVariant = errors.New("unsupported schema variant")
)

// Error is a classified normalization failure. Kind is one of the Err*
// sentinels above.
type Error struct {
	Kind    error
	Concept string
	Detail  string
}

func (e *Error) Error() string {
	if e.Concept == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%v: %s: %s", e.Kind, e.Concept, e.Detail)
}

// Unwrap exposes the sentinel so errors.Is works.
func (e *Error) Unwrap() error {
	return e.Kind
}

// KindName returns a stable, machine-readable name for err's failure class,
// or "" when err is not a normalization failure.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrMalformedResponse):
		return "MalformedResponse"
	case errors.Is(err, ErrSchemaMismatch):
		return "SchemaMismatch"
	case errors.Is(err, ErrUnsupportedSchemaVariant):
		return "UnsupportedSchemaVariant"
	}
	return ""
}

func malformed(concept, format string, args ...interface{}) error {
	return &Error{Kind: ErrMalformedResponse, Concept: concept, Detail: fmt.Sprintf(format, args...)}
}

func mismatch(concept, format string, args ...interface{}) error {
	return &Error{Kind: ErrSchemaMismatch, Concept: concept, Detail: fmt.Sprintf(format, args...)}
}

func unsupported(concept, format string, args ...interface{}) error {
	return &Error{Kind: ErrUnsupportedSchemaVariant, Concept: concept, Detail: fmt.Sprintf(format, args...)}
}

// shapeError marks a value a strategy does not recognise. The resolver moves
// on to the next strategy instead of failing.
type shapeError struct {
	detail string
}

func (e shapeError) Error() string {
	return e.detail
}

func badShape(format string, args ...interface{}) error {
	return shapeError{detail: fmt.Sprintf(format, args...)}
}
