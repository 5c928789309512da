// Package apperr defines the error kinds shared by the store, query,
// listing and action layers. Text rendering happens only at the tool
// boundary; everything below it returns these typed errors.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the boundary formatter.
type Kind int

const (
	// KindUnknown is reported for errors that carry no Kind.
	KindUnknown Kind = iota
	// KindConnection means the backing store could not be reached or
	// refused the credentials.
	KindConnection
	// KindNotFound covers missing folders, items and listing ordinals.
	KindNotFound
	// KindValidation is returned for out-of-range or malformed input,
	// always before any store access.
	KindValidation
	// KindPartialItem marks a single item that could not be processed.
	// It is recovered locally and never reaches a caller.
	KindPartialItem
	// KindAction means the store rejected a mutating operation.
	KindAction
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindPartialItem:
		return "partial_item"
	case KindAction:
		return "action"
	default:
		return "unknown"
	}
}

// Error is a classified application error.
type Error struct {
	// Kind selects how the error is rendered.
	Kind Kind
	// Message is the user-facing description.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Connection wraps err as a KindConnection error.
func Connection(message string, err error) *Error {
	return New(KindConnection, message, err)
}

// NotFound creates a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...), nil)
}

// Validation creates a KindValidation error.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...), nil)
}

// PartialItem wraps err as a KindPartialItem error.
func PartialItem(message string, err error) *Error {
	return New(KindPartialItem, message, err)
}

// Action wraps err as a KindAction error.
func Action(message string, err error) *Error {
	return New(KindAction, message, err)
}

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// Is reports whether err (or any error in its chain) is of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
