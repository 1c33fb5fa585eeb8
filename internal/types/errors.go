package types

import (
	"errors"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// ErrorKind classifies the failures the catalog and manifest engine can
// surface. Every kind names the offending identifiers.
type ErrorKind string

const (
	KindNotFound            ErrorKind = "NotFound"
	KindValidation          ErrorKind = "ValidationError"
	KindCycle               ErrorKind = "CycleError"
	KindScope               ErrorKind = "ScopeError"
	KindUnresolvedReference ErrorKind = "UnresolvedReferenceError"
	KindConflict            ErrorKind = "ConflictError"
	KindStaleResolution     ErrorKind = "StaleResolutionError"
)

// Sentinels for errors.Is.
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrCycle               = &Error{Kind: KindCycle}
	ErrScope               = &Error{Kind: KindScope}
	ErrUnresolvedReference = &Error{Kind: KindUnresolvedReference}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrStaleResolution     = &Error{Kind: KindStaleResolution}
)

// Error is a classified domain error. The wrapped errbuilder error
// carries the code used by the CLI and HTTP layers.
type Error struct {
	Kind        ErrorKind
	Identifiers []string
	err         error
}

// NewError builds a classified error with the given message.
func NewError(kind ErrorKind, msg string, identifiers ...string) *Error {
	return &Error{
		Kind:        kind,
		Identifiers: identifiers,
		err: errbuilder.New().
			WithCode(kind.Code()).
			WithMsg(msg),
	}
}

// WrapError is NewError with an underlying cause.
func WrapError(kind ErrorKind, msg string, cause error, identifiers ...string) *Error {
	builder := errbuilder.New().
		WithCode(kind.Code()).
		WithMsg(msg)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return &Error{Kind: kind, Identifiers: identifiers, err: builder}
}

func (e *Error) Error() string {
	if e.err == nil {
		return string(e.Kind)
	}
	return e.err.Error()
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.err == nil && t.Kind == e.Kind
}

// Code maps a kind onto the errbuilder code space.
func (k ErrorKind) Code() errbuilder.ErrCode {
	switch k {
	case KindNotFound:
		return errbuilder.CodeNotFound
	case KindValidation:
		return errbuilder.CodeInvalidArgument
	case KindCycle, KindScope, KindUnresolvedReference, KindConflict, KindStaleResolution:
		return errbuilder.CodeFailedPrecondition
	default:
		return errbuilder.CodeInternal
	}
}

// KindOf returns the kind of a classified error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return ""
}
