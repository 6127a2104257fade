package services

import (
	"github.com/pkg/errors"
)

// Kind classifies the failures the messaging core reports to callers.
type Kind string

const (
	KindInvalidArgument Kind = "invalid_argument"
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
)

// Error is a terminal, caller-visible failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func invalidArgument(msg string) error { return &Error{Kind: KindInvalidArgument, Message: msg} }
func notFound(msg string) error        { return &Error{Kind: KindNotFound, Message: msg} }
func forbidden(msg string) error       { return &Error{Kind: KindForbidden, Message: msg} }

// KindOf returns the kind of a service error anywhere in err's chain,
// or "" for unclassified (internal) errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
