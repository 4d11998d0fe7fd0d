// Package faults classifies pipeline failures so the run controller can tell
// run-aborting conditions apart from per-candidate ones.
package faults

import (
	"errors"
	"fmt"
)

// Kind identifies which part of the pipeline failed.
type Kind int

const (
	Unknown Kind = iota
	// Auth means the credential exchange failed. Fatal.
	Auth
	// Report means report generation, location, download, decompression or
	// extraction failed. Fatal.
	Report
	// Resolution means a catalog batch returned nothing. The batch is skipped.
	Resolution
	// MatchMiss means the competitor site had no listing. The candidate is skipped.
	MatchMiss
	// Persistence means a ledger write failed. The record is lost.
	Persistence
	// Network means an HTTP or browser call failed.
	Network
)

func (k Kind) String() string {
	switch k {
	case Auth:
		return "auth"
	case Report:
		return "report"
	case Resolution:
		return "resolution"
	case MatchMiss:
		return "match_miss"
	case Persistence:
		return "persistence"
	case Network:
		return "network"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Op names the operation that failed and
// Msg, when set, is the message shown on the progress channel.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the user-facing text for the error.
func (e *Error) Message() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Error()
}

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithMessage wraps err with a kind, operation name and user-facing message.
func WithMessage(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsFatal reports whether err must abort the whole run.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case Auth, Report:
		return true
	default:
		return false
	}
}

// Message returns the user-facing text for any error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message()
	}
	return err.Error()
}
