// Package fault provides the typed errors used across the ledger so callers
// can branch on the error kind instead of matching message strings.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the terminal outcomes every ledger
// operation maps to.
type Kind string

const (
	// Validation - malformed address, amount, signature or timestamp. Caller fault.
	Validation Kind = "validation"
	// Authorization - signature does not match the claimed address, challenge
	// expired, or a retarget link is invalid or already used. Caller fault.
	Authorization Kind = "authorization"
	// NotFound - no matching transactions, provider or session.
	NotFound Kind = "not-found"
	// Conflict - duplicate provider address, or an address already bound to a
	// different payment account.
	Conflict Kind = "conflict"
	// StoreUnavailable - backing relational or session store unreachable.
	StoreUnavailable Kind = "store-unavailable"
	// Upstream - payment processor or notifier failure.
	Upstream Kind = "upstream"
)

// Error carries a machine-readable kind and a human message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New makes an error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf makes an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of err, or an empty Kind for untyped errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Kind("")
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
