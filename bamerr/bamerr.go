// Package bamerr defines the typed error kinds shared by every
// post-processing component (decoder, spatial filter, adapter finder,
// read-to-tags transformer) so that callers can distinguish fatal record
// errors from recoverable ones without string matching.
package bamerr

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Kind classifies an Error. The set is fixed by the component contracts;
// add a new one only when a component genuinely needs to distinguish a new
// failure mode from its caller.
type Kind int

const (
	Other Kind = iota
	IoError
	FormatError
	InconsistentBarcodeLength
	BarcodeTagMismatch
	TagTypeMismatch
	DuplicateTag
	InvalidCigar
	InvalidMD
	InvalidQueryName
	OutOfMemory
	ThreadPoolFailure
	FilterMagicMismatch
)

func (k Kind) String() string {
	switch k {
	case IoError:
		return "IoError"
	case FormatError:
		return "FormatError"
	case InconsistentBarcodeLength:
		return "InconsistentBarcodeLength"
	case BarcodeTagMismatch:
		return "BarcodeTagMismatch"
	case TagTypeMismatch:
		return "TagTypeMismatch"
	case DuplicateTag:
		return "DuplicateTag"
	case InvalidCigar:
		return "InvalidCigar"
	case InvalidMD:
		return "InvalidMD"
	case InvalidQueryName:
		return "InvalidQueryName"
	case OutOfMemory:
		return "OutOfMemory"
	case ThreadPoolFailure:
		return "ThreadPoolFailure"
	case FilterMagicMismatch:
		return "FilterMagicMismatch"
	default:
		return "Other"
	}
}

// Error is a component-prefixed, kind-tagged error. Component is the
// stderr diagnostic token named in spec.md's §7 ("diagnostics on stderr
// with a leading component token"), e.g. "barcode", "spatial", "adapter".
type Error struct {
	Component string
	Kind      Kind
	Err       error
}

func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind, annotating the message the way
// github.com/grailbio/base/errors.E composes wrapped errors and message
// fragments throughout the teacher's markduplicates and pam packages.
func New(component string, kind Kind, args ...interface{}) error {
	return &Error{Component: component, Kind: kind, Err: errors.E(args...)}
}

// Is reports whether err (or anything it wraps) is a *Error of kind k.
func Is(err error, k Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == k
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
