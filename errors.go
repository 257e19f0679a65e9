package etopo

import (
	"errors"
	"fmt"
)

// Sentinel errors. Errors returned by this package match exactly one of them
// with errors.Is. Both KindInputNotFound and KindReadFailure match
// ErrInputNotFound.
var (
	ErrInputNotFound         = errors.New("input not found")
	ErrDegenerateBoundingBox = errors.New("degenerate bounding box")
	ErrInterpolation         = errors.New("interpolation failure")
	ErrOutputWrite           = errors.New("output write failure")
)

// An ErrorKind classifies an Error.
type ErrorKind string

const (
	KindInputNotFound         ErrorKind = "input_not_found"
	KindReadFailure           ErrorKind = "read_failure"
	KindDegenerateBoundingBox ErrorKind = "degenerate_bounding_box"
	KindInterpolation         ErrorKind = "interpolation"
	KindOutputWrite           ErrorKind = "output_write"
)

var sentinelsByKind = map[ErrorKind]error{
	KindInputNotFound:         ErrInputNotFound,
	KindReadFailure:           ErrInputNotFound,
	KindDegenerateBoundingBox: ErrDegenerateBoundingBox,
	KindInterpolation:         ErrInterpolation,
	KindOutputWrite:           ErrOutputWrite,
}

// An Error is a failure of an operation, classified by Kind.
type Error struct {
	Op   string
	Kind ErrorKind
	Path string
	Err  error
}

func newError(op string, kind ErrorKind, path string, err error) *Error {
	return &Error{
		Op:   op,
		Kind: kind,
		Path: path,
		Err:  err,
	}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	s := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Path != "" {
		s += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		s += fmt.Sprintf(": %v", e.Err)
	}
	return s
}

// Is reports whether target is the sentinel error for e's kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	sentinel, ok := sentinelsByKind[e.Kind]
	return ok && sentinel == target
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind returns whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// wrapError returns err unchanged if it is already classified, otherwise it
// classifies it as kind.
func wrapError(op string, kind ErrorKind, path string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(op, kind, path, err)
}
