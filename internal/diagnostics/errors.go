// Package diagnostics defines the error taxonomy shared by every stage of
// accessor synthesis: resolution, emission, linking and the public API.
package diagnostics

import (
	"fmt"
	"strings"
)

// Kind classifies a synthesis failure.
type Kind int

const (
	MemberNotFound Kind = iota + 1
	AmbiguousMember
	IncompatibleValueType
	InvalidInstanceType
	TooManyArguments
	ShapeMismatch
	UnsupportedInPatchMode
	PlatformSynthesisFailure
)

var kindNames = map[Kind]string{
	MemberNotFound:           "member not found",
	AmbiguousMember:          "ambiguous member",
	IncompatibleValueType:    "incompatible value type",
	InvalidInstanceType:      "invalid instance type",
	TooManyArguments:         "too many arguments",
	ShapeMismatch:            "shape mismatch",
	UnsupportedInPatchMode:   "unsupported in patch mode",
	PlatformSynthesisFailure: "platform synthesis failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the single error type returned (or panicked with) by the engine.
// Two errors match under errors.Is when their kinds are equal, so callers can
// test against the sentinel values below.
type Error struct {
	Kind Kind

	// Owner is the owner type name, when one is known.
	Owner string

	// Member is the field or routine name, when one is known.
	Member string

	// Detail is free text describing the specific failure.
	Detail string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Owner != "" || e.Member != "" {
		sb.WriteString(": ")
		switch {
		case e.Owner != "" && e.Member != "":
			sb.WriteString(e.Owner + "." + e.Member)
		case e.Owner != "":
			sb.WriteString(e.Owner)
		default:
			sb.WriteString(e.Member)
		}
	}
	if e.Detail != "" {
		sb.WriteString(" (" + e.Detail + ")")
	}
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality with another *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrMemberNotFound           = &Error{Kind: MemberNotFound}
	ErrAmbiguousMember          = &Error{Kind: AmbiguousMember}
	ErrIncompatibleValueType    = &Error{Kind: IncompatibleValueType}
	ErrInvalidInstanceType      = &Error{Kind: InvalidInstanceType}
	ErrTooManyArguments         = &Error{Kind: TooManyArguments}
	ErrShapeMismatch            = &Error{Kind: ShapeMismatch}
	ErrUnsupportedInPatchMode   = &Error{Kind: UnsupportedInPatchMode}
	ErrPlatformSynthesisFailure = &Error{Kind: PlatformSynthesisFailure}
)

func NewMemberNotFoundError(owner, member, detail string) *Error {
	return &Error{Kind: MemberNotFound, Owner: owner, Member: member, Detail: detail}
}

func NewAmbiguousMemberError(owner, member string, candidates int) *Error {
	return &Error{
		Kind:   AmbiguousMember,
		Owner:  owner,
		Member: member,
		Detail: fmt.Sprintf("%d candidates, supply a parameter signature", candidates),
	}
}

func NewIncompatibleValueTypeError(owner, member, declared, requested string) *Error {
	return &Error{
		Kind:   IncompatibleValueType,
		Owner:  owner,
		Member: member,
		Detail: fmt.Sprintf("declared %s, requested %s", declared, requested),
	}
}

// NewValueOwnerError reports a setter requested on a non-pointer owner,
// whose stores could never reach the caller's value.
func NewValueOwnerError(owner, member string) *Error {
	return &Error{
		Kind:   IncompatibleValueType,
		Owner:  owner,
		Member: member,
		Detail: "setters need a pointer owner, got " + owner,
	}
}

// NewInvalidInstanceTypeError carries the expected owner type name and the
// member name; got describes the instance actually passed.
func NewInvalidInstanceTypeError(expected, member, got string) *Error {
	return &Error{
		Kind:   InvalidInstanceType,
		Owner:  expected,
		Member: member,
		Detail: "got " + got,
	}
}

func NewTooManyArgumentsError(owner, member string, args, max int) *Error {
	return &Error{
		Kind:   TooManyArguments,
		Owner:  owner,
		Member: member,
		Detail: fmt.Sprintf("%d arguments, maximum is %d", args, max),
	}
}

func NewShapeMismatchError(owner, member, natural, requested string) *Error {
	return &Error{
		Kind:   ShapeMismatch,
		Owner:  owner,
		Member: member,
		Detail: fmt.Sprintf("natural %s, requested %s", natural, requested),
	}
}

func NewUnsupportedInPatchModeError(op string) *Error {
	return &Error{Kind: UnsupportedInPatchMode, Member: op}
}

func NewPlatformSynthesisFailureError(unit, detail string, cause error) *Error {
	return &Error{Kind: PlatformSynthesisFailure, Owner: unit, Detail: detail, Err: cause}
}

// KindOf returns the kind of err if it is (or wraps) an *Error, and 0 otherwise.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0
		}
		err = u.Unwrap()
	}
	return 0
}
