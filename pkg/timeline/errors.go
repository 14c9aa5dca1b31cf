package timeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures and warnings raised by the timeline model
type ErrorKind int

const (
	// KindTypeMismatch is a value of the wrong type (decoded input only)
	KindTypeMismatch ErrorKind = iota
	// KindInvalidValue is a value of the right type outside its domain
	KindInvalidValue
	// KindConstructionInconsistency is an unsolvable length/rate/end/multiplier relation
	KindConstructionInconsistency
	// KindOverlapConflict is a violation of the non-overlap rule between conditions
	KindOverlapConflict
	// KindUnknownReference is an id that does not exist in the timeline (soft)
	KindUnknownReference
	// KindDuplicateReference is an id that collides with an existing or sibling item (soft)
	KindDuplicateReference
	// KindTrimmed is an added event that fell outside the addressable range (soft)
	KindTrimmed
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindTypeMismatch:
		return "type_mismatch"
	case KindInvalidValue:
		return "invalid_value"
	case KindConstructionInconsistency:
		return "construction_inconsistency"
	case KindOverlapConflict:
		return "overlap_conflict"
	case KindUnknownReference:
		return "unknown_reference"
	case KindDuplicateReference:
		return "duplicate_reference"
	case KindTrimmed:
		return "trimmed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by its snake_case name
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ErrorKind) UnmarshalText(b []byte) error {
	for c := KindTypeMismatch; c <= KindTrimmed; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", b)
}

// Soft reports whether the kind is reported as a warning rather than a failure
func (k ErrorKind) Soft() bool {
	return k == KindUnknownReference || k == KindDuplicateReference || k == KindTrimmed
}

// Sentinel errors, one per kind
var (
	ErrTypeMismatch              = errors.New("type mismatch")
	ErrInvalidValue              = errors.New("invalid value")
	ErrConstructionInconsistency = errors.New("construction inconsistency")
	ErrOverlapConflict           = errors.New("overlap conflict")
	ErrUnknownReference          = errors.New("unknown reference")
	ErrDuplicateReference        = errors.New("duplicate reference")
	ErrTrimmed                   = errors.New("trimmed")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindTypeMismatch:
		return ErrTypeMismatch
	case KindInvalidValue:
		return ErrInvalidValue
	case KindConstructionInconsistency:
		return ErrConstructionInconsistency
	case KindOverlapConflict:
		return ErrOverlapConflict
	case KindUnknownReference:
		return ErrUnknownReference
	case KindDuplicateReference:
		return ErrDuplicateReference
	default:
		return ErrTrimmed
	}
}

// Error is a classified failure. It unwraps to the sentinel of its kind.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind.sentinel(), e.Message)
}

// Unwrap returns the sentinel error for the kind
func (e *Error) Unwrap() error {
	return e.Kind.sentinel()
}

func newError(kind ErrorKind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NewTypeMismatch builds a KindTypeMismatch error. Decoders outside this package use it
// to report wrongly typed input.
func NewTypeMismatch(op, format string, args ...interface{}) error {
	return newError(KindTypeMismatch, op, format, args...)
}

// NewInvalidValue builds a KindInvalidValue error for decoders outside this package
func NewInvalidValue(op, format string, args ...interface{}) error {
	return newError(KindInvalidValue, op, format, args...)
}

// KindOf extracts the ErrorKind from err
func KindOf(err error) (ErrorKind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	for _, k := range []ErrorKind{
		KindTypeMismatch, KindInvalidValue, KindConstructionInconsistency,
		KindOverlapConflict, KindUnknownReference, KindDuplicateReference, KindTrimmed,
	} {
		if errors.Is(err, k.sentinel()) {
			return k, true
		}
	}
	return 0, false
}

// Warning is a soft anomaly. The offending item was dropped (or, for reused
// condition tags, kept) and the rest of the call proceeded.
type Warning struct {
	Kind    ErrorKind `json:"kind"`
	Op      string    `json:"op"`
	Ref     int       `json:"ref"`
	Message string    `json:"message"`
	Dropped bool      `json:"dropped"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Op, w.Kind, w.Message)
}

// Warnings is the batch of soft anomalies reported by one call
type Warnings []Warning

// Add records a warning
func (ws *Warnings) Add(kind ErrorKind, op string, ref int, dropped bool, format string, args ...interface{}) {
	*ws = append(*ws, Warning{
		Kind:    kind,
		Op:      op,
		Ref:     ref,
		Message: fmt.Sprintf(format, args...),
		Dropped: dropped,
	})
}

// Strings renders every warning
func (ws Warnings) Strings() []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.String()
	}
	return out
}

// Refs returns the ids referenced by warnings of the given kind
func (ws Warnings) Refs(kind ErrorKind) []int {
	var refs []int
	for _, w := range ws {
		if w.Kind == kind {
			refs = append(refs, w.Ref)
		}
	}
	return refs
}

// String joins all warnings on one line
func (ws Warnings) String() string {
	return strings.Join(ws.Strings(), "; ")
}
