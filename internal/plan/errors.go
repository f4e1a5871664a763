package plan

import "fmt"

// ErrorKind classifies planner failures so callers can surface a precise
// message instead of an opaque exception.
type ErrorKind string

const (
	// KindMalformedDescriptor covers a missing or invalid operation and
	// per-operation field requirements.
	KindMalformedDescriptor ErrorKind = "malformed_descriptor"
	// KindRowOutOfRange covers a modification addressing a row outside
	// [0, len(rows)) of the planned snapshot.
	KindRowOutOfRange ErrorKind = "row_out_of_range"
)

// Error is the structured failure type for planning and modification
// validation.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("plan: %s: %s", e.Kind, e.Detail)
}

func malformed(format string, args ...any) *Error {
	return &Error{Kind: KindMalformedDescriptor, Detail: fmt.Sprintf(format, args...)}
}

func outOfRange(format string, args ...any) *Error {
	return &Error{Kind: KindRowOutOfRange, Detail: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a plan.Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	pe, ok := err.(*Error)
	return ok && pe.Kind == kind
}
