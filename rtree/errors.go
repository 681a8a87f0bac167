package rtree

import "fmt"

// ErrorKind classifies the errors this package and the index façade built
// on top of it can return.
type ErrorKind int

const (
	// InvalidArgument covers bad M/m at construction and malformed
	// rectangles.
	InvalidArgument ErrorKind = iota
	// LockTimeout covers a reader/writer acquisition that exceeded its
	// bound.
	LockTimeout
	// NotFound covers deleting a payload that isn't indexed.
	NotFound
	// DuplicatePayload covers adding a payload that's already indexed.
	DuplicatePayload
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case LockTimeout:
		return "lock timeout"
	case NotFound:
		return "not found"
	case DuplicatePayload:
		return "duplicate payload"
	default:
		return "unknown error"
	}
}

// Error is the error type returned by this package and the index façade.
// Kind lets callers distinguish error cases with errors.Is / errors.As
// instead of matching on message text.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Msg
}

// Is makes errors.Is(err, rtree.ErrNotFound) (and the other sentinels
// below) work regardless of the message text carried by err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Sentinel errors for use with errors.Is. Their Msg is irrelevant to
// matching; only Kind is compared.
var (
	ErrInvalidArgument  = &Error{Kind: InvalidArgument}
	ErrLockTimeout      = &Error{Kind: LockTimeout}
	ErrNotFound         = &Error{Kind: NotFound}
	ErrDuplicatePayload = &Error{Kind: DuplicatePayload}
)
