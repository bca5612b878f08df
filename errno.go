// Package shadow implements the core simulation kernel: the descriptor
// abstraction with its status/listener propagation graph, the epoll
// readiness engine, and the syscall-blocking condition machinery that let
// applications written against blocking/nonblocking POSIX I/O run
// deterministically against virtual time.
package shadow

import (
	"golang.org/x/sys/unix"
)

// Kind classifies an error surfaced by the core, independent of the POSIX
// errno a given syscall eventually reports it as (§7).
type Kind int

// Error kinds.
const (
	// KindBadHandle: the referenced descriptor is not in the table.
	KindBadHandle Kind = iota
	// KindExists: ADD of a watch whose key already exists.
	KindExists
	// KindMissing: MOD/DEL of a non-existent watch.
	KindMissing
	// KindInvalid: malformed arguments.
	KindInvalid
	// KindWouldBlock: non-blocking I/O with no ready data.
	KindWouldBlock
	// KindInterrupted: a blocked syscall was woken by a signal.
	KindInterrupted
	// KindTimedOut: a condition fired solely due to timeout.
	KindTimedOut
)

// Error is a core error: a Kind plus the operation that produced it, mapped
// to a POSIX errno by the syscall layer rather than carrying one itself, so
// internal code never has to reason about per-syscall errno conventions.
type Error struct {
	Op   string
	Kind Kind
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Kind.String()
}

// String names a Kind.
func (k Kind) String() string {
	switch k {
	case KindBadHandle:
		return "bad handle"
	case KindExists:
		return "exists"
	case KindMissing:
		return "missing"
	case KindInvalid:
		return "invalid argument"
	case KindWouldBlock:
		return "would block"
	case KindInterrupted:
		return "interrupted"
	case KindTimedOut:
		return "timed out"
	default:
		return "unknown error"
	}
}

// NewError constructs an *Error for op with the given kind.
func NewError(op string, kind Kind) *Error {
	return &Error{Op: op, Kind: kind}
}

// Errno maps a Kind to the POSIX errno a syscall handler reports it as.
func (k Kind) Errno() unix.Errno {
	switch k {
	case KindBadHandle:
		return unix.EBADF
	case KindExists:
		return unix.EEXIST
	case KindMissing:
		return unix.ENOENT
	case KindInvalid:
		return unix.EINVAL
	case KindWouldBlock:
		return unix.EAGAIN
	case KindInterrupted:
		return unix.EINTR
	case KindTimedOut:
		return unix.ETIMEDOUT
	default:
		return unix.EINVAL
	}
}

// Errno extracts the POSIX errno to report for err, defaulting to EINVAL for
// any error that didn't originate as a core *Error (a programming error, not
// a value any core routine should actually return).
func Errno(err error) unix.Errno {
	if err == nil {
		return 0
	}
	if e, ok := err.(*Error); ok {
		return e.Kind.Errno()
	}
	return unix.EINVAL
}
