// Package descriptor implements the reference-counted descriptor base and
// the per-process DescriptorTable that maps small non-negative integer
// handles to descriptors.
package descriptor

import (
	"go.uber.org/atomic"

	"github.com/shadow/shadow-sub001/internal/safejob"
	"github.com/shadow/shadow-sub001/internal/status"
	"github.com/shadow/shadow-sub001/metrics"
)

// Kind tags the concrete variant of a File, replacing a virtual function
// table with a small enum.
type Kind int

// Concrete descriptor kinds.
const (
	KindPipeEnd Kind = iota
	KindEventFD
	KindTimerFD
	KindFutex
	KindEpoll
	KindTCPSocket
	KindUDPSocket
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindPipeEnd:
		return "PipeEnd"
	case KindEventFD:
		return "EventFD"
	case KindTimerFD:
		return "TimerFD"
	case KindFutex:
		return "Futex"
	case KindEpoll:
		return "Epoll"
	case KindTCPSocket:
		return "TCPSocket"
	case KindUDPSocket:
		return "UDPSocket"
	default:
		return "Unknown"
	}
}

// unallocatedHandle is the sentinel handle value a descriptor carries while
// it is not stored in any table.
const unallocatedHandle = -1

// File is the common descriptor contract every concrete kind implements:
// identity/lifecycle (refcounting, close), mutable state (status, flags,
// listeners). Concrete kinds embed *Base and add their own data/behavior.
type File interface {
	// Kind returns the concrete variant tag.
	Kind() Kind
	// Handle returns the table index this descriptor is currently stored
	// at, or -1 if it is not in any table.
	Handle() int32
	// Status returns the current status bitset.
	Status() status.Status
	// AdjustStatus is the sole mutator of Status; see status.Notifier.Adjust.
	AdjustStatus(bits status.Status, set bool) status.Status
	// AddListener registers interest in status transitions.
	AddListener(l *status.Listener)
	// RemoveListener detaches a previously registered listener.
	RemoveListener(l *status.Listener)
	// Flags returns the descriptor flags (e.g. non-blocking, close-on-exec).
	Flags() int32
	// SetFlags replaces the descriptor flags.
	SetFlags(int32)
	// Ref increments the strong reference count.
	Ref()
	// Unref decrements the strong reference count; at zero it runs the
	// concrete free routine exactly once.
	Unref()
	// Close marks the descriptor user-closed. Idempotent.
	Close() error

	setHandle(int32)
}

// Non-blocking and close-on-exec are the two flag bits the core contract
// cares about; concrete kinds may define further bits above these.
const (
	FlagNonBlock = 1 << iota
	FlagCloseOnExec
)

// Base carries the fields and behavior shared by every concrete descriptor
// kind: status/listeners (via the embedded Notifier), flags, handle,
// refcount, and the once-only close/free transition.
type Base struct {
	status.Notifier

	kind   Kind
	handle atomic.Int32
	flags  atomic.Int32
	refs   atomic.Int32

	closeOnce safejob.OnceJob
	freeOnce  safejob.OnceJob

	// onClose runs exactly once when the user closes the descriptor
	// (before CLOSED is necessarily visible to Unref-driven freeing).
	onClose func() error
	// onFree runs exactly once when the strong refcount reaches zero.
	onFree func()
}

// NewBase constructs a Base with an initial strong reference already held
// (matching the convention that a constructor returns an owned object).
func NewBase(kind Kind, onClose func() error, onFree func()) *Base {
	b := &Base{kind: kind, onClose: onClose, onFree: onFree}
	b.handle.Store(unallocatedHandle)
	b.refs.Store(1)
	b.AdjustStatus(status.Active, true)
	metrics.Add(metrics.DescriptorsAllocated, 1)
	return b
}

// Kind returns the concrete variant tag.
func (b *Base) Kind() Kind { return b.kind }

// Handle returns the table index, or -1 if unallocated.
func (b *Base) Handle() int32 { return b.handle.Load() }

func (b *Base) setHandle(h int32) { b.handle.Store(h) }

// Flags returns the descriptor flags.
func (b *Base) Flags() int32 { return b.flags.Load() }

// SetFlags replaces the descriptor flags.
func (b *Base) SetFlags(f int32) { b.flags.Store(f) }

// AdjustStatus folds bits into the status and fans out transitions to
// listeners. It is exported on Base (rather than only embedded) so concrete
// kinds can call b.AdjustStatus(...) directly.
func (b *Base) AdjustStatus(bits status.Status, set bool) status.Status {
	return b.Notifier.Adjust(bits, set)
}

// AddListener registers a listener.
func (b *Base) AddListener(l *status.Listener) { b.Notifier.AddListener(l) }

// RemoveListener detaches a listener.
func (b *Base) RemoveListener(l *status.Listener) { b.Notifier.RemoveListener(l) }

// Ref increments the strong reference count. Callers that hand out a
// reference (the table, an epoll watch, a syscall condition trigger) must
// call Ref before storing the reference and Unref when they drop it.
func (b *Base) Ref() {
	b.refs.Inc()
}

// Unref decrements the strong reference count. At zero, runs the concrete
// free routine exactly once, however many times Unref is (incorrectly)
// called afterward — a double-free is a programming error the core doesn't
// try to paper over, but freeOnce keeps it from corrupting state twice.
func (b *Base) Unref() {
	if b.refs.Dec() > 0 {
		return
	}
	if b.freeOnce.Begin() {
		defer b.freeOnce.End()
		metrics.Add(metrics.DescriptorsReleased, 1)
		if b.onFree != nil {
			b.onFree()
		}
	}
}

// Close marks the descriptor CLOSED and runs the concrete close routine
// exactly once. Cancelling a condition twice, closing a descriptor twice,
// etc. must all be no-ops (§8 idempotence); Base.Close is the shared half of
// that guarantee.
func (b *Base) Close() error {
	if !b.closeOnce.Begin() {
		return nil
	}
	defer b.closeOnce.End()
	b.AdjustStatus(status.Closed, true)
	if b.onClose != nil {
		return b.onClose()
	}
	return nil
}
