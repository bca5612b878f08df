package shadow

import (
	"errors"
	"time"

	"github.com/shadow/shadow-sub001/internal/descriptor"
	"github.com/shadow/shadow-sub001/internal/epoll"
	"github.com/shadow/shadow-sub001/internal/status"
	"github.com/shadow/shadow-sub001/internal/syscond"
)

// This file is the syscall-facing surface (§6): one function per handled
// syscall, each returning a Result. A handler that cannot complete
// immediately returns Blocked; the caller is responsible for suspending the
// calling thread (Thread.Suspend) with a closure that re-invokes the same
// handler, and for calling Condition.Cancel once the thread actually resumes.

// EpollCreate implements epoll_create1: allocates a fresh epoll descriptor
// and installs it in the host's descriptor table.
func EpollCreate(host *SimHost) Result {
	fd := host.Table.Add(NewEpoll(host.Sequencer))
	return Done(int64(fd))
}

// EpollCtl implements epoll_ctl. epfd == fd is rejected with KindInvalid,
// matching Linux's self-watch restriction.
func EpollCtl(host *SimHost, epfd, fd int32, op epoll.Op, mask epoll.EventMask) Result {
	if epfd == fd {
		return DoneErr(KindInvalid)
	}
	ep, ok := lookupEpoll(host, epfd)
	if !ok {
		return DoneErr(KindBadHandle)
	}
	target := host.Table.Get(fd)
	if target == nil {
		return DoneErr(KindBadHandle)
	}
	key := epoll.Key{FD: fd, Object: ObjectIdentity(target)}
	if err := ep.Ctl(op, key, target, mask); err != nil {
		return epollCtlErrResult(err)
	}
	return Done(0)
}

func epollCtlErrResult(err error) Result {
	switch {
	case errors.Is(err, epoll.ErrExists):
		return DoneErr(KindExists)
	case errors.Is(err, epoll.ErrNotFound):
		return DoneErr(KindMissing)
	default:
		return DoneErr(KindInvalid)
	}
}

// EpollWait implements epoll_wait: an immediate return if events are
// already pending, otherwise a blocked condition with the requested
// timeout (no timeout at all if timeoutNanos is negative, an immediate
// non-blocking return if it is exactly zero). out is filled in place and
// its used length returned as the result value.
func EpollWait(host *SimHost, pid, tid int32, epfd int32, out []epoll.ReadyEvent, timeoutNanos int64) Result {
	ep, ok := lookupEpoll(host, epfd)
	if !ok {
		return DoneErr(KindBadHandle)
	}
	n := copy(out, ep.Drain(len(out)))
	if n > 0 {
		return Done(int64(n))
	}
	if timeoutNanos == 0 {
		return Done(0)
	}
	cond := syscond.New(host, host.Sequencer, pid, tid)
	trig := syscond.Trigger{Kind: syscond.TriggerDescriptor, Object: ep, Status: status.Readable}
	cond.Attach(&trig, timeoutFromNanos(host, timeoutNanos))
	return Blocked(cond, true)
}

func lookupEpoll(host *SimHost, fd int32) (*epoll.Epoll, bool) {
	ep, ok := host.Table.Get(fd).(*epoll.Epoll)
	return ep, ok && ep != nil
}

// timeoutFromNanos converts a syscall-style relative timeout (negative:
// wait forever, zero: handled by the caller before this is reached,
// positive: nanoseconds from now) into the absolute deadline Attach wants.
func timeoutFromNanos(host *SimHost, timeoutNanos int64) *time.Time {
	if timeoutNanos < 0 {
		return nil
	}
	at := host.Now().Add(time.Duration(timeoutNanos))
	return &at
}

// EventFDCreate implements eventfd2.
func EventFDCreate(host *SimHost, initVal uint64, semaphore bool) Result {
	fd := host.Table.Add(NewEventFD(initVal, semaphore))
	return Done(int64(fd))
}

// EventFDRead implements the read(2) half of eventfd's contract.
func EventFDRead(host *SimHost, pid, tid int32, fd int32) Result {
	e, ok := host.Table.Get(fd).(*EventFD)
	if !ok || e == nil {
		return DoneErr(KindBadHandle)
	}
	v, err := e.Read()
	if err == nil {
		return Done(int64(v))
	}
	return blockOnWouldBlock(host, pid, tid, e.Base, e, status.Readable, err)
}

// EventFDWrite implements the write(2) half of eventfd's contract.
func EventFDWrite(host *SimHost, pid, tid int32, fd int32, delta uint64) Result {
	e, ok := host.Table.Get(fd).(*EventFD)
	if !ok || e == nil {
		return DoneErr(KindBadHandle)
	}
	err := e.Write(delta)
	if err == nil {
		return Done(0)
	}
	return blockOnWouldBlock(host, pid, tid, e.Base, e, status.Writable, err)
}

// TimerFDCreate implements timerfd_create.
func TimerFDCreate(host *SimHost) Result {
	fd := host.Table.Add(NewTimerFD())
	return Done(int64(fd))
}

// TimerFDSetTime implements timerfd_settime: first is the absolute time of
// the next expiration, interval the repeat period (zero for one-shot). A
// zero first disarms the timer.
func TimerFDSetTime(host *SimHost, fd int32, first time.Time, interval time.Duration) Result {
	t, ok := host.Table.Get(fd).(*TimerFD)
	if !ok || t == nil {
		return DoneErr(KindBadHandle)
	}
	if first.IsZero() {
		t.Disarm()
		return Done(0)
	}
	t.Arm(host, first, interval)
	return Done(0)
}

// TimerFDRead implements the read(2) half of timerfd's contract, returning
// the number of expirations since the last read.
func TimerFDRead(host *SimHost, pid, tid int32, fd int32) Result {
	t, ok := host.Table.Get(fd).(*TimerFD)
	if !ok || t == nil {
		return DoneErr(KindBadHandle)
	}
	n, err := t.Read()
	if err == nil {
		return Done(int64(n))
	}
	return blockOnWouldBlock(host, pid, tid, t.Base, t, status.Readable, err)
}

// Pipe2 implements pipe2: a connected pair of descriptors, installed in the
// table at two fresh handles.
func Pipe2(host *SimHost, capacity int) (Result, int32) {
	a, b := NewPipe(capacity)
	fa := host.Table.Add(a)
	fb := host.Table.Add(b)
	return Done(int64(fa)), fb
}

// PipeRead implements the read(2) half of a pipe end's contract.
func PipeRead(host *SimHost, pid, tid int32, fd int32, buf []byte) Result {
	p, ok := host.Table.Get(fd).(*PipeEnd)
	if !ok || p == nil {
		return DoneErr(KindBadHandle)
	}
	n, err := p.Read(buf)
	if err == nil {
		return Done(int64(n))
	}
	return blockOnWouldBlock(host, pid, tid, p.Base, p, status.Readable, err)
}

// PipeWrite implements the write(2) half of a pipe end's contract.
func PipeWrite(host *SimHost, pid, tid int32, fd int32, buf []byte) Result {
	p, ok := host.Table.Get(fd).(*PipeEnd)
	if !ok || p == nil {
		return DoneErr(KindBadHandle)
	}
	n, err := p.Write(buf)
	if err == nil {
		return Done(int64(n))
	}
	return blockOnWouldBlock(host, pid, tid, p.Base, p, status.Writable, err)
}

// FutexWait implements the FUTEX_WAIT half of futex(2): blocks the calling
// thread on addr, with an optional absolute deadline.
func FutexWait(host *SimHost, futexes *FutexTable, pid, tid int32, addr uintptr, deadline *time.Time) Result {
	cond := syscond.New(host, host.Sequencer, pid, tid)
	trig := futexes.Wait(addr)
	cond.Attach(&trig, deadline)
	return Blocked(cond, true)
}

// FutexWake implements FUTEX_WAKE: wakes up to n waiters at addr, returning
// how many were actually woken.
func FutexWake(futexes *FutexTable, addr uintptr, n int) Result {
	return Done(int64(futexes.Wake(addr, n)))
}

// Close implements close(2): removes fd from the table. Any epoll currently
// watching the descriptor observes the CLOSED transition through its watch
// listener when desc.Close sets that bit, and performs its own implicit DEL;
// Close itself does not need to know who is watching.
func Close(host *SimHost, fd int32) Result {
	desc := host.Table.Remove(fd)
	if desc == nil {
		return DoneErr(KindBadHandle)
	}
	if err := desc.Close(); err != nil {
		return DoneErr(KindInvalid)
	}
	return Done(0)
}

// blockOnWouldBlock turns a KindWouldBlock error from a non-blocking-style
// accessor into either an EAGAIN result (for an O_NONBLOCK descriptor) or a
// blocked condition waiting on want, matching the read/write blocking
// contract every byte-stream-like descriptor kind shares.
func blockOnWouldBlock(host *SimHost, pid, tid int32, base *descriptor.Base, obj syscond.Watchable, want status.Status, err error) Result {
	e, ok := err.(*Error)
	if !ok || e.Kind != KindWouldBlock {
		return DoneErr(KindInvalid)
	}
	if base.Flags()&descriptor.FlagNonBlock != 0 {
		return DoneErr(KindWouldBlock)
	}
	cond := syscond.New(host, host.Sequencer, pid, tid)
	trig := syscond.Trigger{Kind: syscond.TriggerDescriptor, Object: obj, Status: want}
	cond.Attach(&trig, nil)
	return Blocked(cond, true)
}
