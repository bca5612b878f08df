// Package syscond implements the SysCallCondition machinery: the object a
// blocking syscall leaves behind when it cannot complete immediately. A
// condition binds an optional trigger on a watched object's status, an
// optional absolute-time timeout, and a thread-resume routine, and resumes
// the blocked thread from a zero-delay host task the first time any attached
// source fires (§4.4).
package syscond

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/shadow/shadow-sub001/internal/hostqueue"
	"github.com/shadow/shadow-sub001/internal/status"
)

// TriggerKind distinguishes what a Trigger watches.
type TriggerKind int

// Trigger kinds.
const (
	TriggerNone TriggerKind = iota
	TriggerDescriptor
	TriggerFutex
	TriggerChildProcess
)

// Watchable is the subset of descriptor.File (and futex/child-process
// equivalents) a Trigger needs: somewhere to attach a status.Listener and
// read the current status back from at wakeup time.
type Watchable interface {
	Status() status.Status
	AddListener(l *status.Listener)
	RemoveListener(l *status.Listener)
}

// Trigger describes what a condition is waiting on.
type Trigger struct {
	Kind   TriggerKind
	Object Watchable
	Status status.Status
}

// Thread is the minimal view of a blocked thread a condition needs: enough
// to resume it, and to ask whether it has a pending unblocked signal.
type Thread interface {
	Resume()
	Running() bool
	HasUnblockedSignalPending() bool
}

// Host is the per-host environment a condition schedules wakeup and timeout
// tasks against.
type Host interface {
	Now() time.Time
	Post(at time.Time, task hostqueue.Task)
	LookupThread(pid, tid int32) (Thread, bool)
}

// Condition is a SysCallCondition: the suspended-syscall continuation
// carrying trigger, timeout, and thread identity.
type Condition struct {
	host Host
	seq  *status.Sequencer

	pid, tid int32

	mu              sync.Mutex
	trigger         Trigger
	hasTrigger      bool
	triggerListener *status.Listener
	timeoutAt       time.Time
	hasTimeout      bool
	timeoutArmed    bool
	cancelled       bool

	wakeupScheduled atomic.Bool
	refs            atomic.Int32
}

// New constructs a condition bound to the given blocked thread. It starts
// with one strong reference, owned by the caller.
func New(host Host, seq *status.Sequencer, pid, tid int32) *Condition {
	c := &Condition{host: host, seq: seq, pid: pid, tid: tid}
	c.refs.Store(1)
	return c
}

// Ref takes an additional strong reference.
func (c *Condition) Ref() { c.refs.Inc() }

// Unref releases a strong reference; when the count reaches zero the
// condition is cancelled, detaching any still-attached listeners.
func (c *Condition) Unref() {
	if c.refs.Dec() == 0 {
		c.Cancel()
	}
}

// Attach is wait_nonblock: records the trigger (if any) as a status
// listener, and arms the timeout task (if any and not already armed).
// Filter is OFF_TO_ON for descriptor/file triggers (status bit protocol
// semantics), ALWAYS for futex/child-process triggers whose state does not
// itself use the status bit protocol.
func (c *Condition) Attach(trigger *Trigger, timeoutAt *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelled {
		return
	}
	if trigger != nil && !c.hasTrigger {
		filter := status.OffToOn
		if trigger.Kind != TriggerDescriptor {
			filter = status.Always
		}
		l := status.NewListener(c.seq.Next(), trigger.Status, filter, c)
		trigger.Object.AddListener(l)
		c.trigger = *trigger
		c.triggerListener = l
		c.hasTrigger = true
	}
	if timeoutAt != nil && !c.timeoutArmed {
		c.timeoutAt = *timeoutAt
		c.hasTimeout = true
		c.timeoutArmed = true
		at := *timeoutAt
		c.host.Post(at, func() { c.onTimeout(at) })
	}
}

// Notify implements status.Notifiable for the trigger listener.
func (c *Condition) Notify(current, transitioned status.Status) {
	c.notify()
}

func (c *Condition) onTimeout(at time.Time) {
	c.mu.Lock()
	cancelled := c.cancelled
	c.mu.Unlock()
	if cancelled {
		return
	}
	c.notify()
}

// notify is the idempotent signal path: the first call posts a zero-delay
// wakeup task and sets wakeup-scheduled; subsequent calls before that task
// runs are ignored (P6).
func (c *Condition) notify() {
	if c.wakeupScheduled.CAS(false, true) {
		c.host.Post(c.host.Now(), c.runWakeup)
	}
}

// runWakeup is the zero-delay wakeup task. It performs the four-step resume
// protocol: clear the flag, look up the thread, evaluate satisfaction, and
// resume or leave attached.
func (c *Condition) runWakeup() {
	c.wakeupScheduled.Store(false)

	thread, ok := c.host.LookupThread(c.pid, c.tid)
	if !ok || !thread.Running() {
		return
	}

	satisfied := c.timeoutExpired() || c.triggerSatisfied() || thread.HasUnblockedSignalPending()
	if satisfied {
		thread.Resume()
	}
	// Spurious: leave listeners attached, no state changes needed.
}

func (c *Condition) timeoutExpired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasTimeout && !c.host.Now().Before(c.timeoutAt)
}

func (c *Condition) triggerSatisfied() bool {
	c.mu.Lock()
	trig, ok := c.trigger, c.hasTrigger
	c.mu.Unlock()
	if !ok {
		return false
	}
	return trig.Object.Status().Has(trig.Status)
}

// SignalDelivered is the signal-integration entry point: it asks whether
// the waiting thread has signo unblocked via thread, and if so schedules the
// same wakeup task used by the trigger/timeout path and returns true.
func (c *Condition) SignalDelivered(thread Thread) bool {
	if !thread.HasUnblockedSignalPending() {
		return false
	}
	c.notify()
	return true
}

// Cancel detaches the trigger listener and disarms the timeout, dropping
// their references. Idempotent: cancelling twice is a no-op.
func (c *Condition) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelled {
		return
	}
	c.cancelled = true
	if c.hasTrigger {
		c.trigger.Object.RemoveListener(c.triggerListener)
		c.hasTrigger = false
	}
	c.hasTimeout = false
}

// Cancelled reports whether Cancel has run, for tests.
func (c *Condition) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}
