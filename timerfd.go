package shadow

import (
	"sync"
	"time"

	"github.com/shadow/shadow-sub001/internal/descriptor"
	"github.com/shadow/shadow-sub001/internal/hostqueue"
	"github.com/shadow/shadow-sub001/internal/status"
)

// Poster is the minimal per-host capability a TimerFD needs to schedule its
// own expiration tasks, satisfied by *hostmgr.Host.
type Poster interface {
	Now() time.Time
	Post(at time.Time, task hostqueue.Task)
}

// TimerFD holds an expiration schedule and a count of expirations since the
// last read (§4.5): READABLE iff that count is non-zero.
type TimerFD struct {
	*descriptor.Base

	mu          sync.Mutex
	expirations uint64
	generation  uint64 // bumped by Disarm so a stale fire task becomes a no-op.
}

// NewTimerFD constructs a disarmed timerfd.
func NewTimerFD() *TimerFD {
	t := &TimerFD{}
	t.Base = descriptor.NewBase(descriptor.KindTimerFD, nil, nil)
	return t
}

// Arm schedules the first expiration at first, repeating every interval
// thereafter if interval is positive. Re-arming disarms any schedule
// previously set by Arm.
func (t *TimerFD) Arm(host Poster, first time.Time, interval time.Duration) {
	t.mu.Lock()
	t.generation++
	gen := t.generation
	t.mu.Unlock()
	host.Post(first, func() { t.fire(host, gen, first, interval) })
}

// Disarm cancels any pending schedule set by Arm; a fire task already queued
// for the previous generation becomes a no-op.
func (t *TimerFD) Disarm() {
	t.mu.Lock()
	t.generation++
	t.mu.Unlock()
}

func (t *TimerFD) fire(host Poster, gen uint64, at time.Time, interval time.Duration) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.expirations++
	t.mu.Unlock()

	t.AdjustStatus(status.Readable, true)

	if interval > 0 {
		next := at.Add(interval)
		host.Post(next, func() { t.fire(host, gen, next, interval) })
	}
}

// Read returns the number of expirations since the last Read and clears the
// counter. A zero count reports KindWouldBlock.
func (t *TimerFD) Read() (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.expirations == 0 {
		return 0, NewError("read", KindWouldBlock)
	}
	n := t.expirations
	t.expirations = 0
	t.AdjustStatus(status.Readable, false)
	return n, nil
}
