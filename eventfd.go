package shadow

import (
	"sync"

	"github.com/shadow/shadow-sub001/internal/descriptor"
	"github.com/shadow/shadow-sub001/internal/status"
)

// eventfdMax is UINT64_MAX-1: the highest value the counter may hold,
// matching the real eventfd(2) overflow boundary.
const eventfdMax = ^uint64(0) - 1

// EventFD is a 64-bit counter descriptor, optionally in semaphore mode
// (§4.5): READABLE iff the counter is non-zero, WRITABLE iff the counter is
// below eventfdMax.
type EventFD struct {
	*descriptor.Base

	mu        sync.Mutex
	counter   uint64
	semaphore bool
}

// NewEventFD constructs an eventfd with the given initial counter value.
func NewEventFD(init uint64, semaphore bool) *EventFD {
	e := &EventFD{counter: init, semaphore: semaphore}
	e.Base = descriptor.NewBase(descriptor.KindEventFD, nil, nil)
	e.refreshStatusLocked()
	return e
}

// Read zeroes the counter (or decrements it by one in semaphore mode) and
// returns the value read. An empty counter reports KindWouldBlock.
func (e *EventFD) Read() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.counter == 0 {
		return 0, NewError("read", KindWouldBlock)
	}
	var v uint64
	if e.semaphore {
		v, e.counter = 1, e.counter-1
	} else {
		v, e.counter = e.counter, 0
	}
	e.refreshStatusLocked()
	return v, nil
}

// Write adds delta to the counter. An addition that would overflow past
// eventfdMax reports KindWouldBlock, matching eventfd(2): a blocking writer
// waits for a reader to make room, a non-blocking one gets EAGAIN.
func (e *EventFD) Write(delta uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if delta > eventfdMax-e.counter {
		return NewError("write", KindWouldBlock)
	}
	e.counter += delta
	e.refreshStatusLocked()
	return nil
}

func (e *EventFD) refreshStatusLocked() {
	e.AdjustStatus(status.Readable, e.counter > 0)
	e.AdjustStatus(status.Writable, e.counter < eventfdMax)
}
