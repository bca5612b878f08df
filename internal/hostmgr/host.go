// Package hostmgr provides a reference multi-host scheduler: a registry of
// simulated hosts, each running its own single-threaded event loop
// (descriptor table, sequencer, task queue) on a goroutine drawn from a
// bounded pool, picked by a pluggable load-balance strategy. It is the
// concrete analogue of the "per-host single-threaded scheduler" the core
// kernel assumes but treats as external (§5).
package hostmgr

import (
	"sync"
	"time"

	"github.com/shadow/shadow-sub001/internal/descriptor"
	"github.com/shadow/shadow-sub001/internal/hostqueue"
	"github.com/shadow/shadow-sub001/internal/status"
)

// Host is one simulated machine: its own descriptor table, listener
// ordering sequence, and task queue, advanced along its own virtual clock.
// Every descriptor, listener, epoll, and syscall condition belonging to a
// host is manipulated only from that host's own loop goroutine.
type Host struct {
	Name string

	Table     *descriptor.Table
	Sequencer *status.Sequencer
	Queue     *hostqueue.Queue

	mu  sync.Mutex
	now time.Time

	stop chan struct{}
	done chan struct{}
}

// NewHost constructs a host with its own table, sequencer and queue, its
// virtual clock starting at epoch.
func NewHost(name string, epoch time.Time) *Host {
	return &Host{
		Name:      name,
		Table:     descriptor.NewTable(),
		Sequencer: &status.Sequencer{},
		Queue:     hostqueue.New(),
		now:       epoch,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Now returns the host's current virtual time.
func (h *Host) Now() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

// Post schedules task at the host's absolute virtual time at, satisfying
// syscond.Host.
func (h *Host) Post(at time.Time, task hostqueue.Task) {
	h.Queue.PostAt(at, task)
}

// Advance jumps the virtual clock forward to at and runs every task due by
// then, returning how many ran. It never moves the clock backward.
func (h *Host) Advance(at time.Time) int {
	h.mu.Lock()
	if at.After(h.now) {
		h.now = at
	}
	now := h.now
	h.mu.Unlock()
	return h.Queue.RunReady(now)
}

// Run drives the host's loop until Stop is called: each iteration advances
// to the next pending deadline and runs every task due there; with nothing
// pending, it sleeps one real-time millisecond and checks again, returning
// as soon as it is stopped. The real-time sleep
// here is only the driver's polling cadence for new work arriving from
// outside the host (e.g. another host posting cross-host I/O); it never
// feeds into the host's own virtual clock, which only Advance moves.
func (h *Host) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.stop:
			return
		default:
		}
		when, ok := h.Queue.NextDeadline()
		if !ok {
			select {
			case <-h.stop:
				return
			case <-time.After(time.Millisecond):
			}
			continue
		}
		h.Advance(when)
	}
}

// Stop signals Run to exit and blocks until it has.
func (h *Host) Stop() {
	close(h.stop)
	<-h.done
}
