package shadow

import (
	"sync"

	"github.com/shadow/shadow-sub001/internal/status"
	"github.com/shadow/shadow-sub001/internal/syscond"
)

// futexSignal is a private, one-shot Watchable handed to a single waiter: it
// carries no shared state across waiters of the same address, so waking it
// can never be mistaken by another waiter for its own wakeup.
type futexSignal struct {
	status.Notifier
}

func (s *futexSignal) fire() { s.Adjust(status.Active, true) }

// FutexTable is an address-keyed futex wait-queue registry (§4.5): Wait
// registers a new waiter at an address and returns the trigger a
// SysCallCondition should attach to; Wake fires up to n of the oldest
// still-waiting triggers at that address, FIFO.
type FutexTable struct {
	mu      sync.Mutex
	waiters map[uintptr][]*futexSignal
}

// NewFutexTable constructs an empty registry.
func NewFutexTable() *FutexTable {
	return &FutexTable{waiters: make(map[uintptr][]*futexSignal)}
}

// Wait registers a new waiter at addr and returns the trigger to attach a
// condition to.
func (t *FutexTable) Wait(addr uintptr) syscond.Trigger {
	s := &futexSignal{}
	t.mu.Lock()
	t.waiters[addr] = append(t.waiters[addr], s)
	t.mu.Unlock()
	return syscond.Trigger{Kind: syscond.TriggerFutex, Object: s, Status: status.Active}
}

// Forget drops a waiter that gave up without being woken (e.g. on timeout or
// syscall cancellation), so Wake never sees it again.
func (t *FutexTable) Forget(addr uintptr, trig syscond.Trigger) {
	s, ok := trig.Object.(*futexSignal)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.waiters[addr]
	for i, w := range list {
		if w == s {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(t.waiters, addr)
	} else {
		t.waiters[addr] = list
	}
}

// Wake fires up to n of the oldest waiters registered at addr and returns
// how many were actually woken.
func (t *FutexTable) Wake(addr uintptr, n int) int {
	t.mu.Lock()
	list := t.waiters[addr]
	if n < 0 || n > len(list) {
		n = len(list)
	}
	chosen := list[:n]
	remaining := list[n:]
	if len(remaining) == 0 {
		delete(t.waiters, addr)
	} else {
		t.waiters[addr] = remaining
	}
	t.mu.Unlock()

	for _, s := range chosen {
		s.fire()
	}
	return len(chosen)
}
