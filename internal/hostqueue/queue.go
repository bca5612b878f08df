// Package hostqueue provides a reference implementation of the per-host task
// queue the core simulation kernel assumes but treats as external: a
// min-heap ordered by (scheduled simulated time, insertion sequence), so a
// host's event loop can post zero-delay or absolute-time closures to itself
// and drain whatever is due as of its current virtual clock.
package hostqueue

import (
	"container/heap"
	"sync"
	"time"
)

// Task is a single posted unit of work.
type Task func()

type entry struct {
	when time.Time
	seq  uint64
	task Task
}

// taskHeap is a min-heap over entry, ordered first by scheduled time and
// then by insertion sequence, so two tasks scheduled for the same instant
// run in post order.
type taskHeap []entry

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(entry))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Queue is a single host's task queue. It is not itself a goroutine: a
// host's event loop calls RunReady against its own simulated clock.
type Queue struct {
	mu      sync.Mutex
	heap    taskHeap
	nextSeq uint64
}

// New constructs an empty queue.
func New() *Queue {
	return &Queue{heap: make(taskHeap, 0)}
}

// PostAt schedules task to run at the absolute simulated time when.
func (q *Queue) PostAt(when time.Time, task Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.heap, entry{when: when, seq: q.nextSeq, task: task})
	q.nextSeq++
}

// PostZeroDelay schedules task to run at simulated time now, the mechanism
// SysCallCondition notifications use to hand control back to the host loop
// without advancing virtual time.
func (q *Queue) PostZeroDelay(now time.Time, task Task) {
	q.PostAt(now, task)
}

// Len reports the number of tasks not yet run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// NextDeadline reports the scheduled time of the earliest pending task, and
// false if the queue is empty.
func (q *Queue) NextDeadline() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return time.Time{}, false
	}
	return q.heap[0].when, true
}

// RunReady pops and runs every task whose scheduled time is not after now,
// in (time, sequence) order, returning how many ran. Tasks posted by a
// running task (e.g. a wakeup task that reposts itself) are only picked up
// by a later call, never by the in-progress one, so the loop can't spin
// indefinitely inside a single RunReady call on its own output.
func (q *Queue) RunReady(now time.Time) int {
	var due []Task
	q.mu.Lock()
	for len(q.heap) > 0 && !q.heap[0].when.After(now) {
		e := heap.Pop(&q.heap).(entry)
		due = append(due, e.task)
	}
	q.mu.Unlock()

	for _, t := range due {
		t()
	}
	return len(due)
}
