// Package metrics provides counters for the core simulation kernel, such as
// how often the epoll engine drains a ready set or how many listener
// notifications a status change fans out to. The epoll engine, the status
// notifier and the descriptor base increment their counters; EpollWaitBlocked
// and the SysCallCondition counters are defined and printed, but nothing in
// this module increments them, so they stay at zero unless a caller adds to
// them. Useful for performance tuning and for checking ready-set activity
// under test.
package metrics

import (
	"fmt"
	"time"

	"go.uber.org/atomic"
)

// All metrics definitions.
const (
	// Epoll engine metrics.
	EpollCtlAdd = iota
	EpollCtlMod
	EpollCtlDel
	EpollWaitCalls
	EpollWaitBlocked
	EpollEventsReported
	EpollReadyTransitions

	// Status/listener fan-out metrics.
	StatusAdjustCalls
	ListenerNotifications

	// SysCallCondition metrics. No code in this module increments these.
	ConditionsCreated
	ConditionsCancelled
	WakeupsScheduled
	WakeupsExecuted
	WakeupsSpurious
	TimeoutsFired

	// Descriptor table metrics.
	DescriptorsAllocated
	DescriptorsReleased

	Max
)

var metrics [Max]atomic.Uint64

// Add adds delta to the counter identified by name.
func Add(name int, delta uint64) {
	if name < 0 || name >= Max {
		return
	}
	metrics[name].Add(delta)
}

// Get returns one metric counter.
func Get(name int) uint64 {
	if name < 0 || name >= Max {
		return 0
	}
	return metrics[name].Load()
}

// GetAll returns all metric counters.
func GetAll() [Max]uint64 {
	var m [Max]uint64
	for i := range metrics {
		m[i] = metrics[i].Load()
	}
	return m
}

// ShowMetricsOfPeriod blocks for d and then prints the counters that changed
// during that window.
func ShowMetricsOfPeriod(d time.Duration) {
	old := GetAll()
	<-time.After(d)
	latest := GetAll()
	var m [Max]uint64
	for i := range metrics {
		m[i] = latest[i] - old[i]
	}
	showAll(m)
}

// ShowMetrics prints the current counters.
func ShowMetrics() {
	showAll(GetAll())
}

func showAll(m [Max]uint64) {
	fmt.Println("######### shadow core metrics (", time.Now().Format("2006-01-02 15:04:05"), ") ###########")
	showEpollMetrics(m)
	showStatusMetrics(m)
	showConditionMetrics(m)
	fmt.Printf("%-59s: %d\n", "# DESC - number of descriptors allocated", m[DescriptorsAllocated])
	fmt.Printf("%-59s: %d\n", "# DESC - number of descriptors released", m[DescriptorsReleased])
	fmt.Printf("\n")
}

func showEpollMetrics(m [Max]uint64) {
	fmt.Printf("%-59s: %d\n", "# EPOLL - number of epoll_ctl ADD", m[EpollCtlAdd])
	fmt.Printf("%-59s: %d\n", "# EPOLL - number of epoll_ctl MOD", m[EpollCtlMod])
	fmt.Printf("%-59s: %d\n", "# EPOLL - number of epoll_ctl DEL", m[EpollCtlDel])
	fmt.Printf("%-59s: %d\n", "# EPOLL - number of epoll_wait calls", m[EpollWaitCalls])
	fmt.Printf("%-59s: %d\n", "# EPOLL - number of epoll_wait calls that blocked", m[EpollWaitBlocked])
	fmt.Printf("%-59s: %d\n", "# EPOLL - number of events reported by drain", m[EpollEventsReported])
	fmt.Printf("%-59s: %d\n", "# EPOLL - number of ready-set transitions", m[EpollReadyTransitions])
}

func showStatusMetrics(m [Max]uint64) {
	fmt.Printf("%-59s: %d\n", "# STATUS - number of adjust_status calls", m[StatusAdjustCalls])
	fmt.Printf("%-59s: %d\n", "# STATUS - number of listener notifications delivered", m[ListenerNotifications])
}

func showConditionMetrics(m [Max]uint64) {
	fmt.Printf("%-59s: %d\n", "# COND - number of conditions created", m[ConditionsCreated])
	fmt.Printf("%-59s: %d\n", "# COND - number of conditions cancelled", m[ConditionsCancelled])
	fmt.Printf("%-59s: %d\n", "# COND - number of wakeup tasks scheduled", m[WakeupsScheduled])
	fmt.Printf("%-59s: %d\n", "# COND - number of wakeup tasks executed", m[WakeupsExecuted])
	fmt.Printf("%-59s: %d\n", "# COND - number of spurious wakeups (no-op resume)", m[WakeupsSpurious])
	fmt.Printf("%-59s: %d\n", "# COND - number of timeouts fired", m[TimeoutsFired])
}
