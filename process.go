package shadow

import "sync"

// ResumeFunc re-enters the syscall handler that suspended a thread.
type ResumeFunc func()

// Thread is a single schedulable thread of a managed process. It satisfies
// syscond.Thread so a SysCallCondition can resume it and query its signal
// state without depending on the rest of the process model.
type Thread struct {
	PID, TID int32

	mu             sync.Mutex
	running        bool
	onResume       ResumeFunc
	blockedSignals uint64
	pendingSignals uint64
}

// NewThread constructs a running thread with no blocked or pending signals.
func NewThread(pid, tid int32) *Thread {
	return &Thread{PID: pid, TID: tid, running: true}
}

// Suspend records the function that resumes this thread's syscall handler.
// It does not affect Running: a blocked thread is still a live thread a
// condition may resume, as opposed to one that has exited.
func (t *Thread) Suspend(onResume ResumeFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onResume = onResume
}

// Resume implements syscond.Thread: it re-enters the syscall handler
// exactly once, even if called concurrently by more than one source.
func (t *Thread) Resume() {
	t.mu.Lock()
	fn := t.onResume
	t.onResume = nil
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Running implements syscond.Thread: true until the thread exits, regardless
// of whether it is currently blocked in a suspended syscall.
func (t *Thread) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Exit marks the thread as no longer schedulable; a condition's runWakeup
// will not resume it even if its trigger or timeout fires afterward.
func (t *Thread) Exit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

// SetSignalMask sets which signals are currently blocked.
func (t *Thread) SetSignalMask(blocked uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blockedSignals = blocked
}

// RaiseSignal records signo as pending for this thread.
func (t *Thread) RaiseSignal(signo uint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingSignals |= 1 << signo
}

// HasUnblockedSignalPending implements syscond.Thread: true if any pending
// signal is not currently blocked.
func (t *Thread) HasUnblockedSignalPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pendingSignals&^t.blockedSignals != 0
}

// Process is a managed process: a process id and its set of threads.
type Process struct {
	PID     int32
	mu      sync.Mutex
	threads map[int32]*Thread
}

// NewProcess constructs an empty process.
func NewProcess(pid int32) *Process {
	return &Process{PID: pid, threads: make(map[int32]*Thread)}
}

// AddThread creates, registers and returns a new thread with the given tid.
func (p *Process) AddThread(tid int32) *Thread {
	t := NewThread(p.PID, tid)
	p.mu.Lock()
	p.threads[tid] = t
	p.mu.Unlock()
	return t
}

// Thread looks up a thread by id.
func (p *Process) Thread(tid int32) (*Thread, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.threads[tid]
	return t, ok
}

// RemoveThread drops a thread from the process, e.g. on thread exit.
func (p *Process) RemoveThread(tid int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.threads, tid)
}

// ProcessTable maps process ids to Process, the registry a Host consults to
// resolve a SysCallCondition's (pid, tid) at wakeup time.
type ProcessTable struct {
	mu        sync.Mutex
	processes map[int32]*Process
}

// NewProcessTable constructs an empty table.
func NewProcessTable() *ProcessTable {
	return &ProcessTable{processes: make(map[int32]*Process)}
}

// AddProcess creates, registers and returns a new process.
func (pt *ProcessTable) AddProcess(pid int32) *Process {
	p := NewProcess(pid)
	pt.mu.Lock()
	pt.processes[pid] = p
	pt.mu.Unlock()
	return p
}

// RemoveProcess drops a process and all its threads, e.g. on exit.
func (pt *ProcessTable) RemoveProcess(pid int32) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	delete(pt.processes, pid)
}

// LookupThread resolves (pid, tid), satisfying syscond.Host.
func (pt *ProcessTable) LookupThread(pid, tid int32) (*Thread, bool) {
	pt.mu.Lock()
	p, ok := pt.processes[pid]
	pt.mu.Unlock()
	if !ok {
		return nil, false
	}
	return p.Thread(tid)
}
