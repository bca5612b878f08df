package shadow

import (
	"time"

	"github.com/shadow/shadow-sub001/internal/hostmgr"
	"github.com/shadow/shadow-sub001/internal/syscond"
)

// SimHost wires a hostmgr.Host's descriptor table, sequencer and task queue
// together with a ProcessTable, so it satisfies syscond.Host and can drive
// real syscall handlers end to end.
type SimHost struct {
	*hostmgr.Host
	Processes *ProcessTable
}

// NewSimHost constructs a host with its own table, sequencer, queue and
// process registry, its virtual clock starting at epoch.
func NewSimHost(name string, epoch time.Time) *SimHost {
	return &SimHost{Host: hostmgr.NewHost(name, epoch), Processes: NewProcessTable()}
}

// LookupThread implements syscond.Host.
func (h *SimHost) LookupThread(pid, tid int32) (syscond.Thread, bool) {
	t, ok := h.Processes.LookupThread(pid, tid)
	if !ok {
		return nil, false
	}
	return t, true
}
