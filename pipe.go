package shadow

import (
	"sync"

	"github.com/shadow/shadow-sub001/internal/descriptor"
	"github.com/shadow/shadow-sub001/internal/status"
)

// pipeBuffer is a bounded byte queue shared by one pipe end's write side and
// its peer's read side.
type pipeBuffer struct {
	mu       sync.Mutex
	data     []byte
	capacity int
}

// PipeEnd is one side of a connected pair, maintaining a bounded byte
// buffer in each direction (§4.5): READABLE iff bytes are available or the
// peer is closed, WRITABLE iff space is available and the peer is not
// closed.
type PipeEnd struct {
	*descriptor.Base

	inbox  *pipeBuffer // bytes the peer wrote, waiting to be read here
	outbox *pipeBuffer // bytes written here, waiting to be read by the peer
	peer   *PipeEnd
}

// NewPipe constructs a connected pair of pipe ends, each with a buffer of
// the given capacity in both directions.
func NewPipe(capacity int) (*PipeEnd, *PipeEnd) {
	ab := &pipeBuffer{capacity: capacity}
	ba := &pipeBuffer{capacity: capacity}

	a := &PipeEnd{outbox: ab, inbox: ba}
	b := &PipeEnd{outbox: ba, inbox: ab}
	a.peer, b.peer = b, a
	a.Base = descriptor.NewBase(descriptor.KindPipeEnd, a.onClose, nil)
	b.Base = descriptor.NewBase(descriptor.KindPipeEnd, b.onClose, nil)
	a.refreshStatus()
	b.refreshStatus()
	return a, b
}

func (e *PipeEnd) onClose() error {
	e.refreshStatus()
	if e.peer != nil {
		e.peer.refreshStatus()
	}
	return nil
}

// Shutdown breaks the peer-pointer cycle at host teardown (the core's
// cycle-breaking resolution for paired descriptors, §5).
func (e *PipeEnd) Shutdown() {
	e.peer = nil
}

// Write appends up to len(p) bytes to the outbound buffer, returning the
// number actually written. With no space available it reports
// KindWouldBlock rather than blocking.
func (e *PipeEnd) Write(p []byte) (int, error) {
	if e.Status().Has(status.Closed) {
		return 0, NewError("write", KindBadHandle)
	}
	e.outbox.mu.Lock()
	space := e.outbox.capacity - len(e.outbox.data)
	if space <= 0 {
		e.outbox.mu.Unlock()
		return 0, NewError("write", KindWouldBlock)
	}
	n := len(p)
	if n > space {
		n = space
	}
	e.outbox.data = append(e.outbox.data, p[:n]...)
	e.outbox.mu.Unlock()

	e.refreshStatus()
	if e.peer != nil {
		e.peer.refreshStatus()
	}
	return n, nil
}

// Read copies up to len(p) bytes from the inbound buffer into p. An empty
// buffer with the peer still open reports KindWouldBlock; an empty buffer
// with the peer closed returns (0, nil), matching EOF.
func (e *PipeEnd) Read(p []byte) (int, error) {
	e.inbox.mu.Lock()
	n := copy(p, e.inbox.data)
	e.inbox.data = e.inbox.data[n:]
	e.inbox.mu.Unlock()

	if n == 0 && !e.peerClosed() {
		return 0, NewError("read", KindWouldBlock)
	}

	e.refreshStatus()
	if e.peer != nil {
		e.peer.refreshStatus()
	}
	return n, nil
}

func (e *PipeEnd) peerClosed() bool {
	return e.peer == nil || e.peer.Status().Has(status.Closed)
}

func (e *PipeEnd) refreshStatus() {
	e.inbox.mu.Lock()
	hasData := len(e.inbox.data) > 0
	e.inbox.mu.Unlock()

	closed := e.peerClosed()

	e.outbox.mu.Lock()
	hasSpace := len(e.outbox.data) < e.outbox.capacity
	e.outbox.mu.Unlock()

	e.AdjustStatus(status.Readable, hasData || closed)
	e.AdjustStatus(status.Writable, hasSpace && !closed)

	// Once the peer has closed and everything it wrote has been drained,
	// this end is CLOSED too: there is nothing left to read and nothing
	// left to write to.
	if closed && !hasData {
		e.AdjustStatus(status.Closed, true)
	}
}
