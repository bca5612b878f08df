// Package epoll implements the readiness-reporting engine: a descriptor kind
// that watches other descriptors via status.Listener and exposes a
// level/edge/one-shot ready set, mirroring the operations of Linux
// epoll_ctl/epoll_wait (§4.3).
package epoll

import (
	"github.com/shadow/shadow-sub001/internal/descriptor"
	"github.com/shadow/shadow-sub001/internal/status"
)

// EventMask mirrors the requested event bits of epoll_ctl's struct
// epoll_event, restricted to what the core contract needs.
type EventMask uint32

// Event mask bits.
const (
	In EventMask = 1 << iota
	Out
	EdgeTriggered
	OneShot
)

// ObjectID identifies the watched object's identity, not merely its fd: the
// same fd can be re-bound to a different underlying object after dup/close/
// replace, and a watch keyed only by fd would then silently refer to the
// wrong object. Descriptor.Handle() is not suitable as an identity either,
// since it is reused; callers supply a stable per-object id (e.g. Base's
// pointer identity, reinterpreted as an integer by the caller).
type ObjectID uintptr

// Key identifies an epoll watch: the pair (fd, watched-object identity).
type Key struct {
	FD     int32
	Object ObjectID
}

// watchFlags tracks reported state as a bitset rather than separate
// WATCHING/ET_REPORTED/ONESHOT_REPORTED booleans.
type watchFlags uint8

const (
	flagReadChanged watchFlags = 1 << iota
	flagWriteChanged
	flagETReported
	flagOneshotReported
	flagWatching
)

// watch is a per-(fd, object) record describing what to report and the
// reporting state accumulated so far.
type watch struct {
	key      Key
	object   descriptor.File
	mask     EventMask
	listener *status.Listener
	flags    watchFlags
}

func (w *watch) wantIn() bool  { return w.mask&In != 0 }
func (w *watch) wantOut() bool { return w.mask&Out != 0 }
func (w *watch) edge() bool    { return w.mask&EdgeTriggered != 0 }
func (w *watch) oneshot() bool { return w.mask&OneShot != 0 }

func (w *watch) has(f watchFlags) bool  { return w.flags&f != 0 }
func (w *watch) set(f watchFlags)       { w.flags |= f }
func (w *watch) clear(f watchFlags)     { w.flags &^= f }
