package epoll

import (
	"github.com/pkg/errors"

	"github.com/shadow/shadow-sub001/internal/descriptor"
	"github.com/shadow/shadow-sub001/internal/safejob"
	"github.com/shadow/shadow-sub001/internal/status"
	"github.com/shadow/shadow-sub001/metrics"
)

// Sentinel errors, mapped to POSIX errnos by the syscall layer (§7).
var (
	// ErrExists is returned by Add when the key already exists.
	ErrExists = errors.New("epoll: watch already exists")
	// ErrNotFound is returned by Mod/Del when the key is absent.
	ErrNotFound = errors.New("epoll: watch not found")
	// ErrInvalid is returned for malformed arguments.
	ErrInvalid = errors.New("epoll: invalid argument")
	// ErrClosed is returned by Ctl when the epoll's refcount has already
	// reached zero and onFree has torn down its watch set.
	ErrClosed = errors.New("epoll: already freed")
)

// Op mirrors epoll_ctl's operation argument.
type Op int

// Operations.
const (
	Add Op = iota
	Mod
	Del
)

// ReadyEvent is one entry produced by Drain: the watch's key and the
// effective reported mask.
type ReadyEvent struct {
	Key    Key
	Events EventMask
}

// Epoll is a descriptor kind that watches other descriptors via
// status.Listener and exposes a readiness-reporting engine equivalent to
// Linux epoll_ctl/epoll_wait, driven entirely by adjust_status — never by a
// real OS epoll syscall.
type Epoll struct {
	*descriptor.Base

	seq *status.Sequencer

	// mu guards watching/ready. It is an ExclusiveBlockJob rather than a
	// plain sync.Mutex so onFree can permanently close it: once the
	// epoll's refcount has dropped to zero, any epoll_ctl racing the
	// teardown fails closed instead of mutating maps onFree just reset.
	mu       safejob.ExclusiveBlockJob
	watching map[Key]*watch
	ready    map[Key]*watch
}

// New constructs an empty Epoll descriptor. seq must be the host's shared
// Sequencer so that this epoll's own watch listeners are ordered correctly
// relative to every other listener on the host.
func New(seq *status.Sequencer) *Epoll {
	ep := &Epoll{seq: seq, watching: make(map[Key]*watch), ready: make(map[Key]*watch)}
	ep.Base = descriptor.NewBase(descriptor.KindEpoll, ep.onClose, ep.onFree)
	return ep
}

func (ep *Epoll) onClose() error {
	return nil
}

// onFree runs when the epoll's own refcount reaches zero: every remaining
// watch listener is detached so watched descriptors don't keep firing into a
// dead epoll.
func (ep *Epoll) onFree() {
	// Close first: Close waits for any caller already between Begin and End
	// to finish, and every Begin after it fails (epoll_ctl with ErrClosed),
	// so nothing else touches the maps while they are torn down below.
	ep.mu.Close()
	for _, w := range ep.watching {
		w.object.RemoveListener(w.listener)
		w.object.Unref()
	}
	ep.watching = make(map[Key]*watch)
	ep.ready = make(map[Key]*watch)
}

// Ctl performs ADD/MOD/DEL, mirroring epoll_ctl.
func (ep *Epoll) Ctl(op Op, key Key, obj descriptor.File, mask EventMask) error {
	switch op {
	case Add:
		return ep.add(key, obj, mask)
	case Mod:
		return ep.mod(key, mask)
	case Del:
		return ep.del(key)
	default:
		return errors.Wrap(ErrInvalid, "unknown epoll_ctl operation")
	}
}

func (ep *Epoll) add(key Key, obj descriptor.File, mask EventMask) error {
	if !ep.mu.Begin() {
		return ErrClosed
	}
	if _, exists := ep.watching[key]; exists {
		ep.mu.End()
		return ErrExists
	}
	w := &watch{key: key, object: obj, mask: mask}
	w.set(flagWatching)
	obj.Ref()
	l := status.NewListener(ep.seq.Next(),
		status.Active|status.Closed|status.Readable|status.Writable,
		status.Always,
		&watchNotifier{ep: ep, key: key})
	w.listener = l
	obj.AddListener(l)
	ep.watching[key] = w
	ep.mu.End()

	metrics.Add(metrics.EpollCtlAdd, 1)
	ep.onStatusChange(w, obj.Status())
	return nil
}

func (ep *Epoll) mod(key Key, mask EventMask) error {
	if !ep.mu.Begin() {
		return ErrClosed
	}
	w, ok := ep.watching[key]
	if !ok {
		ep.mu.End()
		return ErrNotFound
	}
	w.mask = mask
	w.clear(flagETReported)
	w.clear(flagOneshotReported)
	objStatus := w.object.Status()
	ep.mu.End()

	metrics.Add(metrics.EpollCtlMod, 1)
	ep.onStatusChange(w, objStatus)
	return nil
}

func (ep *Epoll) del(key Key) error {
	if !ep.mu.Begin() {
		return ErrClosed
	}
	w, ok := ep.watching[key]
	if !ok {
		ep.mu.End()
		return ErrNotFound
	}
	ep.removeWatchLocked(w)
	ep.mu.End()

	metrics.Add(metrics.EpollCtlDel, 1)
	ep.refreshSelfReadable()
	return nil
}

// removeWatchLocked fully detaches a watch: clears WATCHING, detaches its
// listener, and removes it from both watching and ready. Callers must hold
// ep.mu.
func (ep *Epoll) removeWatchLocked(w *watch) {
	w.clear(flagWatching)
	w.object.RemoveListener(w.listener)
	delete(ep.watching, w.key)
	delete(ep.ready, w.key)
	w.object.Unref()
}

// watchNotifier adapts a single watch's status.Notifiable callback into a
// call back into its owning Epoll.
type watchNotifier struct {
	ep  *Epoll
	key Key
}

// Notify implements status.Notifiable.
func (n *watchNotifier) Notify(current, transitioned status.Status) {
	if !n.ep.mu.Begin() {
		return
	}
	w, ok := n.ep.watching[n.key]
	if !ok {
		n.ep.mu.End()
		return
	}
	// The read/write-changed flags record that THIS transition touched
	// READABLE/WRITABLE, which edge-triggered mode needs to tell "already
	// ready, no new transition" apart from "just became ready".
	if transitioned.Any(status.Readable) {
		w.set(flagReadChanged)
	}
	if transitioned.Any(status.Writable) {
		w.set(flagWriteChanged)
	}
	n.ep.mu.End()

	n.ep.onStatusChange(w, current)

	// §9 / Open Question 2: closing a watched descriptor performs an
	// implicit DEL on every epoll currently watching it before the
	// descriptor's refcount can reach zero, rather than waiting for a
	// racing epoll_ctl(DEL) to arrive (or never arrive) separately.
	if current.Has(status.Closed) {
		if n.ep.mu.Begin() {
			if w, ok := n.ep.watching[n.key]; ok {
				n.ep.removeWatchLocked(w)
			}
			n.ep.mu.End()
		}
		n.ep.refreshSelfReadable()
	}
}

// onStatusChange recomputes whether w belongs in the ready set given
// the watched object's current status, and updates ep's own READABLE bit
// (the epoll's own status has READABLE set iff ready is non-empty — P4).
func (ep *Epoll) onStatusChange(w *watch, objStatus status.Status) {
	if !ep.mu.Begin() {
		return
	}
	ready := isReady(w, objStatus)
	before := len(ep.ready)
	if ready {
		if _, already := ep.ready[w.key]; !already {
			metrics.Add(metrics.EpollReadyTransitions, 1)
		}
		ep.ready[w.key] = w
	} else {
		if _, existed := ep.ready[w.key]; existed {
			metrics.Add(metrics.EpollReadyTransitions, 1)
		}
		delete(ep.ready, w.key)
	}
	after := len(ep.ready)
	ep.mu.End()

	if (before == 0) != (after == 0) {
		ep.refreshSelfReadable()
	}
}

func (ep *Epoll) refreshSelfReadable() {
	if !ep.mu.Begin() {
		return
	}
	nonEmpty := len(ep.ready) > 0
	ep.mu.End()
	ep.AdjustStatus(status.Readable, nonEmpty)
}

// isReady implements the readiness predicate of §4.3.
func isReady(w *watch, objStatus status.Status) bool {
	if objStatus.Has(status.Closed) || !objStatus.Has(status.Active) || !w.has(flagWatching) {
		return false
	}
	hasRead := objStatus.Has(status.Readable) && w.wantIn()
	hasWrite := objStatus.Has(status.Writable) && w.wantOut()

	var ready bool
	if !w.edge() {
		ready = hasRead || hasWrite
	} else {
		readReady := hasRead && (w.has(flagReadChanged) || !w.has(flagETReported))
		writeReady := hasWrite && (w.has(flagWriteChanged) || !w.has(flagETReported))
		ready = readReady || writeReady
	}
	if ready && w.oneshot() && w.has(flagOneshotReported) {
		ready = false
	}
	return ready
}

// Drain walks the ready map up to max entries, emitting one event per entry
// and updating per-watch reporting state (§4.3 WAIT). It never blocks: the
// caller (the epoll_wait syscall handler) decides whether to block on a
// SysCallCondition when Drain returns nothing and a timeout is requested.
func (ep *Epoll) Drain(max int) []ReadyEvent {
	metrics.Add(metrics.EpollWaitCalls, 1)
	if !ep.mu.Begin() {
		return nil
	}

	events := make([]ReadyEvent, 0, max)
	for key, w := range ep.ready {
		if len(events) >= max {
			break
		}
		objStatus := w.object.Status()
		var reported EventMask
		if w.wantIn() && objStatus.Has(status.Readable) {
			reported |= In
		}
		if w.wantOut() && objStatus.Has(status.Writable) {
			reported |= Out
		}
		if w.edge() {
			reported |= EdgeTriggered
		}
		events = append(events, ReadyEvent{Key: key, Events: reported})

		w.clear(flagReadChanged)
		w.clear(flagWriteChanged)
		if w.edge() {
			w.set(flagETReported)
		}
		if w.oneshot() {
			w.set(flagOneshotReported)
		}
		// A level-triggered watch stays ready as long as the underlying
		// condition still holds; only edge-triggered/one-shot reporting
		// state can make it drop out here.
		if !isReady(w, objStatus) {
			delete(ep.ready, key)
		}
	}
	metrics.Add(metrics.EpollEventsReported, uint64(len(events)))

	nonEmpty := len(ep.ready) > 0
	ep.mu.End()

	ep.AdjustStatus(status.Readable, nonEmpty)
	return events
}

// Watching reports whether key currently has an active watch, for tests.
func (ep *Epoll) Watching(key Key) bool {
	if !ep.mu.Begin() {
		return false
	}
	defer ep.mu.End()
	_, ok := ep.watching[key]
	return ok
}

// ReadyLen reports the size of the ready set, for tests of P3/P4.
func (ep *Epoll) ReadyLen() int {
	if !ep.mu.Begin() {
		return 0
	}
	defer ep.mu.End()
	return len(ep.ready)
}
