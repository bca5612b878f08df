package status

import (
	"sort"
	"sync"

	"go.uber.org/atomic"

	"github.com/shadow/shadow-sub001/metrics"
)

// Filter selects which transitions make a Listener fire.
type Filter int

// Filter values, per the status-adjustment contract: a listener monitoring
// mask M fires according to how the bits in M just moved.
const (
	// Never means the listener never fires. Used to neuter a detached
	// listener without removing it from a collection some other code still
	// holds a reference to.
	Never Filter = iota
	// OffToOn fires when a bit of interest just turned on.
	OffToOn
	// OnToOff fires when a bit of interest just turned off.
	OnToOff
	// Always fires on any transition of a bit of interest, regardless of
	// direction.
	Always
)

// String implements fmt.Stringer.
func (f Filter) String() string {
	switch f {
	case Never:
		return "NEVER"
	case OffToOn:
		return "OFF_TO_ON"
	case OnToOff:
		return "ON_TO_OFF"
	case Always:
		return "ALWAYS"
	default:
		return "UNKNOWN"
	}
}

// Notifiable is what a Listener invokes when it fires. Implementations must
// not panic: the core's invariant is that every listener of a status change
// is notified, and Adjust does not recover a panic from Notify, so one would
// leave the listeners after it in that fan-out unnotified.
type Notifiable interface {
	Notify(current, transitioned Status)
}

// Sequencer hands out per-host monotonically increasing ordering keys.
// Invocation order among listeners of a single descriptor is the ascending
// ordering-key order; this is load-bearing for determinism (P2), so every
// Listener for objects belonging to the same host must be constructed with
// keys drawn from the same Sequencer.
type Sequencer struct {
	next atomic.Uint64
}

// Next returns the next ordering key, starting at 1 so the zero value is
// reserved for "no listener".
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Listener subscribes to status transitions on selected bits with a filter.
// It may outlive the object it was watching: a pending wakeup can hold a
// strong reference to the listener even after Notifier.RemoveListener has detached
// it (Filter is set to Never at that point, so it simply never fires again).
type Listener struct {
	monitoring Status
	filter     atomic.Int32 // Filter, atomic so Detach is safe to call concurrently with an in-flight Adjust in tests.
	notifiable Notifiable
	key        uint64
}

// NewListener constructs a Listener. key must come from the Sequencer owned
// by the same host as the object being watched.
func NewListener(key uint64, monitoring Status, filter Filter, notifiable Notifiable) *Listener {
	l := &Listener{monitoring: monitoring, notifiable: notifiable, key: key}
	l.filter.Store(int32(filter))
	return l
}

// Key returns the listener's ordering key.
func (l *Listener) Key() uint64 { return l.key }

// Monitoring returns the bits this listener cares about.
func (l *Listener) Monitoring() Status { return l.monitoring }

// Filter returns the listener's current filter.
func (l *Listener) Filter() Filter { return Filter(l.filter.Load()) }

// Detach sets the listener's filter to Never so it stops firing, without
// requiring every holder of a reference to it to be notified synchronously.
func (l *Listener) Detach() {
	l.filter.Store(int32(Never))
}

// fires decides whether this listener's callback should run for the given
// post-adjustment status and the bits that just transitioned.
func (l *Listener) fires(current, transitioned Status) bool {
	interested := transitioned & l.monitoring
	if interested == 0 {
		return false
	}
	switch l.Filter() {
	case OffToOn:
		return current.Any(interested)
	case OnToOff:
		return !current.Any(interested)
	case Always:
		return true
	default: // Never
		return false
	}
}

// Notifier is the embeddable notification substrate: a current Status plus
// the set of listeners subscribed to it. adjust_status (Adjust) is the sole
// mutator of Status; it is the only place transitions are computed and fanned
// out.
type Notifier struct {
	mu        sync.Mutex
	current   Status
	listeners []*Listener
}

// Status returns the current status bitset.
func (n *Notifier) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// AddListener registers a new listener. Listeners are kept in insertion
// order; Adjust sorts a snapshot of them by ordering key before notifying,
// so the order of registration does not affect the order of invocation.
func (n *Notifier) AddListener(l *Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

// RemoveListener detaches and forgets a listener. It is idempotent.
func (n *Notifier) RemoveListener(l *Listener) {
	l.Detach()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, cur := range n.listeners {
		if cur == l {
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			return
		}
	}
}

// Adjust folds bits into the status (setting or clearing depending on set),
// computes the transitioned bits, and — if non-empty — notifies every
// attached listener in ascending ordering-key order. Returns the bits that
// actually transitioned.
//
// The CLOSED bit is monotonic: clearing it is a no-op, it is never removed
// once set (P1).
func (n *Notifier) Adjust(bits Status, set bool) Status {
	metrics.Add(metrics.StatusAdjustCalls, 1)
	n.mu.Lock()
	old := n.current
	var updated Status
	if set {
		updated = old | bits
	} else {
		updated = old &^ bits
	}
	if old.Has(Closed) {
		updated |= Closed // monotonic: CLOSED is never cleared once set (P1).
	}
	n.current = updated
	transitioned := old ^ updated
	if transitioned == 0 {
		n.mu.Unlock()
		return 0
	}
	// Snapshot listeners in ordering-key order before releasing the lock:
	// a listener's own callback may re-enter AddListener/RemoveListener on
	// this Notifier (e.g. an epoll watch detaching itself), and holding the
	// lock across callbacks would deadlock.
	snapshot := make([]*Listener, len(n.listeners))
	copy(snapshot, n.listeners)
	n.mu.Unlock()

	sort.SliceStable(snapshot, func(i, j int) bool { return snapshot[i].key < snapshot[j].key })
	for _, l := range snapshot {
		if l.fires(updated, transitioned) {
			metrics.Add(metrics.ListenerNotifications, 1)
			l.notifiable.Notify(updated, transitioned)
		}
	}
	return transitioned
}
