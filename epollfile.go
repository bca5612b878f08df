package shadow

import (
	"reflect"

	"github.com/shadow/shadow-sub001/internal/descriptor"
	"github.com/shadow/shadow-sub001/internal/epoll"
	"github.com/shadow/shadow-sub001/internal/status"
)

// NewEpoll constructs an epoll descriptor bound to a host's listener
// sequence, satisfying descriptor.File like every other concrete kind.
func NewEpoll(seq *status.Sequencer) *epoll.Epoll {
	return epoll.New(seq)
}

// ObjectIdentity derives the stable per-object identity epoll.Key needs from
// a descriptor's own Base pointer, so re-binding an fd to a different
// underlying object (close then reuse the same handle) never collides with
// the previous occupant's watches.
func ObjectIdentity(f descriptor.File) epoll.ObjectID {
	return epoll.ObjectID(reflect.ValueOf(f).Pointer())
}
