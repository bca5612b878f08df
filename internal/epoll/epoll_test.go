package epoll_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadow/shadow-sub001/internal/descriptor"
	"github.com/shadow/shadow-sub001/internal/epoll"
	"github.com/shadow/shadow-sub001/internal/status"
)

func newWatched() descriptor.File {
	return descriptor.NewBase(descriptor.KindPipeEnd, nil, nil)
}

func TestLevelTriggeredPersistsAcrossDrains(t *testing.T) {
	var seq status.Sequencer
	ep := epoll.New(&seq)
	f := newWatched()
	k := epoll.Key{FD: 7}

	require.NoError(t, ep.Ctl(epoll.Add, k, f, epoll.In))
	assert.Equal(t, 0, ep.ReadyLen())

	f.AdjustStatus(status.Readable, true)
	assert.Equal(t, 1, ep.ReadyLen())

	events := ep.Drain(8)
	require.Len(t, events, 1)
	assert.Equal(t, epoll.In, events[0].Events)

	// Level-triggered: still readable, so the next Drain reports it again
	// without any further status change (no edge-arming required).
	events = ep.Drain(8)
	require.Len(t, events, 1)
}

func TestEdgeTriggeredRequiresRearm(t *testing.T) {
	var seq status.Sequencer
	ep := epoll.New(&seq)
	f := newWatched()
	k := epoll.Key{FD: 9}

	require.NoError(t, ep.Ctl(epoll.Add, k, f, epoll.In|epoll.EdgeTriggered))
	f.AdjustStatus(status.Readable, true)
	require.Equal(t, 1, ep.ReadyLen())

	events := ep.Drain(8)
	require.Len(t, events, 1)

	// No new transition: edge-triggered must not re-report.
	assert.Equal(t, 0, ep.ReadyLen())

	// Toggling off then on again is a fresh transition and must re-arm.
	f.AdjustStatus(status.Readable, false)
	f.AdjustStatus(status.Readable, true)
	assert.Equal(t, 1, ep.ReadyLen())
}

func TestOneShotFiresOnce(t *testing.T) {
	var seq status.Sequencer
	ep := epoll.New(&seq)
	f := newWatched()
	k := epoll.Key{FD: 11}

	require.NoError(t, ep.Ctl(epoll.Add, k, f, epoll.In|epoll.OneShot))
	f.AdjustStatus(status.Readable, true)
	events := ep.Drain(8)
	require.Len(t, events, 1)

	// Further transitions must not re-arm until MOD re-establishes the watch.
	f.AdjustStatus(status.Readable, false)
	f.AdjustStatus(status.Readable, true)
	assert.Equal(t, 0, ep.ReadyLen())

	require.NoError(t, ep.Ctl(epoll.Mod, k, nil, epoll.In|epoll.OneShot))
	assert.Equal(t, 1, ep.ReadyLen())
}

func TestAddExistingKeyFails(t *testing.T) {
	var seq status.Sequencer
	ep := epoll.New(&seq)
	f := newWatched()
	k := epoll.Key{FD: 1}
	require.NoError(t, ep.Ctl(epoll.Add, k, f, epoll.In))
	err := ep.Ctl(epoll.Add, k, f, epoll.In)
	assert.ErrorIs(t, err, epoll.ErrExists)
}

func TestModAndDelOnUnknownKeyFail(t *testing.T) {
	var seq status.Sequencer
	ep := epoll.New(&seq)
	k := epoll.Key{FD: 2}
	assert.ErrorIs(t, ep.Ctl(epoll.Mod, k, nil, epoll.In), epoll.ErrNotFound)
	assert.ErrorIs(t, ep.Ctl(epoll.Del, k, nil, 0), epoll.ErrNotFound)
}

func TestClosingWatchedDescriptorImplicitlyDeletes(t *testing.T) {
	var seq status.Sequencer
	ep := epoll.New(&seq)
	f := newWatched()
	k := epoll.Key{FD: 3}

	require.NoError(t, ep.Ctl(epoll.Add, k, f, epoll.In))
	require.True(t, ep.Watching(k))

	require.NoError(t, f.Close())
	assert.False(t, ep.Watching(k), "closing the watched descriptor must implicitly DEL the watch")
	assert.Equal(t, 0, ep.ReadyLen())
}

// TestSelfReadableTracksReadySet is P4: the epoll descriptor's own READABLE
// bit is set iff its ready set is non-empty.
func TestSelfReadableTracksReadySet(t *testing.T) {
	var seq status.Sequencer
	ep := epoll.New(&seq)
	f := newWatched()
	k := epoll.Key{FD: 4}

	require.NoError(t, ep.Ctl(epoll.Add, k, f, epoll.In))
	assert.False(t, ep.Status().Has(status.Readable))

	f.AdjustStatus(status.Readable, true)
	assert.True(t, ep.Status().Has(status.Readable))

	// A level-triggered watch whose condition still holds stays in the ready
	// set across Drain, so the epoll stays READABLE.
	ep.Drain(8)
	assert.True(t, ep.Status().Has(status.Readable))

	f.AdjustStatus(status.Readable, false)
	assert.False(t, ep.Status().Has(status.Readable))
}

// TestMultipleWatchesCoexistInReadySet checks that independent watches on
// distinct descriptors each enter the same ready set when their own
// requested event becomes ready, and are all reported by one Drain.
func TestMultipleWatchesCoexistInReadySet(t *testing.T) {
	var seq status.Sequencer
	ep := epoll.New(&seq)
	a := newWatched()
	b := newWatched()
	ka, kb := epoll.Key{FD: 5}, epoll.Key{FD: 6}

	require.NoError(t, ep.Ctl(epoll.Add, ka, a, epoll.In))
	require.NoError(t, ep.Ctl(epoll.Add, kb, b, epoll.Out))

	a.AdjustStatus(status.Readable, true)
	assert.Equal(t, 1, ep.ReadyLen())

	b.AdjustStatus(status.Writable, true)
	assert.Equal(t, 2, ep.ReadyLen())

	events := ep.Drain(8)
	assert.Len(t, events, 2)
}

func TestUnwatchedEventDoesNotReport(t *testing.T) {
	var seq status.Sequencer
	ep := epoll.New(&seq)
	f := newWatched()
	k := epoll.Key{FD: 8}

	require.NoError(t, ep.Ctl(epoll.Add, k, f, epoll.In))
	f.AdjustStatus(status.Writable, true) // only WRITABLE, watch only wants IN
	assert.Equal(t, 0, ep.ReadyLen())
}
