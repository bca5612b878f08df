package shadow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shadow "github.com/shadow/shadow-sub001"
	"github.com/shadow/shadow-sub001/internal/hostqueue"
	"github.com/shadow/shadow-sub001/internal/status"
)

type fakePoster struct {
	now   time.Time
	queue *hostqueue.Queue
}

func newFakePoster() *fakePoster {
	return &fakePoster{now: time.Unix(0, 0), queue: hostqueue.New()}
}

func (p *fakePoster) Now() time.Time                        { return p.now }
func (p *fakePoster) Post(at time.Time, task hostqueue.Task) { p.queue.PostAt(at, task) }
func (p *fakePoster) advance(at time.Time) int               { p.now = at; return p.queue.RunReady(at) }

func TestTimerFDOneShotFiresOnce(t *testing.T) {
	p := newFakePoster()
	tf := shadow.NewTimerFD()

	first := p.now.Add(time.Second)
	tf.Arm(p, first, 0)

	assert.Equal(t, 0, p.advance(p.now))
	require.Equal(t, 1, p.advance(first))
	assert.True(t, tf.Status().Has(status.Readable))

	n, err := tf.Read()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	assert.False(t, tf.Status().Has(status.Readable))

	assert.Equal(t, 0, p.queue.Len(), "a one-shot timer must not reschedule itself")
}

func TestTimerFDIntervalReschedules(t *testing.T) {
	p := newFakePoster()
	tf := shadow.NewTimerFD()

	first := p.now.Add(time.Second)
	tf.Arm(p, first, time.Second)

	require.Equal(t, 1, p.advance(first))
	require.Equal(t, 1, p.advance(first.Add(time.Second)))

	n, err := tf.Read()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n, "two periods elapsed since the last read")
}

func TestTimerFDDisarmCancelsPendingFire(t *testing.T) {
	p := newFakePoster()
	tf := shadow.NewTimerFD()

	first := p.now.Add(time.Second)
	tf.Arm(p, first, 0)
	tf.Disarm()

	p.advance(first)
	assert.False(t, tf.Status().Has(status.Readable))
}

func TestTimerFDReadEmptyWouldBlock(t *testing.T) {
	tf := shadow.NewTimerFD()
	_, err := tf.Read()
	assert.Error(t, err)
}
