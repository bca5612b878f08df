package hostqueue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadow/shadow-sub001/internal/hostqueue"
)

func TestRunReadyOrdersByTimeThenSequence(t *testing.T) {
	q := hostqueue.New()
	base := time.Unix(0, 0)

	var order []string
	q.PostAt(base.Add(2*time.Second), func() { order = append(order, "b-later") })
	q.PostAt(base, func() { order = append(order, "a-first") })
	q.PostAt(base, func() { order = append(order, "a-second") })

	ran := q.RunReady(base)
	assert.Equal(t, 2, ran)
	assert.Equal(t, []string{"a-first", "a-second"}, order)

	ran = q.RunReady(base.Add(2 * time.Second))
	assert.Equal(t, 1, ran)
	assert.Equal(t, []string{"a-first", "a-second", "b-later"}, order)
}

func TestRunReadyDoesNotRunTasksPostedDuringItself(t *testing.T) {
	q := hostqueue.New()
	now := time.Unix(0, 0)
	ran := 0
	q.PostAt(now, func() {
		ran++
		q.PostZeroDelay(now, func() { ran++ })
	})
	first := q.RunReady(now)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, ran)

	second := q.RunReady(now)
	assert.Equal(t, 1, second)
	assert.Equal(t, 2, ran)
}

func TestNextDeadline(t *testing.T) {
	q := hostqueue.New()
	_, ok := q.NextDeadline()
	assert.False(t, ok)

	base := time.Unix(0, 0)
	q.PostAt(base.Add(5*time.Second), func() {})
	q.PostAt(base.Add(time.Second), func() {})

	when, ok := q.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Second), when)
}

func TestLenTracksPendingTasks(t *testing.T) {
	q := hostqueue.New()
	now := time.Unix(0, 0)
	q.PostAt(now, func() {})
	q.PostAt(now, func() {})
	assert.Equal(t, 2, q.Len())
	q.RunReady(now)
	assert.Equal(t, 0, q.Len())
}
