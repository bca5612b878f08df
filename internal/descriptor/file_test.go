package descriptor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shadow/shadow-sub001/internal/descriptor"
	"github.com/shadow/shadow-sub001/internal/status"
)

func TestBaseStartsActive(t *testing.T) {
	f := descriptor.NewBase(descriptor.KindEventFD, nil, nil)
	assert.True(t, f.Status().Has(status.Active))
	assert.EqualValues(t, -1, f.Handle())
}

func TestBaseCloseIsIdempotentAndMonotonic(t *testing.T) {
	closes := 0
	f := descriptor.NewBase(descriptor.KindPipeEnd, func() error { closes++; return nil }, nil)
	assert.NoError(t, f.Close())
	assert.NoError(t, f.Close())
	assert.Equal(t, 1, closes)
	assert.True(t, f.Status().Has(status.Closed))
}

func TestBaseUnrefRunsFreeExactlyOnce(t *testing.T) {
	frees := 0
	f := descriptor.NewBase(descriptor.KindFutex, nil, func() { frees++ })
	f.Ref() // two strong refs now
	f.Unref()
	assert.Equal(t, 0, frees)
	f.Unref()
	assert.Equal(t, 1, frees)
	f.Unref() // would-be double free: must not run onFree again
	assert.Equal(t, 1, frees)
}

func TestBaseListenerFanOut(t *testing.T) {
	f := descriptor.NewBase(descriptor.KindEventFD, nil, nil)
	var seq status.Sequencer
	var got status.Status
	l := status.NewListener(seq.Next(), status.Readable, status.Always, notifyFunc(func(current, transitioned status.Status) {
		got = transitioned
	}))
	f.AddListener(l)
	f.AdjustStatus(status.Readable, true)
	assert.Equal(t, status.Readable, got)
}

type notifyFunc func(current, transitioned status.Status)

func (f notifyFunc) Notify(current, transitioned status.Status) { f(current, transitioned) }
