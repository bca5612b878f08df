package shadow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shadow "github.com/shadow/shadow-sub001"
)

func TestThreadResumeInvokesCapturedCallbackOnce(t *testing.T) {
	th := shadow.NewThread(1, 1)
	calls := 0
	th.Suspend(func() { calls++ })

	th.Resume()
	th.Resume() // no captured callback left; must not panic or re-invoke
	assert.Equal(t, 1, calls)
}

func TestThreadSignalMaskGatesPending(t *testing.T) {
	th := shadow.NewThread(1, 1)
	assert.False(t, th.HasUnblockedSignalPending())

	th.RaiseSignal(5)
	assert.True(t, th.HasUnblockedSignalPending())

	th.SetSignalMask(1 << 5)
	assert.False(t, th.HasUnblockedSignalPending(), "a blocked signal is not a pending-unblocked signal")
}

func TestThreadExitStopsRunning(t *testing.T) {
	th := shadow.NewThread(1, 1)
	assert.True(t, th.Running())
	th.Exit()
	assert.False(t, th.Running())
}

func TestProcessTableLookupThread(t *testing.T) {
	pt := shadow.NewProcessTable()
	p := pt.AddProcess(7)
	p.AddThread(3)

	th, ok := pt.LookupThread(7, 3)
	require.True(t, ok)
	assert.Equal(t, int32(7), th.PID)
	assert.Equal(t, int32(3), th.TID)

	_, ok = pt.LookupThread(7, 99)
	assert.False(t, ok)

	pt.RemoveProcess(7)
	_, ok = pt.LookupThread(7, 3)
	assert.False(t, ok)
}
