package shadow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	shadow "github.com/shadow/shadow-sub001"
	"github.com/shadow/shadow-sub001/internal/syscond"
)

func TestDoneCarriesValue(t *testing.T) {
	r := shadow.Done(42)
	assert.Equal(t, shadow.ResultDone, r.Kind)
	assert.Equal(t, int64(42), r.Value)
}

func TestDoneErrNegatesErrno(t *testing.T) {
	r := shadow.DoneErr(shadow.KindWouldBlock)
	assert.Equal(t, shadow.ResultDone, r.Kind)
	assert.Less(t, r.Value, int64(0))
}

func TestBlockedCarriesCondition(t *testing.T) {
	host := shadow.NewSimHost("h", time.Unix(0, 0))
	host.Processes.AddProcess(1).AddThread(1)
	c := syscond.New(host, host.Sequencer, 1, 1)

	r := shadow.Blocked(c, true)
	assert.Equal(t, shadow.ResultBlocked, r.Kind)
	assert.Same(t, c, r.Condition)
	assert.True(t, r.Restartable)
}

func TestNativeResult(t *testing.T) {
	r := shadow.Native()
	assert.Equal(t, shadow.ResultNative, r.Kind)
}
