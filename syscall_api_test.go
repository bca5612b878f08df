package shadow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shadow "github.com/shadow/shadow-sub001"
	"github.com/shadow/shadow-sub001/internal/epoll"
)

func newTestHost() (*shadow.SimHost, *shadow.Thread) {
	host := shadow.NewSimHost("h", time.Unix(0, 0))
	th := host.Processes.AddProcess(1).AddThread(1)
	return host, th
}

func TestEpollCreateCtlWaitImmediateReady(t *testing.T) {
	host, _ := newTestHost()

	createRes := shadow.EpollCreate(host)
	epfd := int32(createRes.Value)

	pipeRes, fb := shadow.Pipe2(host, 16)
	fa := int32(pipeRes.Value)

	ctlRes := shadow.EpollCtl(host, epfd, fa, epoll.Add, epoll.In)
	require.Equal(t, shadow.ResultDone, ctlRes.Kind)

	writeRes := shadow.PipeWrite(host, 1, 1, fb, []byte("x"))
	require.Equal(t, shadow.ResultDone, writeRes.Kind)

	out := make([]epoll.ReadyEvent, 4)
	waitRes := shadow.EpollWait(host, 1, 1, epfd, out, -1)
	require.Equal(t, shadow.ResultDone, waitRes.Kind)
	assert.Equal(t, int64(1), waitRes.Value)
}

func TestEpollCtlRejectsSelfWatch(t *testing.T) {
	host, _ := newTestHost()
	createRes := shadow.EpollCreate(host)
	epfd := int32(createRes.Value)

	res := shadow.EpollCtl(host, epfd, epfd, epoll.Add, epoll.In)
	assert.Equal(t, shadow.ResultDone, res.Kind)
	assert.Negative(t, res.Value)
}

func TestEpollWaitBlocksWithTimeoutWhenNothingReady(t *testing.T) {
	host, th := newTestHost()
	createRes := shadow.EpollCreate(host)
	epfd := int32(createRes.Value)

	out := make([]epoll.ReadyEvent, 4)
	res := shadow.EpollWait(host, 1, 1, epfd, out, int64(time.Second))
	require.Equal(t, shadow.ResultBlocked, res.Kind)
	assert.True(t, th.Running())
}

func TestPipe2CreatesConnectedPair(t *testing.T) {
	host, _ := newTestHost()
	res, fb := shadow.Pipe2(host, 16)
	fa := int32(res.Value)
	assert.NotEqual(t, fa, fb)

	wr := shadow.PipeWrite(host, 1, 1, fa, []byte("hi"))
	require.Equal(t, shadow.ResultDone, wr.Kind)

	buf := make([]byte, 16)
	rr := shadow.PipeRead(host, 1, 1, fb, buf)
	require.Equal(t, shadow.ResultDone, rr.Kind)
	assert.Equal(t, int64(2), rr.Value)
}

func TestEventFDCreateReadWrite(t *testing.T) {
	host, _ := newTestHost()
	res := shadow.EventFDCreate(host, 0, false)
	fd := int32(res.Value)

	wr := shadow.EventFDWrite(host, 1, 1, fd, 9)
	require.Equal(t, shadow.ResultDone, wr.Kind)

	rr := shadow.EventFDRead(host, 1, 1, fd)
	require.Equal(t, shadow.ResultDone, rr.Kind)
	assert.Equal(t, int64(9), rr.Value)
}

func TestTimerFDCreateSetAndRead(t *testing.T) {
	host, _ := newTestHost()
	res := shadow.TimerFDCreate(host)
	fd := int32(res.Value)

	first := host.Now().Add(time.Second)
	setRes := shadow.TimerFDSetTime(host, fd, first, 0)
	require.Equal(t, shadow.ResultDone, setRes.Kind)

	host.Advance(first)

	rr := shadow.TimerFDRead(host, 1, 1, fd)
	require.Equal(t, shadow.ResultDone, rr.Kind)
	assert.Equal(t, int64(1), rr.Value)
}

func TestCloseUnknownFDReportsBadHandle(t *testing.T) {
	host, _ := newTestHost()
	res := shadow.Close(host, 99)
	assert.Equal(t, shadow.ResultDone, res.Kind)
	assert.Negative(t, res.Value)
}

func TestCloseRemovesFromTable(t *testing.T) {
	host, _ := newTestHost()
	res := shadow.EventFDCreate(host, 0, false)
	fd := int32(res.Value)

	closeRes := shadow.Close(host, fd)
	require.Equal(t, shadow.ResultDone, closeRes.Kind)
	assert.Equal(t, int64(0), closeRes.Value)

	rr := shadow.EventFDRead(host, 1, 1, fd)
	assert.Negative(t, rr.Value, "fd is gone from the table after close")
}
