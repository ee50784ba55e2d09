package reactor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRunsOnLoopGoroutine(t *testing.T) {
	r := NewLoopReactor()
	go r.Run()
	defer r.Stop()

	done := make(chan bool, 1)
	r.Post(func() {
		done <- r.OnThread()
	})

	select {
	case onThread := <-done:
		assert.True(t, onThread)
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestDispatchInlineWhenOnThread(t *testing.T) {
	r := NewLoopReactor()
	go r.Run()
	defer r.Stop()

	var nested int32
	doneCh := make(chan struct{})
	r.Post(func() {
		r.Dispatch(func() { atomic.AddInt32(&nested, 1) })
		close(doneCh)
	})
	<-doneCh
	assert.Equal(t, int32(1), atomic.LoadInt32(&nested))
}

func TestTimerFires(t *testing.T) {
	r := NewLoopReactor()
	go r.Run()
	defer r.Stop()

	fired := make(chan struct{})
	r.Timer(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestTimerCancel(t *testing.T) {
	r := NewLoopReactor()
	go r.Run()
	defer r.Stop()

	var fired int32
	timer := r.Timer(20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	timer.Cancel()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestStopDrainsQueuedTasks(t *testing.T) {
	r := NewLoopReactor()
	go r.Run()

	var count int32
	for i := 0; i < 5; i++ {
		r.Post(func() { atomic.AddInt32(&count, 1) })
	}
	r.Stop()
	assert.Equal(t, int32(5), atomic.LoadInt32(&count))
}

func TestWorkGuard(t *testing.T) {
	r := NewLoopReactor()
	require.Equal(t, int32(0), r.Guards())

	g := r.Guard()
	require.Equal(t, int32(1), r.Guards())

	g.Release()
	require.Equal(t, int32(0), r.Guards())

	g.Release() // idempotent
	require.Equal(t, int32(0), r.Guards())
}

func TestPanicInTaskDoesNotKillReactor(t *testing.T) {
	r := NewLoopReactor()
	go r.Run()
	defer r.Stop()

	r.Post(func() { panic("boom") })

	done := make(chan bool, 1)
	r.Post(func() { done <- true })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reactor died after panic in task")
	}
}
