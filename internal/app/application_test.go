package app

import (
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corefoundry/substrate/internal/messaging"
	"github.com/corefoundry/substrate/internal/scheduler"
)

type stubComponent struct {
	name    string
	order   *[]string
	failStart bool
}

func (c *stubComponent) Name() string { return c.name }
func (c *stubComponent) Initialize() error {
	*c.order = append(*c.order, "init:"+c.name)
	return nil
}
func (c *stubComponent) Start() error {
	*c.order = append(*c.order, "start:"+c.name)
	if c.failStart {
		return errors.New("start failed")
	}
	return nil
}
func (c *stubComponent) Stop() error {
	*c.order = append(*c.order, "stop:"+c.name)
	return nil
}
func (c *stubComponent) HealthCheck() error { return nil }

func TestInitializeStartStopSequence(t *testing.T) {
	a := New()
	var order []string
	a.AddComponent(&stubComponent{name: "a", order: &order})
	a.AddComponent(&stubComponent{name: "b", order: &order})

	require.NoError(t, a.Initialize())
	assert.Equal(t, Initialized, a.State())

	require.NoError(t, a.Start(1, 0))
	assert.Equal(t, Running, a.State())

	a.Stop()
	assert.Equal(t, Stopped, a.State())

	assert.Equal(t, []string{
		"init:a", "init:b",
		"start:a", "start:b",
		"stop:b", "stop:a",
	}, order)
}

func TestStartFailureTransitionsToFailed(t *testing.T) {
	a := New()
	var order []string
	a.AddComponent(&stubComponent{name: "bad", order: &order, failStart: true})

	require.NoError(t, a.Initialize())
	err := a.Start(1, 0)
	require.Error(t, err)
	assert.Equal(t, Failed, a.State())
}

func TestShutdownWakesWait(t *testing.T) {
	a := New()
	require.NoError(t, a.Initialize())
	require.NoError(t, a.Start(1, 0))

	done := make(chan struct{})
	go func() {
		a.Wait()
		close(done)
	}()

	a.Shutdown()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait never returned after Shutdown")
	}
	a.Stop()
}

func TestCreateThreadAndSendMessage(t *testing.T) {
	a := New()
	require.NoError(t, a.Initialize())
	require.NoError(t, a.Start(1, 0))
	defer a.Stop()

	th := a.CreateWorkerThread("consumer")
	require.NoError(t, th.Start())
	require.Eventually(t, func() bool { return a.ManagedThreadCount() == 1 }, time.Second, time.Millisecond)

	type Job struct{ N int }
	result := a.SendMessageToThread("consumer", Job{N: 1}, messaging.Normal)
	assert.Equal(t, messaging.Delivered, result)

	got, ok := a.GetManagedThread("consumer")
	require.True(t, ok)
	assert.Equal(t, "consumer", got.Name())
}

func TestStopAllManagedThreadsAndJoin(t *testing.T) {
	a := New()
	require.NoError(t, a.Initialize())
	require.NoError(t, a.Start(1, 0))

	th := a.CreateEventDrivenThread("evented")
	require.NoError(t, th.Start())
	require.Eventually(t, func() bool { return th.State().String() == "running" }, time.Second, time.Millisecond)

	a.Stop()
	assert.Equal(t, Stopped, a.State())
}

func TestRecurringTaskLifecycle(t *testing.T) {
	a := New()
	require.NoError(t, a.Initialize())
	require.NoError(t, a.Start(1, 0))

	var calls int
	done := make(chan struct{})
	a.ScheduleRecurringTask("probe", func() {
		calls++
		if calls == 2 {
			close(done)
		}
	}, 5*time.Millisecond, scheduler.Normal)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("recurring task never fired twice")
	}

	a.CancelRecurringTask("probe")
	a.Stop()
}

func TestStopInvokesOnStopThenOnCleanupHooks(t *testing.T) {
	a := New()
	require.NoError(t, a.Initialize())
	require.NoError(t, a.Start(1, 0))

	var order []string
	a.SetOnStop(func() { order = append(order, "stop") })
	a.SetOnCleanup(func() { order = append(order, "cleanup") })

	a.Stop()
	assert.Equal(t, []string{"stop", "cleanup"}, order)
}

func TestHandleSignalInvokesUserHandlerThenOnSignalThenDefault(t *testing.T) {
	a := New()
	require.NoError(t, a.Initialize())
	require.NoError(t, a.Start(1, 0))

	var order []string
	a.SetSignalHandler(syscall.SIGUSR1, func() { order = append(order, "handler") })
	a.SetOnSignal(func(sig os.Signal) { order = append(order, "on_signal:"+sig.String()) })

	done := make(chan struct{})
	go func() {
		a.handleSignal(syscall.SIGUSR1)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleSignal never returned")
	}

	require.Len(t, order, 2)
	assert.Equal(t, "handler", order[0])
	assert.Equal(t, "on_signal:user defined signal 1", order[1])
	a.Stop()
}

func TestComponentLookup(t *testing.T) {
	a := New()
	var order []string
	a.AddComponent(&stubComponent{name: "x", order: &order})

	c, ok := a.GetComponent("x")
	require.True(t, ok)
	assert.Equal(t, "x", c.Name())

	_, ok = a.GetComponent("missing")
	assert.False(t, ok)
}
