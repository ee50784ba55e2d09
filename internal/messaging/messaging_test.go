package messaging

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corefoundry/substrate/internal/reactor"
)

type Ping struct{ N int }

func newTestMailbox(t *testing.T, name string, r reactor.Reactor, opts ...Option) *Mailbox {
	t.Helper()
	return NewMailbox(name, r, nil, opts...)
}

func TestSendToUnknownThreadReturnsNotFound(t *testing.T) {
	bus := NewBus(nil)
	result := bus.Send("ghost", Ping{1}, Normal)
	assert.Equal(t, NotFound, result)
}

func TestRegisterIsNotDoubleAllowed(t *testing.T) {
	bus := NewBus(nil)
	r := reactor.NewLoopReactor()
	mb := newTestMailbox(t, "consumer", r)

	require.NoError(t, bus.Register("consumer", mb))
	err := bus.Register("consumer", mb)
	require.Error(t, err)
	var alreadyErr *AlreadyRegisteredError
	assert.ErrorAs(t, err, &alreadyErr)
}

func TestCrossThreadMessageOrderPreservedPerPriority(t *testing.T) {
	bus := NewBus(nil)
	r := reactor.NewLoopReactor()
	go r.Run()
	defer r.Stop()

	mb := NewMailbox("C", r, nil, WithDrainInterval(time.Millisecond))
	require.NoError(t, bus.Register("C", mb))

	var mu sync.Mutex
	var received []int
	done := make(chan struct{})
	Subscribe(mb, func(p Ping) {
		mu.Lock()
		received = append(received, p.N)
		if len(received) == 3 {
			close(done)
		}
		mu.Unlock()
	})

	require.Equal(t, Delivered, bus.Send("C", Ping{7}, Normal))
	require.Equal(t, Delivered, bus.Send("C", Ping{8}, Normal))
	require.Equal(t, Delivered, bus.Send("C", Ping{9}, Normal))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("messages never drained")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{7, 8, 9}, received)
}

func TestUnsubscribeDropsSilently(t *testing.T) {
	bus := NewBus(nil)
	r := reactor.NewLoopReactor()
	go r.Run()
	defer r.Stop()

	mb := NewMailbox("T", r, nil, WithDrainInterval(time.Millisecond))
	require.NoError(t, bus.Register("T", mb))

	var calls int32
	Subscribe(mb, func(p Ping) { calls++ })
	Unsubscribe[Ping](mb)

	bus.Send("T", Ping{1}, Normal)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 0, calls)
}

func TestMailboxFullReturnsFull(t *testing.T) {
	bus := NewBus(nil)
	r := reactor.NewLoopReactor() // never run: nothing drains

	mb := NewMailbox("Full", r, nil, WithCapacity(2))
	require.NoError(t, bus.Register("Full", mb))

	assert.Equal(t, Delivered, bus.Send("Full", Ping{1}, Normal))
	assert.Equal(t, Delivered, bus.Send("Full", Ping{2}, Normal))
	assert.Equal(t, Full, bus.Send("Full", Ping{3}, Normal))
}

func TestBroadcastBestEffort(t *testing.T) {
	bus := NewBus(nil)
	r := reactor.NewLoopReactor()

	healthy := NewMailbox("healthy", r, nil, WithCapacity(10))
	full := NewMailbox("full", r, nil, WithCapacity(0))
	require.NoError(t, bus.Register("healthy", healthy))
	require.NoError(t, bus.Register("full", full))

	delivered := bus.Broadcast(Ping{1}, Normal)
	assert.Equal(t, 1, delivered)
}

func TestShutdownRejectsFurtherSends(t *testing.T) {
	bus := NewBus(nil)
	r := reactor.NewLoopReactor()
	mb := NewMailbox("X", r, nil)
	require.NoError(t, bus.Register("X", mb))

	bus.Shutdown()
	assert.Equal(t, Shutdown, bus.Send("X", Ping{1}, Normal))
	assert.Equal(t, 0, bus.Broadcast(Ping{1}, Normal))
}

func TestMailboxStopDropsOutstanding(t *testing.T) {
	r := reactor.NewLoopReactor()
	mb := NewMailbox("Y", r, nil, WithCapacity(10))
	bus := NewBus(nil)
	require.NoError(t, bus.Register("Y", mb))
	bus.Send("Y", Ping{1}, Normal)
	assert.Equal(t, 1, mb.Len())

	mb.Stop()
	assert.Equal(t, 0, mb.Len())
	assert.False(t, mb.enqueue(&Message{Priority: Normal}))
}

func TestPriorityDrainsHighBeforeLow(t *testing.T) {
	bus := NewBus(nil)
	r := reactor.NewLoopReactor()
	// Don't run the reactor yet: we enqueue first, then drain manually via
	// drainOne to assert strict priority ordering deterministically.
	mb := NewMailbox("P", r, nil, WithMode(EventDriven))
	require.NoError(t, bus.Register("P", mb))

	bus.Send("P", Ping{1}, Low)
	bus.Send("P", Ping{2}, High)
	bus.Send("P", Ping{3}, Critical)

	var order []int
	Subscribe(mb, func(p Ping) { order = append(order, p.N) })
	for mb.drainOne() {
	}
	assert.Equal(t, []int{3, 2, 1}, order)
}
