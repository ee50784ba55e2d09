// Package thread implements the managed-thread abstraction of spec §4.C:
// a named native goroutine that owns a reactor and a mailbox, started
// once and never restarted, with an optional setup function that can
// abort the thread before it ever runs user tasks.
//
// Grounded on the teacher's internal/worker.Manager (one goroutine per
// worker, a state word transitioned under a mutex, Stop draining the
// goroutine via a done channel) generalized from a worker-pool entry to
// a single named, addressable managed thread wired to the reactor and
// messaging packages.
package thread

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corefoundry/substrate/internal/logging"
	"github.com/corefoundry/substrate/internal/messaging"
	"github.com/corefoundry/substrate/internal/reactor"
)

// State is the managed-thread lifecycle of spec §4.C.
type State int32

const (
	Created State = iota
	Running
	Stopping
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// SetupFunc runs on the managed thread's own goroutine before it starts
// processing posted work. Returning an error aborts the thread: it
// transitions directly to Failed and never reaches Running.
type SetupFunc func() error

// Thread is the managed-thread of spec §4.C: a name, a dedicated
// reactor, a registered mailbox, and a single native goroutine running
// the reactor's loop.
type Thread struct {
	name   string
	bus    *messaging.Bus
	log    *logging.Logger
	setup  SetupFunc
	mb     *messaging.Mailbox
	mbOpts []messaging.Option
	loop   *reactor.LoopReactor
	guard  *reactor.WorkGuard
	state  atomic.Int32
	once   sync.Once
	doneCh chan struct{}
}

// Option configures a Thread at construction.
type Option func(*Thread)

// WithSetup installs a setup function run once on the managed goroutine
// before it begins normal operation.
func WithSetup(fn SetupFunc) Option { return func(t *Thread) { t.setup = fn } }

// WithMailboxOptions forwards options to the underlying mailbox.
func WithMailboxOptions(opts ...messaging.Option) Option {
	return func(t *Thread) { t.mbOpts = append(t.mbOpts, opts...) }
}

// New creates a managed thread named name; Start registers its mailbox
// with bus under that same name. The thread does not run until Start is
// called.
func New(name string, bus *messaging.Bus, log *logging.Logger, opts ...Option) *Thread {
	t := &Thread{
		name:   name,
		bus:    bus,
		log:    log,
		loop:   reactor.NewLoopReactor(),
		doneCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.mb = messaging.NewMailbox(name, t.loop, log, t.mbOpts...)
	t.state.Store(int32(Created))
	return t
}

// Name returns the thread's registered name.
func (t *Thread) Name() string { return t.name }

// State returns the thread's current lifecycle state.
func (t *Thread) State() State { return State(t.state.Load()) }

// Start registers the thread's mailbox with the bus and launches its
// goroutine. Start may be called at most once; subsequent calls are
// no-ops, matching spec §4.C's "may not be restarted" invariant.
func (t *Thread) Start() error {
	var startErr error
	t.once.Do(func() {
		if err := t.bus.Register(t.name, t.mb); err != nil {
			t.state.Store(int32(Failed))
			startErr = err
			close(t.doneCh)
			return
		}
		t.guard = t.loop.Guard()
		go t.run()
	})
	return startErr
}

func (t *Thread) run() {
	defer close(t.doneCh)

	if t.setup != nil {
		if err := t.setup(); err != nil {
			t.state.Store(int32(Failed))
			if t.log != nil {
				t.log.Error("thread %s: setup failed, thread will not start: %v", t.name, err)
			}
			t.guard.Release()
			return
		}
	}

	t.state.Store(int32(Running))
	t.loop.Run()
	t.state.Store(int32(Stopped))
}

// PostTask enqueues fn for execution on this thread's reactor.
func (t *Thread) PostTask(fn func()) {
	t.loop.Post(fn)
}

// Send delivers payload to this thread's mailbox via bus, returning the
// same discriminated result as messaging.Bus.Send.
func (t *Thread) Send(payload interface{}, priority messaging.Priority) messaging.SendResult {
	return t.bus.Send(t.name, payload, priority)
}

// Subscribe registers handler for payloads of type T on this thread's
// mailbox.
func Subscribe[T any](t *Thread, handler func(T)) {
	messaging.Subscribe(t.mb, handler)
}

// Unsubscribe removes the handler for type T on this thread's mailbox.
func Unsubscribe[T any](t *Thread) {
	messaging.Unsubscribe[T](t.mb)
}

// PendingMessageCount reports the thread mailbox's current best-effort
// depth.
func (t *Thread) PendingMessageCount() int {
	return t.mb.Len()
}

// Stop requests the thread shut down: its mailbox is stopped, the
// reactor is asked to drain and return, and the work-guard held since
// Start is released. Stop is idempotent and safe to call more than
// once or before Start.
func (t *Thread) Stop() {
	prev := State(t.state.Swap(int32(Stopping)))
	if prev == Created {
		// never started; nothing to drain
		t.state.Store(int32(Stopped))
		return
	}
	t.mb.Stop()
	t.bus.Unregister(t.name)
	t.loop.Stop()
	if t.guard != nil {
		t.guard.Release()
	}
}

// Join blocks until the thread's goroutine has exited, or the given
// timeout elapses, whichever comes first. It returns true if the thread
// exited within the timeout.
func (t *Thread) Join(timeout time.Duration) bool {
	select {
	case <-t.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (t *Thread) String() string {
	return fmt.Sprintf("thread(%s, %s)", t.name, t.State())
}
