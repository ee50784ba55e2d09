package messaging

import (
	"reflect"
	"sync"
	"time"

	"github.com/corefoundry/substrate/internal/logging"
	"github.com/corefoundry/substrate/internal/reactor"
)

// DefaultCapacity is the default maximum mailbox size from spec §3
// (ThreadMailbox): over-capacity sends are dropped and logged rather than
// blocking the sender.
const DefaultCapacity = 10000

// DefaultDrainInterval is the periodic-drain cadence (spec §4.B: "interval
// ≤ 1 ms, configurable").
const DefaultDrainInterval = time.Millisecond

// Handler processes one delivered payload on the owning reactor's thread.
type Handler func(payload interface{})

// Mode selects between the two mailbox delivery strategies spec §4.B
// says are both acceptable: a periodic drain, or posting each message to
// the reactor as it arrives ("event-driven").
type Mode int

const (
	// PeriodicDrain runs a recurring timer on the mailbox's reactor that
	// dequeues in strict priority order, FIFO within a priority.
	PeriodicDrain Mode = iota
	// EventDriven posts a drain task to the reactor immediately on every
	// Send, trading strict per-sender FIFO for per-priority FIFO and
	// lower latency, per spec §4.B's "alternative" note.
	EventDriven
)

// Mailbox is the per-thread structure of spec §3 (ThreadMailbox): a
// bounded priority-ordered buffer plus a type-tag to handler mapping,
// wired to the reactor that will execute handlers.
type Mailbox struct {
	name     string
	reactor  reactor.Reactor
	capacity int
	mode     Mode
	interval time.Duration
	log      *logging.Logger

	mu       sync.Mutex
	queues   [numPriorities][]*Message
	size     int
	stopped  bool
	draining bool
	timer    *reactor.Timer

	handlersMu sync.RWMutex
	handlers   map[reflect.Type]Handler
}

// Option configures a Mailbox at construction.
type Option func(*Mailbox)

// WithCapacity overrides DefaultCapacity.
func WithCapacity(n int) Option { return func(m *Mailbox) { m.capacity = n } }

// WithMode selects PeriodicDrain or EventDriven delivery.
func WithMode(mode Mode) Option { return func(m *Mailbox) { m.mode = mode } }

// WithDrainInterval overrides DefaultDrainInterval (PeriodicDrain only).
func WithDrainInterval(d time.Duration) Option { return func(m *Mailbox) { m.interval = d } }

// NewMailbox creates a mailbox named name, owned by r, which will execute
// every delivered handler on r's thread.
func NewMailbox(name string, r reactor.Reactor, log *logging.Logger, opts ...Option) *Mailbox {
	m := &Mailbox{
		name:     name,
		reactor:  r,
		capacity: DefaultCapacity,
		mode:     PeriodicDrain,
		interval: DefaultDrainInterval,
		log:      log,
		handlers: make(map[reflect.Type]Handler),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.mode == PeriodicDrain {
		m.armDrainTimer()
	}
	return m
}

// Name returns the mailbox's registered thread name.
func (m *Mailbox) Name() string { return m.name }

// Len returns the best-effort current message count across all priorities.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// enqueue places msg in its priority queue, returning false if the
// mailbox is stopped or at capacity.
func (m *Mailbox) enqueue(msg *Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return false
	}
	if m.size >= m.capacity {
		return false
	}
	m.queues[msg.Priority] = append(m.queues[msg.Priority], msg)
	m.size++

	if m.mode == EventDriven {
		m.reactor.Post(func() { m.drainOne() })
	}
	return true
}

// subscribe registers handler for payload type t, replacing any prior
// handler for that type.
func (m *Mailbox) subscribe(t reflect.Type, h Handler) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.handlers[t] = h
}

// unsubscribe removes the handler for type t, if any.
func (m *Mailbox) unsubscribe(t reflect.Type) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	delete(m.handlers, t)
}

func (m *Mailbox) handlerFor(t reflect.Type) (Handler, bool) {
	m.handlersMu.RLock()
	defer m.handlersMu.RUnlock()
	h, ok := m.handlers[t]
	return h, ok
}

// armDrainTimer schedules the next periodic drain on the owning reactor.
func (m *Mailbox) armDrainTimer() {
	m.timer = m.reactor.Timer(m.interval, func() {
		m.drainAll()
		m.mu.Lock()
		stopped := m.stopped
		m.mu.Unlock()
		if !stopped {
			m.armDrainTimer()
		}
	})
}

// drainAll dequeues every currently-buffered message in strict priority
// order (high before low), FIFO within a priority.
func (m *Mailbox) drainAll() {
	for m.drainOne() {
	}
}

// drainOne dequeues and dispatches a single highest-priority message,
// reporting whether one was available.
func (m *Mailbox) drainOne() bool {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return false
	}
	var msg *Message
	for p := numPriorities - 1; p >= 0; p-- {
		if len(m.queues[p]) > 0 {
			msg = m.queues[p][0]
			m.queues[p] = m.queues[p][1:]
			m.size--
			break
		}
	}
	m.mu.Unlock()

	if msg == nil {
		return false
	}

	if h, ok := m.handlerFor(msg.TypeTag); ok {
		func() {
			defer func() {
				if r := recover(); r != nil && m.log != nil {
					m.log.Error("mailbox %s: handler for %v panicked: %v", m.name, msg.TypeTag, r)
				}
			}()
			h(msg.Payload)
		}()
	} else if m.log != nil {
		m.log.Debug("mailbox %s: no handler for %v, dropping message %d", m.name, msg.TypeTag, msg.ID)
	}
	return true
}

// Stop drains and drops outstanding messages; no handler fires after Stop
// returns, matching spec §4.B's cancellation contract.
func (m *Mailbox) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	if m.timer != nil {
		m.timer.Cancel()
	}
	for p := range m.queues {
		m.queues[p] = nil
	}
	m.size = 0
	m.mu.Unlock()
}
