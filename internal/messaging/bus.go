package messaging

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/corefoundry/substrate/internal/logging"
)

// SendResult is the discriminated outcome of Bus.Send, matching spec
// §4.B's error-by-return-value policy (no exceptions on the messaging hot
// path).
type SendResult int

const (
	Delivered SendResult = iota
	NotFound
	Full
	Shutdown
)

func (r SendResult) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case NotFound:
		return "not_found"
	case Full:
		return "full"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// AlreadyRegisteredError is returned by Bus.Register when the thread name
// is already taken.
type AlreadyRegisteredError struct{ Name string }

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("messaging: thread %q already registered", e.Name)
}

// Bus is the AddressBook of spec §3: a global mapping from thread name to
// mailbox, guarded by a single mutex since its operations are short
// map inserts/lookups (spec §5).
type Bus struct {
	mu        sync.RWMutex
	mailboxes map[string]*Mailbox
	nextMsgID atomic.Uint64
	shutdown  atomic.Bool
	log       *logging.Logger
}

// NewBus creates an empty address book.
func NewBus(log *logging.Logger) *Bus {
	return &Bus{
		mailboxes: make(map[string]*Mailbox),
		log:       log,
	}
}

// Register adds mb under name. Registration is idempotent per name in the
// sense that unregistering and re-registering the same name succeeds;
// registering while the name is live fails with AlreadyRegisteredError.
func (b *Bus) Register(name string, mb *Mailbox) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.mailboxes[name]; exists {
		return &AlreadyRegisteredError{Name: name}
	}
	b.mailboxes[name] = mb
	return nil
}

// Unregister removes name from the address book; safe to call on a name
// that is not present.
func (b *Bus) Unregister(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.mailboxes, name)
}

// Lookup returns the mailbox registered under name, if any.
func (b *Bus) Lookup(name string) (*Mailbox, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	mb, ok := b.mailboxes[name]
	return mb, ok
}

// Shutdown marks the bus as terminating; subsequent Send/Broadcast calls
// return Shutdown without touching any mailbox.
func (b *Bus) Shutdown() {
	b.shutdown.Store(true)
}

// Send delivers payload to target's mailbox at the given priority,
// returning Delivered, NotFound, Full, or Shutdown per spec §4.B.
func (b *Bus) Send(target string, payload interface{}, priority Priority) SendResult {
	if b.shutdown.Load() {
		return Shutdown
	}
	mb, ok := b.Lookup(target)
	if !ok {
		return NotFound
	}
	msg := newMessage(b.nextMsgID.Add(1), priority, payload)
	if !mb.enqueue(msg) {
		if b.log != nil {
			b.log.Warn("messaging: mailbox %s full or stopped, dropping message %d", target, msg.ID)
		}
		return Full
	}
	return Delivered
}

// Broadcast sends a copy of payload to every currently registered
// mailbox. Per-recipient failures (Full, a stopped mailbox) are logged
// and skipped; Broadcast is best-effort, never all-or-nothing, per spec
// §9's resolved open question. It returns the count actually delivered.
func (b *Bus) Broadcast(payload interface{}, priority Priority) int {
	if b.shutdown.Load() {
		return 0
	}
	b.mu.RLock()
	targets := make([]*Mailbox, 0, len(b.mailboxes))
	for _, mb := range b.mailboxes {
		targets = append(targets, mb)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, mb := range targets {
		msg := newMessage(b.nextMsgID.Add(1), priority, payload)
		if mb.enqueue(msg) {
			delivered++
		} else if b.log != nil {
			b.log.Warn("messaging: broadcast skipped mailbox %s (full or stopped)", mb.Name())
		}
	}
	return delivered
}

// RegisteredThreads returns the currently registered mailbox names.
func (b *Bus) RegisteredThreads() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.mailboxes))
	for name := range b.mailboxes {
		names = append(names, name)
	}
	return names
}

// Subscribe registers handler as the sole handler for payloads of type T
// on mb, replacing any prior handler for that type, per spec §4.B.
func Subscribe[T any](mb *Mailbox, handler func(T)) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	mb.subscribe(t, func(payload interface{}) { handler(payload.(T)) })
}

// Unsubscribe removes the handler for type T on mb; subsequent messages
// of T are silently discarded by that mailbox.
func Unsubscribe[T any](mb *Mailbox) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	mb.unsubscribe(t)
}
