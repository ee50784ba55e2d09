// Package scheduler implements the task scheduling policy of spec §4.D
// layered on top of internal/reactor: priority-aware posting (Critical
// tasks dispatch inline when possible, everything else is posted),
// delayed one-shot tasks, and cancellable recurring tasks, with every
// task wrapped so a panicking task is logged and contained rather than
// killing the owning reactor.
//
// Grounded on the teacher's internal/task package (priority levels on a
// work queue, a recurring-timer helper keyed by an opaque handle) and
// internal/reactor.Timer for the underlying delay mechanism.
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/corefoundry/substrate/internal/logging"
	"github.com/corefoundry/substrate/internal/messaging"
	"github.com/corefoundry/substrate/internal/reactor"
)

// Priority reuses the messaging package's four-level ladder so callers
// have one priority vocabulary across messaging and scheduling.
type Priority = messaging.Priority

const (
	Low      = messaging.Low
	Normal   = messaging.Normal
	High     = messaging.High
	Critical = messaging.Critical
)

// RecurringID identifies a scheduled recurring task for later
// cancellation.
type RecurringID uint64

// Scheduler posts and times work onto a single reactor, per spec §4.D.
type Scheduler struct {
	r   reactor.Reactor
	log *logging.Logger

	nextID    atomic.Uint64
	mu        sync.Mutex
	recurring map[RecurringID]*recurringEntry
}

type recurringEntry struct {
	canceled bool
	timer    *reactor.Timer
}

// New creates a Scheduler that posts and dispatches work on r.
func New(r reactor.Reactor, log *logging.Logger) *Scheduler {
	return &Scheduler{
		r:         r,
		log:       log,
		recurring: make(map[RecurringID]*recurringEntry),
	}
}

func (s *Scheduler) wrap(task func()) func() {
	return func() {
		defer func() {
			if rec := recover(); rec != nil && s.log != nil {
				s.log.Error("scheduler: task panicked: %v", rec)
			}
		}()
		task()
	}
}

// Post schedules task for execution according to priority: Critical
// tasks are dispatched (run inline if already on the reactor's
// goroutine), all other priorities are posted to the back of the
// reactor's queue, per spec §4.D.
func (s *Scheduler) Post(task func(), priority Priority) {
	wrapped := s.wrap(task)
	if priority == Critical {
		s.r.Dispatch(wrapped)
		return
	}
	s.r.Post(wrapped)
}

// PostDelayed schedules task to run once, after delay, at priority.
func (s *Scheduler) PostDelayed(task func(), delay time.Duration, priority Priority) *reactor.Timer {
	wrapped := s.wrap(task)
	return s.r.Timer(delay, func() {
		s.Post(wrapped, priority)
	})
}

// ScheduleRecurring schedules task to run every interval at priority
// until CancelRecurring is called with the returned id. The first execution
// happens after one interval, not immediately.
func (s *Scheduler) ScheduleRecurring(task func(), interval time.Duration, priority Priority) RecurringID {
	id := RecurringID(s.nextID.Add(1))
	entry := &recurringEntry{}

	s.mu.Lock()
	s.recurring[id] = entry
	s.mu.Unlock()

	var arm func()
	arm = func() {
		s.mu.Lock()
		canceled := entry.canceled
		s.mu.Unlock()
		if canceled {
			return
		}
		timer := s.r.Timer(interval, func() {
			s.Post(task, priority)
			arm()
		})
		s.mu.Lock()
		entry.timer = timer
		s.mu.Unlock()
	}
	arm()

	return id
}

// CancelRecurring stops a previously scheduled recurring task. It is
// safe to call more than once or with an unknown id.
func (s *Scheduler) CancelRecurring(id RecurringID) {
	s.mu.Lock()
	entry, ok := s.recurring[id]
	if ok {
		entry.canceled = true
		delete(s.recurring, id)
	}
	var timer *reactor.Timer
	if ok {
		timer = entry.timer
	}
	s.mu.Unlock()
	if timer != nil {
		timer.Cancel()
	}
}
