// Package app implements the application core of spec §4.F: the
// central state machine that wires the reactor, messaging, scheduler,
// thread, registry, table, and shell packages into a single runnable
// process.
//
// Grounded on the teacher's cmd/server/main.go signal-channel
// graceful-shutdown skeleton, generalized into the full state machine
// of spec §3 plus daemonization, a worker-thread pool, and a
// SIGUSR2-driven config/logging reload.
package app

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/corefoundry/substrate/internal/config"
	"github.com/corefoundry/substrate/internal/logging"
	"github.com/corefoundry/substrate/internal/messaging"
	"github.com/corefoundry/substrate/internal/reactor"
	"github.com/corefoundry/substrate/internal/registry"
	"github.com/corefoundry/substrate/internal/scheduler"
	"github.com/corefoundry/substrate/internal/thread"
)

// Version is the substrate release string reported by --version.
const Version = "0.1.0"

// ErrorHandler receives worker-thread and startup errors that have no
// more specific caller to propagate to.
type ErrorHandler func(error)

// ShellController is the subset of internal/shell.Shell the
// Application drives, declared here (rather than importing shell
// directly) so shell can depend on app's AppHandle without a cycle.
type ShellController interface {
	Start(AppHandle) error
	Stop()
}

// AppHandle is the read/execute surface the operator shell and other
// optional components see of the running Application, per spec §4.H
// ("captures app reference"). It is deliberately narrower than
// Application's full API.
type AppHandle interface {
	State() State
	Shutdown()
	ForceShutdown()
	ManagedThreadCount() int
	ThreadNames() []string
	GetManagedThread(name string) (*thread.Thread, bool)
	Registry() *registry.Registry
	ConfigStore() *config.Store
	Logging() *logging.Manager
	Bus() *messaging.Bus
}

// Application is the single process-wide root of spec §9 ("only one
// live Application instance per process" is a caller discipline this
// type does not itself enforce, matching the teacher's explicit-
// construction style rather than a package-level singleton).
type Application struct {
	state stateBox

	cfg    *config.Store
	logMgr *logging.Manager
	log    *logging.Logger

	registry  *registry.Registry
	bus       *messaging.Bus
	mainLoop  *reactor.LoopReactor
	guard     *reactor.WorkGuard
	scheduler *scheduler.Scheduler

	threadsMu sync.Mutex
	threads   map[string]*thread.Thread

	recurringMu sync.Mutex
	recurring   map[string]scheduler.RecurringID

	signalMu       sync.Mutex
	signalHandlers map[os.Signal]func()
	errorHandler   ErrorHandler
	onSignalHook   func(os.Signal)

	hooksMu       sync.Mutex
	onStopHook    func()
	onCleanupHook func()

	cliMu        sync.Mutex
	cli          ShellController
	cliOn        bool
	shellFactory func(config.NetworkSection) ShellController

	workerWG sync.WaitGroup

	waitMu sync.Mutex
	waitCh chan struct{}
	stopOnce sync.Once

	pidFilePath string
	daemonized  bool
}

// New constructs an Application in the Created state. Components and
// managed threads are added after construction via AddComponent/
// CreateThread and before Run (or Initialize, for callers driving the
// lifecycle manually rather than through Run(argv)).
func New() *Application {
	logMgr := logging.DefaultManager()
	a := &Application{
		logMgr:         logMgr,
		log:            logMgr.Named("app"),
		registry:       registry.New(logMgr.Named("registry")),
		bus:            messaging.NewBus(logMgr.Named("messaging")),
		mainLoop:       reactor.NewLoopReactor(),
		threads:        make(map[string]*thread.Thread),
		recurring:      make(map[string]scheduler.RecurringID),
		signalHandlers: make(map[os.Signal]func()),
		waitCh:         make(chan struct{}),
	}
	a.scheduler = scheduler.New(a.mainLoop, logMgr.Named("scheduler"))
	a.guard = a.mainLoop.Guard()
	return a
}

// State returns the application's current lifecycle state.
func (a *Application) State() State { return a.state.get() }

// Registry exposes the component registry for AddComponent-style
// callers and for AppHandle consumers like the shell.
func (a *Application) Registry() *registry.Registry { return a.registry }

// Bus exposes the messaging bus.
func (a *Application) Bus() *messaging.Bus { return a.bus }

// ConfigStore exposes the loaded configuration.
func (a *Application) ConfigStore() *config.Store { return a.cfg }

// Logging exposes the log manager, e.g. for "log-level" shell command.
func (a *Application) Logging() *logging.Manager { return a.logMgr }

// --- task delegation (spec §4.F: post_task, post_delayed_task, ...) -------

func (a *Application) PostTask(task func(), priority scheduler.Priority) {
	a.scheduler.Post(task, priority)
}

func (a *Application) PostDelayedTask(task func(), delay time.Duration, priority scheduler.Priority) {
	a.scheduler.PostDelayed(task, delay, priority)
}

func (a *Application) ScheduleRecurringTask(name string, task func(), interval time.Duration, priority scheduler.Priority) {
	id := a.scheduler.ScheduleRecurring(task, interval, priority)
	a.recurringMu.Lock()
	a.recurring[name] = id
	a.recurringMu.Unlock()
}

func (a *Application) CancelRecurringTask(name string) {
	a.recurringMu.Lock()
	id, ok := a.recurring[name]
	if ok {
		delete(a.recurring, name)
	}
	a.recurringMu.Unlock()
	if ok {
		a.scheduler.CancelRecurring(id)
	}
}

func (a *Application) cancelAllRecurringTasks() {
	a.recurringMu.Lock()
	ids := make([]scheduler.RecurringID, 0, len(a.recurring))
	for name, id := range a.recurring {
		ids = append(ids, id)
		delete(a.recurring, name)
	}
	a.recurringMu.Unlock()
	for _, id := range ids {
		a.scheduler.CancelRecurring(id)
	}
}

// --- managed threads (spec §4.F) ------------------------------------------

// CreateThread constructs a managed thread named name with an optional
// setup function and retains it for lookup/shutdown. The thread is
// registered with the bus and started only when Start is called on it;
// the Application's own Start does not start managed threads.
func (a *Application) CreateThread(name string, setup thread.SetupFunc) *thread.Thread {
	opts := []thread.Option{}
	if setup != nil {
		opts = append(opts, thread.WithSetup(setup))
	}
	t := thread.New(name, a.bus, a.logMgr.Named("thread."+name), opts...)
	a.threadsMu.Lock()
	a.threads[name] = t
	a.threadsMu.Unlock()
	return t
}

// CreateWorkerThread constructs a plain periodic-drain managed thread,
// the common case for background work.
func (a *Application) CreateWorkerThread(name string) *thread.Thread {
	return a.CreateThread(name, nil)
}

// CreateEventDrivenThread constructs a managed thread whose mailbox
// posts a drain task per arriving message rather than polling, per
// spec §4.B's event-driven mailbox mode.
func (a *Application) CreateEventDrivenThread(name string) *thread.Thread {
	t := thread.New(name, a.bus, a.logMgr.Named("thread."+name),
		thread.WithMailboxOptions(messaging.WithMode(messaging.EventDriven)))
	a.threadsMu.Lock()
	a.threads[name] = t
	a.threadsMu.Unlock()
	return t
}

func (a *Application) ManagedThreadCount() int {
	a.threadsMu.Lock()
	defer a.threadsMu.Unlock()
	return len(a.threads)
}

func (a *Application) GetManagedThread(name string) (*thread.Thread, bool) {
	a.threadsMu.Lock()
	defer a.threadsMu.Unlock()
	t, ok := a.threads[name]
	return t, ok
}

func (a *Application) ThreadNames() []string {
	a.threadsMu.Lock()
	defer a.threadsMu.Unlock()
	names := make([]string, 0, len(a.threads))
	for name := range a.threads {
		names = append(names, name)
	}
	return names
}

func (a *Application) StopAllManagedThreads() {
	a.threadsMu.Lock()
	threads := make([]*thread.Thread, 0, len(a.threads))
	for _, t := range a.threads {
		threads = append(threads, t)
	}
	a.threadsMu.Unlock()
	for _, t := range threads {
		t.Stop()
	}
}

func (a *Application) JoinAllManagedThreads(timeout time.Duration) {
	a.threadsMu.Lock()
	threads := make([]*thread.Thread, 0, len(a.threads))
	for _, t := range a.threads {
		threads = append(threads, t)
	}
	a.threadsMu.Unlock()
	for _, t := range threads {
		t.Join(timeout)
	}
}

// --- messaging delegation --------------------------------------------------

func (a *Application) SendMessageToThread(name string, payload interface{}, priority messaging.Priority) messaging.SendResult {
	return a.bus.Send(name, payload, priority)
}

func (a *Application) BroadcastMessage(payload interface{}, priority messaging.Priority) int {
	return a.bus.Broadcast(payload, priority)
}

// --- components -------------------------------------------------------------

func (a *Application) AddComponent(c registry.Component) {
	a.registry.Add(c)
}

func (a *Application) GetComponent(name string) (registry.Component, bool) {
	return a.registry.Get(name)
}

// --- signal & error handlers -----------------------------------------------

func (a *Application) SetSignalHandler(sig os.Signal, fn func()) {
	a.signalMu.Lock()
	defer a.signalMu.Unlock()
	a.signalHandlers[sig] = fn
}

func (a *Application) SetErrorHandler(fn ErrorHandler) {
	a.signalMu.Lock()
	defer a.signalMu.Unlock()
	a.errorHandler = fn
}

// SetOnSignal registers the virtual on_signal hook of spec.md §6.2's
// signal sequence: invoked for every armed signal after any per-signal
// user handler has run (step ii), before the built-in defaults (step
// iii).
func (a *Application) SetOnSignal(fn func(os.Signal)) {
	a.signalMu.Lock()
	defer a.signalMu.Unlock()
	a.onSignalHook = fn
}

func (a *Application) onSignal(sig os.Signal) {
	a.signalMu.Lock()
	hook := a.onSignalHook
	a.signalMu.Unlock()
	if hook != nil {
		hook(sig)
	}
}

func (a *Application) reportError(err error) {
	a.signalMu.Lock()
	handler := a.errorHandler
	a.signalMu.Unlock()
	if handler != nil {
		handler(err)
		return
	}
	a.log.Error("unhandled error: %v", err)
}

// --- stop/cleanup hooks ------------------------------------------------------

// SetOnStop registers the user-overridable on_stop hook spec.md §4.F's
// stop sequence calls at step 4, before components are stopped.
func (a *Application) SetOnStop(fn func()) {
	a.hooksMu.Lock()
	defer a.hooksMu.Unlock()
	a.onStopHook = fn
}

// SetOnCleanup registers the user-overridable on_cleanup hook spec.md
// §4.F's stop sequence calls at step 8, after every component and
// managed thread has stopped.
func (a *Application) SetOnCleanup(fn func()) {
	a.hooksMu.Lock()
	defer a.hooksMu.Unlock()
	a.onCleanupHook = fn
}

// --- operator shell ----------------------------------------------------------

// SetShellFactory registers fn to build a shell controller once the
// loaded configuration's network section is known, so Run can enable
// it automatically once the worker pool is up rather than requiring
// callers to hand-sequence EnableCLI themselves.
func (a *Application) SetShellFactory(fn func(config.NetworkSection) ShellController) {
	a.cliMu.Lock()
	defer a.cliMu.Unlock()
	a.shellFactory = fn
}

// EnableCLI attaches a shell controller and starts it. Called either
// from Run's startup sequence (when config enables it) or manually.
func (a *Application) EnableCLI(ctl ShellController) error {
	a.cliMu.Lock()
	defer a.cliMu.Unlock()
	if a.cliOn {
		return nil
	}
	if err := ctl.Start(a); err != nil {
		return errors.Wrap(err, "app: enable cli")
	}
	a.cli = ctl
	a.cliOn = true
	return nil
}

func (a *Application) DisableCLI() {
	a.cliMu.Lock()
	defer a.cliMu.Unlock()
	if !a.cliOn {
		return
	}
	a.cli.Stop()
	a.cliOn = false
}

func (a *Application) IsCLIEnabled() bool {
	a.cliMu.Lock()
	defer a.cliMu.Unlock()
	return a.cliOn
}

// --- lifecycle ---------------------------------------------------------------

// Shutdown requests a graceful stop: state moves to Stopping and the
// wait condition wakes so Run's blocking wait can proceed to the stop
// sequence. Safe to call from any goroutine, including a signal
// handler running on the main reactor.
func (a *Application) Shutdown() {
	a.state.set(Stopping)
	a.wake()
}

// ForceShutdown behaves like Shutdown but additionally stops the main
// reactor immediately rather than letting it drain through the normal
// stop sequence.
func (a *Application) ForceShutdown() {
	a.state.set(Stopping)
	a.wake()
	a.mainLoop.Stop()
}

func (a *Application) wake() {
	a.waitMu.Lock()
	defer a.waitMu.Unlock()
	select {
	case <-a.waitCh:
	default:
		close(a.waitCh)
	}
}

// Initialize runs the component registry's initialize pass. Failures
// transition the application to Failed.
func (a *Application) Initialize() error {
	if err := a.registry.InitializeAll(); err != nil {
		a.state.set(Failed)
		return errors.Wrap(err, "app: initialize")
	}
	a.state.set(Initialized)
	return nil
}

// Start runs the component registry's start pass, spawns the worker
// pool, and begins health monitoring. Failures transition the
// application to Failed.
func (a *Application) Start(workerThreads int, healthCheckInterval time.Duration) error {
	a.state.set(Starting)
	if err := a.registry.StartAll(); err != nil {
		a.state.set(Failed)
		return errors.Wrap(err, "app: start")
	}

	if workerThreads < 1 {
		workerThreads = 1
	}
	for i := 0; i < workerThreads; i++ {
		a.workerWG.Add(1)
		go func() {
			defer a.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					a.reportError(fmt.Errorf("worker thread panicked: %v", r))
				}
			}()
			a.mainLoop.Run()
		}()
	}

	if healthCheckInterval > 0 {
		a.ScheduleRecurringTask("__health__", func() {
			if err := a.registry.HealthAll(); err != nil {
				a.log.Warn("health check: %v", err)
			}
		}, healthCheckInterval, scheduler.Normal)
	}

	a.state.set(Running)
	return nil
}

// Wait blocks until the application reaches Stopping, Stopped, or
// Failed.
func (a *Application) Wait() {
	a.waitMu.Lock()
	ch := a.waitCh
	a.waitMu.Unlock()
	<-ch
}

// Stop runs the ten-step shutdown sequence of spec §4.F. It is safe to
// call more than once; only the first call performs work.
func (a *Application) Stop() {
	a.stopOnce.Do(func() {
		a.DisableCLI()                 // 1
		a.CancelRecurringTask("__health__") // 2 (stop health monitoring)
		a.cancelAllRecurringTasks()    // 3
		a.onStop()                     // 4
		a.registry.StopAll()           // 5
		a.StopAllManagedThreads()      // 6
		a.JoinAllManagedThreads(5 * time.Second)
		a.guard.Release() // 7
		a.mainLoop.Stop()
		a.workerWG.Wait()
		a.onCleanup() // 8
		a.removePIDFile() // 9
		a.state.set(Stopped) // 10
	})
}

// onStop and onCleanup are extension points a subclassing caller in
// other languages would override; here they are plain hooks callers
// set once before Run via SetOnStop/SetOnCleanup.
func (a *Application) onStop() {
	a.hooksMu.Lock()
	hook := a.onStopHook
	a.hooksMu.Unlock()
	if hook != nil {
		hook()
	}
}

func (a *Application) onCleanup() {
	a.hooksMu.Lock()
	hook := a.onCleanupHook
	a.hooksMu.Unlock()
	if hook != nil {
		hook()
	}
}

func (a *Application) removePIDFile() {
	if a.pidFilePath == "" {
		return
	}
	_ = os.Remove(a.pidFilePath)
}
