package shell

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/corefoundry/substrate/internal/app"
	"github.com/corefoundry/substrate/internal/logging"
)

// defaultCommandTimeout is spec §4.H's "default 5 s" per-command
// execution deadline.
const defaultCommandTimeout = 5 * time.Second

// Config configures a Shell, per spec §4.H's `configure` operation.
type Config struct {
	StdinEnabled   bool
	TCPEnabled     bool
	TCPAddress     string
	CommandTimeout time.Duration
}

// Shell is spec §4.H's operator shell: an in-process command registry
// reachable over stdin and/or a line-oriented TCP listener.
//
// Grounded on the teacher's internal/commands (Registry/Parser/
// Executor split), collapsed into one type here since spec §4.H
// describes a single cohesive component rather than three composed
// ones.
type Shell struct {
	mu      sync.Mutex
	cfg     Config
	log     *logging.Logger
	reg     *registry
	app     app.AppHandle
	running bool

	listener net.Listener
	stdinWG  sync.WaitGroup
	tcpWG    sync.WaitGroup
	stopCh   chan struct{}
}

// New creates a Shell with the built-in commands registered.
func New(log *logging.Logger) *Shell {
	sh := &Shell{
		cfg: Config{CommandTimeout: defaultCommandTimeout},
		log: log,
		reg: newRegistry(),
	}
	registerBuiltins(sh.reg, sh)
	return sh
}

// Configure replaces the shell's configuration; rejected while
// running, per spec §4.H.
func (sh *Shell) Configure(cfg Config) error {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.running {
		return fmt.Errorf("shell: cannot configure while running")
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	sh.cfg = cfg
	return nil
}

// Register inserts or replaces a command, per spec §4.H's `register`.
func (sh *Shell) Register(cmd Command) {
	sh.reg.register(cmd)
}

// Start captures app and starts the stdin/TCP threads configured,
// satisfying internal/app.ShellController.
func (sh *Shell) Start(handle app.AppHandle) error {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.running {
		return fmt.Errorf("shell: already running")
	}
	sh.app = handle
	sh.stopCh = make(chan struct{})

	if sh.cfg.StdinEnabled {
		sh.stdinWG.Add(1)
		go sh.runStdin()
	}
	if sh.cfg.TCPEnabled {
		ln, err := net.Listen("tcp", sh.cfg.TCPAddress)
		if err != nil {
			return fmt.Errorf("shell: listen %s: %w", sh.cfg.TCPAddress, err)
		}
		sh.listener = ln
		sh.tcpWG.Add(1)
		go sh.runTCPAcceptor(ln)
	}
	sh.running = true
	return nil
}

// Stop signals shutdown, closes the TCP acceptor, and joins the TCP
// acceptor and session goroutines (not the stdin reader), satisfying
// internal/app.ShellController.
func (sh *Shell) Stop() {
	sh.mu.Lock()
	if !sh.running {
		sh.mu.Unlock()
		return
	}
	close(sh.stopCh)
	if sh.listener != nil {
		sh.listener.Close()
	}
	sh.running = false
	sh.mu.Unlock()

	sh.tcpWG.Wait()
	// The stdin reader blocks on a blocking read with no portable
	// cancellation; Stop does not join it, matching the teacher's
	// detach-don't-block approach to unclosable stdin readers.
}

// Execute parses and dispatches line with a command-level timeout,
// per spec §4.H.
func (sh *Shell) Execute(line string) Result {
	name, args, flags := parse(line)
	if name == "" {
		return Result{Success: false, Err: fmt.Errorf("empty command")}
	}

	cmd, ok := sh.reg.get(name)
	if !ok {
		return Result{Success: false, Err: fmt.Errorf("unknown command %q", name)}
	}

	sh.mu.Lock()
	handle := sh.app
	timeout := sh.cfg.CommandTimeout
	sh.mu.Unlock()

	if cmd.RequiresApp && handle == nil {
		return Result{Success: false, Err: fmt.Errorf("command %q requires an attached application", name)}
	}

	cctx := &Context{App: handle, Args: args, Flags: flags, Raw: line}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		done <- cmd.Handler(ctx, cctx)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		// The handler keeps running after this returns; spec §4.H
		// says the timeout only affects the returned result.
		return Result{Success: false, Err: fmt.Errorf("command %q timed out", name)}
	}
}
