package app

import (
	"os"
	"syscall"

	"github.com/pkg/errors"

	"github.com/corefoundry/substrate/internal/config"
	"github.com/corefoundry/substrate/internal/logging"
)

// defaultSignals is the POSIX signal set of spec §6.2.
var defaultSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2}

// Run executes the full lifecycle pipeline of spec §4.F: parse args,
// load config, daemonize if the config or the flags request it, apply
// log-level overrides, initialize, start, wait, stop, returning a
// process exit code.
func (a *Application) Run(argv []string) int {
	opts, err := parseArgs(argv)
	if err != nil {
		return 1
	}
	if opts.help {
		printHelp()
		return 0
	}
	if opts.version {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		a.log.Critical("configuration error: %v", err)
		return 1
	}
	a.cfg = cfg
	snap := cfg.Snapshot()

	daemonizeRequested := snap.App.Daemonize || opts.daemon
	if opts.noDaemon {
		daemonizeRequested = false
	}

	pidFile := snap.App.PIDFile
	if opts.pidFile != "" {
		pidFile = opts.pidFile
	}

	if daemonizeRequested {
		pid, err := daemonize(daemonizeOptions{
			pidFile: pidFile,
			workDir: opts.workDir,
			umask:   0o022,
		})
		if err != nil {
			a.log.Critical("daemonize failed: %v", err)
			a.state.set(Failed)
			return 1
		}
		a.daemonized = true
		a.pidFilePath = pidFile
		_ = pid
	}

	level := a.logMgr.Level()
	if lvl, explicit := parsedLogLevel(opts); explicit {
		level = lvl
	} else if snap.Logging.Level != "" {
		level = logging.ParseLevel(snap.Logging.Level)
	}
	a.logMgr.SetLevel(level)
	a.logMgr.ConfigureComponents(len(snap.Logging.Components) > 0, snap.Logging.Components, nil, "")

	a.armSignals()

	if err := a.Initialize(); err != nil {
		a.log.Critical("initialize failed: %v", err)
		a.Stop()
		return 1
	}

	workerThreads := snap.App.WorkerThreads
	if workerThreads < 1 {
		workerThreads = 1
	}
	if err := a.Start(workerThreads, 0); err != nil {
		a.log.Critical("start failed: %v", err)
		a.Stop()
		return 1
	}

	a.cliMu.Lock()
	factory := a.shellFactory
	a.cliMu.Unlock()
	if factory != nil {
		if err := a.EnableCLI(factory(snap.Network)); err != nil {
			a.log.Error("enable cli failed: %v", err)
		}
	}

	a.Wait()
	a.Stop()

	if a.State() == Failed {
		return 1
	}
	return 0
}

// armSignals wires the default POSIX handling of spec §4.F/§6.2 onto
// the main reactor: user handlers (if any) fire first, then the
// built-in defaults. When daemonizing, Run calls this after
// daemonize() has already re-exec'd into the detached child, so the
// signal wait is armed exactly once, in the process that actually
// lives on.
func (a *Application) armSignals() {
	ch := a.mainLoop.Signals(defaultSignals...)
	go func() {
		for sig := range ch {
			a.handleSignal(sig)
		}
	}()
}

func (a *Application) handleSignal(sig os.Signal) {
	a.signalMu.Lock()
	handler := a.signalHandlers[sig]
	a.signalMu.Unlock()
	if handler != nil {
		handler()
	}

	a.onSignal(sig)

	switch sig {
	case syscall.SIGINT, syscall.SIGTERM:
		a.Shutdown()
	case syscall.SIGUSR1:
		a.mainLoop.Post(func() {
			if err := a.registry.HealthAll(); err != nil {
				a.log.Warn("signal health check: %v", err)
			} else {
				a.log.Info("signal health check: all components healthy")
			}
		})
	case syscall.SIGUSR2:
		a.mainLoop.Post(func() {
			if err := a.reloadConfig(); err != nil {
				a.log.Error("config reload failed: %v", err)
			}
		})
	}
}

func (a *Application) reloadConfig() error {
	if a.cfg == nil {
		return nil
	}
	if err := a.cfg.Reload(); err != nil {
		return errors.Wrap(err, "app: reload config")
	}
	snap := a.cfg.Snapshot()
	if snap.Logging.Level != "" {
		a.logMgr.SetLevel(logging.ParseLevel(snap.Logging.Level))
	}
	a.logMgr.ConfigureComponents(len(snap.Logging.Components) > 0, snap.Logging.Components, nil, "")
	a.log.Info("configuration and logger reloaded")
	return nil
}
