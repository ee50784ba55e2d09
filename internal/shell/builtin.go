package shell

import (
	"context"
	"fmt"
	"strings"

	"github.com/corefoundry/substrate/internal/logging"
)

// registerBuiltins installs spec §4.H's built-in commands. Every
// command requires an attached application except help, log-level,
// and exit, per the spec's own exception list.
func registerBuiltins(reg *registry, sh *Shell) {
	reg.register(Command{
		Name:        "help",
		Description: "list all commands or show one command's usage",
		Usage:       "help [cmd]",
		RequiresApp: false,
		Handler: func(ctx context.Context, c *Context) Result {
			if len(c.Args) == 0 {
				return Result{Success: true, Output: reg.helpAll()}
			}
			text, ok := reg.help(c.Args[0])
			if !ok {
				return Result{Success: false, Err: fmt.Errorf("unknown command %q", c.Args[0])}
			}
			return Result{Success: true, Output: text}
		},
	})

	reg.register(Command{
		Name:        "status",
		Description: "application state and managed-thread count (worker count is not shown)",
		Usage:       "status",
		RequiresApp: true,
		Handler: func(ctx context.Context, c *Context) Result {
			out := fmt.Sprintf("state: %s\nmanaged threads: %d", c.App.State(), c.App.ManagedThreadCount())
			return Result{Success: true, Output: out}
		},
	})

	reg.register(Command{
		Name:        "threads",
		Description: "managed threads summary",
		Usage:       "threads [--detail]",
		RequiresApp: true,
		Handler: func(ctx context.Context, c *Context) Result {
			names := c.App.ThreadNames()
			if len(names) == 0 {
				return Result{Success: true, Output: "no managed threads"}
			}
			var b strings.Builder
			detail := c.Flags["detail"] == "true"
			for _, name := range names {
				th, ok := c.App.GetManagedThread(name)
				if !ok {
					continue
				}
				if detail {
					fmt.Fprintf(&b, "%s state=%v pending=%d\n", name, th.State(), th.PendingMessageCount())
				} else {
					fmt.Fprintf(&b, "%s\n", name)
				}
			}
			return Result{Success: true, Output: strings.TrimRight(b.String(), "\n")}
		},
	})

	reg.register(Command{
		Name:        "config",
		Description: "loaded configuration overview",
		Usage:       "config [--section name]",
		RequiresApp: true,
		Handler: func(ctx context.Context, c *Context) Result {
			snap := c.App.ConfigStore().Snapshot()
			section := c.Flags["section"]
			switch section {
			case "app":
				return Result{Success: true, Output: fmt.Sprintf("%+v", snap.App)}
			case "logging":
				return Result{Success: true, Output: fmt.Sprintf("%+v", snap.Logging)}
			case "network":
				return Result{Success: true, Output: fmt.Sprintf("%+v", snap.Network)}
			case "":
				return Result{Success: true, Output: fmt.Sprintf("app: %+v\nlogging: %+v\nnetwork: %+v", snap.App, snap.Logging, snap.Network)}
			default:
				return Result{Success: false, Err: fmt.Errorf("unknown config section %q", section)}
			}
		},
	})

	reg.register(Command{
		Name:        "health",
		Description: "current aggregate health",
		Usage:       "health",
		RequiresApp: true,
		Handler: func(ctx context.Context, c *Context) Result {
			if err := c.App.Registry().HealthAll(); err != nil {
				return Result{Success: false, Output: "unhealthy", Err: err}
			}
			return Result{Success: true, Output: "healthy"}
		},
	})

	reg.register(Command{
		Name:        "messaging",
		Description: "bus statistics",
		Usage:       "messaging [--detail]",
		RequiresApp: true,
		Handler: func(ctx context.Context, c *Context) Result {
			names := c.App.Bus().RegisteredThreads()
			if c.Flags["detail"] != "true" {
				return Result{Success: true, Output: fmt.Sprintf("registered mailboxes: %d", len(names))}
			}
			var b strings.Builder
			for _, name := range names {
				th, ok := c.App.GetManagedThread(name)
				if !ok {
					fmt.Fprintf(&b, "%s pending=?\n", name)
					continue
				}
				fmt.Fprintf(&b, "%s pending=%d\n", name, th.PendingMessageCount())
			}
			return Result{Success: true, Output: strings.TrimRight(b.String(), "\n")}
		},
	})

	reg.register(Command{
		Name:        "log-level",
		Description: "read or set the process log level",
		Usage:       "log-level [level]",
		RequiresApp: false,
		Handler: func(ctx context.Context, c *Context) Result {
			if sh.app == nil {
				return Result{Success: false, Err: fmt.Errorf("log-level requires an attached application")}
			}
			mgr := sh.app.Logging()
			if len(c.Args) == 0 {
				return Result{Success: true, Output: mgr.Level().String()}
			}
			mgr.SetLevel(logging.ParseLevel(c.Args[0]))
			return Result{Success: true, Output: "log level set to " + mgr.Level().String()}
		},
	})

	reg.register(Command{
		Name:        "shutdown",
		Description: "initiate graceful shutdown",
		Usage:       "shutdown",
		RequiresApp: true,
		Handler: func(ctx context.Context, c *Context) Result {
			c.App.Shutdown()
			return Result{Success: true, Output: "shutdown requested"}
		},
	})

	reg.register(Command{
		Name:        "force-shutdown",
		Description: "immediate shutdown",
		Usage:       "force-shutdown",
		RequiresApp: true,
		Handler: func(ctx context.Context, c *Context) Result {
			c.App.ForceShutdown()
			return Result{Success: true, Output: "forced shutdown requested"}
		},
	})

	reg.register(Command{
		Name:        "exit",
		Description: "detach this session without affecting the application",
		Usage:       "exit",
		RequiresApp: false,
		Handler: func(ctx context.Context, c *Context) Result {
			return Result{Success: true, Output: "bye"}
		},
	})
}
