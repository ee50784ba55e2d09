// Package shell implements the operator shell of spec §4.H: a
// command registry reachable over stdin and an optional TCP listener,
// dispatching line-oriented commands against a running application.
//
// Grounded directly on the teacher's internal/commands (Registry,
// Parser, Executor, CommandContext/CommandResult), the closest thing
// in the teacher corpus to a command dispatch table, generalized from
// slash-command chat dispatch to spec §4.H's `--flag`/positional
// grammar, with no leading-slash convention and no aliases (the spec
// names neither).
package shell

import (
	"context"

	"github.com/corefoundry/substrate/internal/app"
)

// Context carries a parsed command's resolved arguments to its
// Handler, plus the application it should act on (nil when the
// command declared RequiresApp=false and none is attached yet).
type Context struct {
	App   app.AppHandle
	Args  []string
	Flags map[string]string
	Raw   string
}

// Result is the {success, output, error} triple spec §4.H's execute
// operation returns.
type Result struct {
	Success bool
	Output  string
	Err     error
}

// Handler implements one command's behavior.
type Handler func(ctx context.Context, cctx *Context) Result

// Command is one entry in the shell's registry.
type Command struct {
	Name        string
	Description string
	Usage       string
	Handler     Handler
	RequiresApp bool
}
