// Command substrate is the entrypoint of spec §4.F: it constructs the
// single process-wide Application, wires the operator shell, and runs
// the lifecycle pipeline.
package main

import (
	"os"

	"github.com/corefoundry/substrate/internal/app"
	"github.com/corefoundry/substrate/internal/config"
	"github.com/corefoundry/substrate/internal/shell"
)

func main() {
	a := app.New()
	a.SetShellFactory(func(net config.NetworkSection) app.ShellController {
		sh := shell.New(a.Logging().Named("shell"))
		_ = sh.Configure(shell.Config{
			StdinEnabled: true,
			TCPEnabled:   net.ShellEnabled,
			TCPAddress:   net.ShellAddress,
		})
		return sh
	})

	os.Exit(a.Run(os.Args[1:]))
}
