package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corefoundry/substrate/internal/logging"
)

// startupOptions captures the command-line arguments of spec §6.1.
type startupOptions struct {
	help       bool
	version    bool
	daemon     bool
	noDaemon   bool
	configPath string
	logLevel   string
	logFile    string
	pidFile    string
	workDir    string
	user       string
	group      string
}

// parseArgs builds the root cobra.Command for spec §6.1's flag table
// and parses argv (excluding argv[0]) into a startupOptions. Unknown
// flags or a missing required flag argument produce pflag's standard
// error, printed to stderr by cobra, with parseArgs returning a
// non-nil error so Run can translate it into a non-zero exit code.
func parseArgs(argv []string) (*startupOptions, error) {
	opts := &startupOptions{}
	var runErr error

	cmd := &cobra.Command{
		Use:           "substrate",
		Short:         "substrate application core",
		SilenceUsage:  false,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.help, "help", "h", false, "print help; exit 0")
	flags.BoolVarP(&opts.version, "version", "v", false, "print version; exit 0")
	flags.BoolVarP(&opts.daemon, "daemon", "d", false, "enable daemonize")
	flags.BoolVarP(&opts.noDaemon, "no-daemon", "f", false, "force foreground; overrides config")
	flags.StringVarP(&opts.configPath, "config", "c", "", "override config file path")
	flags.StringVarP(&opts.logLevel, "log-level", "l", "", "one of trace/debug/info/warn/error/critical")
	flags.StringVar(&opts.logFile, "log-file", "", "override log file path")
	flags.StringVar(&opts.pidFile, "pid-file", "", "daemon PID file path")
	flags.StringVar(&opts.workDir, "work-dir", "", "daemon working directory")
	flags.StringVar(&opts.user, "user", "", "daemon user name")
	flags.StringVar(&opts.group, "group", "", "daemon group name")

	cmd.SetArgs(argv)
	runErr = cmd.Execute()
	if runErr != nil {
		return nil, runErr
	}
	return opts, nil
}

func parsedLogLevel(opts *startupOptions) (logging.Level, bool) {
	if opts.logLevel == "" {
		return logging.Info, false
	}
	return logging.ParseLevel(opts.logLevel), true
}

// printHelp and printVersion match the "print; exit 0" behavior spec
// §6.1 requires for -h/--help and -v/--version, ahead of any
// config/daemonize work.
func printHelp() {
	fmt.Fprintln(os.Stdout, "substrate - application core and table engine")
	fmt.Fprintln(os.Stdout, "")
	fmt.Fprintln(os.Stdout, "Flags:")
	fmt.Fprintln(os.Stdout, "  -h, --help              print help; exit 0")
	fmt.Fprintln(os.Stdout, "  -v, --version           print version; exit 0")
	fmt.Fprintln(os.Stdout, "  -d, --daemon            enable daemonize")
	fmt.Fprintln(os.Stdout, "  -f, --no-daemon         force foreground; overrides config")
	fmt.Fprintln(os.Stdout, "  -c, --config FILE       override config file path")
	fmt.Fprintln(os.Stdout, "  -l, --log-level LEVEL   trace/debug/info/warn/error/critical")
	fmt.Fprintln(os.Stdout, "      --log-file FILE     override log file path")
	fmt.Fprintln(os.Stdout, "      --pid-file FILE     daemon PID file path")
	fmt.Fprintln(os.Stdout, "      --work-dir DIR      daemon working directory")
	fmt.Fprintln(os.Stdout, "      --user USER         daemon user name")
	fmt.Fprintln(os.Stdout, "      --group GROUP       daemon group name")
}

func printVersion() {
	fmt.Fprintf(os.Stdout, "substrate %s\n", Version)
}
