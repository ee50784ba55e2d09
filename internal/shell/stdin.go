package shell

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// runStdin is spec §4.H's "stdin reader running its own thread when
// enabled": reads lines from os.Stdin, executes each, and prints the
// result, until stdin closes or a command signals exit.
func (sh *Shell) runStdin() {
	defer sh.stdinWG.Done()
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("substrate shell ready")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		res := sh.Execute(line)
		printResult(os.Stdout, res)
		if isExitCommand(line) {
			return
		}
	}
}

func printResult(w io.Writer, res Result) {
	if res.Output != "" {
		fmt.Fprintln(w, res.Output)
	}
	if res.Err != nil {
		fmt.Fprintln(w, "error:", res.Err)
	}
}

func isExitCommand(line string) bool {
	name, _, _ := parse(line)
	return name == "exit" || name == "quit"
}
