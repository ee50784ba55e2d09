package shell

import (
	"bufio"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
)

// runTCPAcceptor is spec §4.H's "optional TCP acceptor binding to a
// configured address/port when enabled": accepts connections until
// stopCh closes or the listener itself is closed by Stop.
func (sh *Shell) runTCPAcceptor(ln net.Listener) {
	defer sh.tcpWG.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-sh.stopCh:
				return
			default:
				if sh.log != nil {
					sh.log.Warn("shell: accept failed: %v", err)
				}
				return
			}
		}
		sh.tcpWG.Add(1)
		go sh.runSession(conn)
	}
}

// sessionID is spec's ADD note that ShellSession.id is a uuid.UUID,
// distinct from the monotonic row/message/task counters.
type sessionID = uuid.UUID

// runSession implements spec §4.H's TCP session protocol: banner, then
// prompt+input+response loop; `exit`/`quit` closes the connection.
func (sh *Shell) runSession(conn net.Conn) {
	defer sh.tcpWG.Done()
	defer conn.Close()

	id := sessionID(uuid.New())
	fmt.Fprintf(conn, "substrate shell session %s\n", id)

	reader := bufio.NewReader(conn)
	for {
		fmt.Fprint(conn, "> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		res := sh.Execute(line)
		if res.Output != "" {
			fmt.Fprintln(conn, res.Output)
		}
		if res.Err != nil {
			fmt.Fprintln(conn, "error:", res.Err)
		}
		if isExitCommand(line) {
			return
		}
	}
}
