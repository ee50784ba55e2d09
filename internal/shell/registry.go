package shell

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// registry holds the shell's commands keyed by name, following the
// teacher's internal/commands.Registry shape minus aliases (spec §4.H
// names no alias concept).
type registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

func newRegistry() *registry {
	return &registry{commands: make(map[string]Command)}
}

// register inserts or replaces the command under name, per spec §4.H's
// "inserts or replaces" wording.
func (r *registry) register(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[strings.ToLower(cmd.Name)] = cmd
}

func (r *registry) get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[strings.ToLower(name)]
	return cmd, ok
}

func (r *registry) list() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *registry) helpAll() string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, cmd := range r.list() {
		fmt.Fprintf(&b, "  %-16s %s\n", cmd.Name, cmd.Description)
	}
	return b.String()
}

func (r *registry) help(name string) (string, bool) {
	cmd, ok := r.get(name)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s - %s\nusage: %s", cmd.Name, cmd.Description, cmd.Usage), true
}
