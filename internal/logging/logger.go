// Package logging provides the leveled, component-aware logger used
// throughout substrate, grounded on the teacher's internal/logging.Logger
// but extended with component filtering and colorized output.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fatih/color"
)

var levelColor = map[Level]*color.Color{
	Trace:    color.New(color.FgHiBlack),
	Debug:    color.New(color.FgCyan),
	Info:     color.New(color.FgGreen),
	Warn:     color.New(color.FgYellow),
	Error:    color.New(color.FgRed),
	Critical: color.New(color.FgHiRed, color.Bold),
}

// Logger is a named, leveled logger that consults a shared ComponentFilter
// before every write. Loggers are cheap to create; many components each
// hold their own named *Logger backed by the same Manager.
type Logger struct {
	name    string
	level   *atomic.Int32
	out     *log.Logger
	color   bool
	filter  *ComponentFilter
}

// Manager owns the process-wide log level and component filter, and hands
// out named Loggers that share them. There is exactly one Manager per
// Application (see internal/app), avoiding the teacher's package-level
// singleton in favor of explicit construction per spec §9.
type Manager struct {
	mu     sync.Mutex
	level  atomic.Int32
	filter *ComponentFilter
	out    io.Writer
	color  bool
}

// NewManager builds a Manager writing to out (os.Stdout if nil).
func NewManager(level Level, out io.Writer, colorize bool) *Manager {
	if out == nil {
		out = os.Stdout
	}
	m := &Manager{
		filter: NewComponentFilter(false, nil, nil, ""),
		out:    out,
		color:  colorize,
	}
	m.level.Store(int32(level))
	return m
}

// SetLevel changes the process-wide minimum level.
func (m *Manager) SetLevel(l Level) { m.level.Store(int32(l)) }

// Level returns the current process-wide minimum level.
func (m *Manager) Level() Level { return Level(m.level.Load()) }

// ConfigureComponents reconfigures component-scoped filtering, applied on
// load and on SIGUSR2 reload.
func (m *Manager) ConfigureComponents(enabled bool, allow, deny []string, pattern string) {
	m.filter.Reconfigure(enabled, allow, deny, pattern)
}

// Named returns a Logger scoped to component name, sharing this Manager's
// level and filter.
func (m *Manager) Named(name string) *Logger {
	return &Logger{
		name:   name,
		level:  &m.level,
		out:    log.New(m.out, "", log.LstdFlags|log.Lmicroseconds),
		color:  m.color,
		filter: m.filter,
	}
}

// DefaultManager is used by packages that need a logger but are not wired
// to an Application (mostly tests and standalone CLI helpers).
func DefaultManager() *Manager { return NewManager(Info, os.Stdout, true) }

func (l *Logger) enabled(lvl Level) bool {
	if Level(l.level.Load()) > lvl {
		return false
	}
	return l.filter.Allows(l.name)
}

func (l *Logger) emit(lvl Level, format string, args ...interface{}) {
	if !l.enabled(lvl) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	tag := fmt.Sprintf("[%-8s]", lvl.String())
	if l.color {
		if c, ok := levelColor[lvl]; ok {
			tag = c.Sprint(tag)
		}
	}
	if l.name != "" {
		l.out.Printf("%s [%s] %s", tag, l.name, msg)
	} else {
		l.out.Printf("%s %s", tag, msg)
	}
}

func (l *Logger) Trace(format string, args ...interface{})    { l.emit(Trace, format, args...) }
func (l *Logger) Debug(format string, args ...interface{})    { l.emit(Debug, format, args...) }
func (l *Logger) Info(format string, args ...interface{})     { l.emit(Info, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})     { l.emit(Warn, format, args...) }
func (l *Logger) Error(format string, args ...interface{})    { l.emit(Error, format, args...) }
func (l *Logger) Critical(format string, args ...interface{}) { l.emit(Critical, format, args...) }

// Name returns the component name this logger is scoped to.
func (l *Logger) Name() string { return l.name }

// With returns a child logger under "name.child", used when a component
// wants per-subsystem granularity (e.g. "table.index").
func (l *Logger) With(child string) *Logger {
	name := child
	if l.name != "" {
		name = l.name + "." + child
	}
	return &Logger{name: name, level: l.level, out: l.out, color: l.color, filter: l.filter}
}
