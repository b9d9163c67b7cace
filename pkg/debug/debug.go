// Package debug provides conditional debug logging for bugwork.
//
// Debug logging is enabled by setting the BUGWORK_DEBUG environment variable
// or passing --debug:
//
//	BUGWORK_DEBUG=1 bugwork --log-file /tmp/bugwork.log
//
// Messages go to the standard logger, which the CLI points at the log file
// while the TUI owns the terminal. When disabled, every function is a no-op.
package debug

import (
	"io"
	"log"
	"os"
	"sync/atomic"
	"time"
)

var (
	enabled atomic.Bool
	logger  atomic.Pointer[log.Logger]
)

func init() {
	logger.Store(log.New(log.Writer(), "[BUGWORK_DEBUG] ", log.Ltime|log.Lmicroseconds))
	if os.Getenv("BUGWORK_DEBUG") != "" {
		enabled.Store(true)
	}
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	enabled.Store(e)
}

// SetOutput redirects debug output, typically to the file opened by
// tea.LogToFile.
func SetOutput(w io.Writer) {
	logger.Store(log.New(w, "[BUGWORK_DEBUG] ", log.Ltime|log.Lmicroseconds))
}

// Log writes a debug message if debug logging is enabled.
func Log(format string, args ...any) {
	if !enabled.Load() {
		return
	}
	logger.Load().Printf(format, args...)
}

// LogTiming writes a timing message if debug logging is enabled.
func LogTiming(name string, d time.Duration) {
	if !enabled.Load() {
		return
	}
	logger.Load().Printf("%s took %v", name, d)
}

// Trace logs entry and exit of a block with timing:
//
//	defer debug.Trace("navigate /bug/42")()
func Trace(name string) func() {
	if !enabled.Load() {
		return func() {}
	}
	l := logger.Load()
	l.Printf("-> %s", name)
	start := time.Now()
	return func() {
		l.Printf("<- %s (%v)", name, time.Since(start))
	}
}
