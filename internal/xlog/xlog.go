// Package xlog is a minimal leveled logger with colored level prefixes,
// standing in for the logging configuration the surrounding CLI owns. The
// library only logs; it never decides verbosity or output destination
// beyond the package-level Writer, which the embedding application may
// replace.
package xlog

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
)

// Writer is where log lines are sent. Defaults to stderr; an embedding CLI
// may redirect it before wiring its own logging configuration on top.
var Writer io.Writer = os.Stderr

// Level is a single leveled logger. The zero value is unusable; use the
// package-level D, I, W, E, F instances.
type Level struct {
	prefix string
	color  *color.Color
}

func (l Level) F(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(Writer, "%s %s\n", l.color.Sprint(ts+" "+l.prefix), msg)
}

var (
	// D logs debug-level diagnostics: decode fallbacks, retries, things an
	// operator doesn't need to see unless they're troubleshooting.
	D = Level{prefix: "DBG", color: color.New(color.FgHiBlack)}
	// I logs informational lifecycle events: connect, disconnect, subscribe.
	I = Level{prefix: "INF", color: color.New(color.FgCyan)}
	// W logs recoverable problems: a relay dropped a frame, a reconnect
	// attempt failed but more are budgeted.
	W = Level{prefix: "WRN", color: color.New(color.FgYellow)}
	// E logs errors that the caller will see returned to them too; logged
	// here as well because relay I/O errors are otherwise only observable
	// via connection-status polling (spec: errors are absorbed into relay
	// state, not propagated synchronously).
	E = Level{prefix: "ERR", color: color.New(color.FgRed)}
	// F logs and then the caller is expected to terminate; nothing in this
	// library calls os.Exit itself, so F behaves exactly like E — it exists
	// so call sites can distinguish "this is fatal to the caller" in the
	// text of their log output.
	F = Level{prefix: "FTL", color: color.New(color.FgRed, color.Bold)}
)
