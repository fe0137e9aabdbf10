package util

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
)

func init() {
	l := &pterm.DefaultLogger
	l.ShowTime = true
	l.TimeFormat = "15:04:05.000"
	l.MaxWidth = 1000
}

// logf formats once and hands the line to the matching pterm level.
func logf(level pterm.LogLevel, format string, args []any) {
	msg := fmt.Sprintf(format, args...)
	l := pterm.DefaultLogger
	switch level {
	case pterm.LogLevelDebug:
		l.Debug(msg)
	case pterm.LogLevelWarn:
		l.Warn(msg)
	case pterm.LogLevelError:
		l.Error(msg)
	default:
		l.Info(msg)
	}
}

func LogDebug(format string, args ...any)   { logf(pterm.LogLevelDebug, format, args) }
func LogInfo(format string, args ...any)    { logf(pterm.LogLevelInfo, format, args) }
func LogWarning(format string, args ...any) { logf(pterm.LogLevelWarn, format, args) }
func LogError(format string, args ...any)   { logf(pterm.LogLevelError, format, args) }

// LogSuccess marks the end of a match or a connection step.
func LogSuccess(format string, args ...any) {
	logf(pterm.LogLevelInfo, "✓ "+format, args)
}

// EnableDebug lowers the logger threshold for the --debug flag.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}

// RedirectLogs points the logger at w. While the court is drawn it is the
// renderer's log tail; afterwards stdout again.
func RedirectLogs(w io.Writer) {
	pterm.DefaultLogger.Writer = w
}
