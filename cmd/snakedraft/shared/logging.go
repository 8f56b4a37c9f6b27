package shared

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// SetupLogger configures a charmbracelet logger writing to stderr. debug
// overrides level; an unknown level falls back to info.
func SetupLogger(debug bool, level string) *log.Logger {
	return SetupLoggerTo(os.Stderr, debug, level)
}

// SetupLoggerTo is SetupLogger with an explicit destination.
func SetupLoggerTo(w io.Writer, debug bool, level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil || level == "" {
		lvl = log.InfoLevel
	}
	if debug {
		lvl = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
}
