package shared

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// SetupLogger returns a logger writing to stderr at level, falling back to
// info for unknown levels. debug forces debug level.
func SetupLogger(level string, debug bool) *log.Logger {
	return NewLogger(os.Stderr, level, debug)
}

// NewLogger builds a logger writing to w
func NewLogger(w io.Writer, level string, debug bool) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	if debug {
		lvl = log.DebugLevel
	}

	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
}
