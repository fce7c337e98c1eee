package cli

import (
	"io"

	"github.com/charmbracelet/log"
)

// newLogger creates a logger writing to w at level, with "HH:MM:SS.ms"
// timestamps. Every component receives this logger.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}
