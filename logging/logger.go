// Package logging provides the process-wide logger. It satisfies framework.Logger, so the
// supervisor, probe runner and injector can write to it directly.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

type Options struct {
	Level      string
	Format     string
	Timestamps bool
}

// Logger is a charmbracelet logger whose Printf logs at debug level: component messages
// are detail that only matters when investigating a run.
type Logger struct {
	*log.Logger
}

func New(w io.Writer, opts Options) (*Logger, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: opts.Timestamps,
		TimeFormat:      time.RFC3339,
	})
	switch strings.ToLower(opts.Format) {
	case "", "text":
		logger.SetFormatter(log.TextFormatter)
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		logger.SetFormatter(log.LogfmtFormatter)
	default:
		return nil, fmt.Errorf("invalid log format %q", opts.Format)
	}
	return &Logger{Logger: logger}, nil
}

func (l *Logger) Printf(message string, args ...interface{}) {
	l.Debugf(message, args...)
}

// Named returns a logger that tags every record with the given component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{Logger: l.With("component", component)}
}
