// Package logger provides a thin structured logging wrapper used across
// the ledger. Every component gets a named logger so log lines can be
// filtered per subsystem.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus entry pre-tagged with a component name.
type Logger struct {
	*logrus.Entry
}

// NewDefault creates a logger for the named component, writing to stderr
// at the level given by LOG_LEVEL (info when unset or unparseable).
func NewDefault(component string) *Logger {
	return New(component, os.Stderr)
}

// New creates a logger for the named component writing to out.
func New(component string, out io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(out)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL"))); err == nil {
		base.SetLevel(lvl)
	}
	return &Logger{Entry: base.WithField("component", component)}
}

// WithField returns a logger with an extra structured field attached.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{Entry: l.Entry.WithField(key, value)}
}

// WithError returns a logger with the error attached under the "error" key.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Entry: l.Entry.WithError(err)}
}
