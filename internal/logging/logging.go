// Package logging provides component-scoped loggers for the daemon and CLI.
//
// Every subsystem gets its own entry tagged with a "component" field so the
// daemon log can be filtered per concern (ipc, stream, router, lifecycle).
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	base *logrus.Logger
	once sync.Once
)

// NewLogger returns a logger entry tagged with the given component name.
// All entries share one underlying logger writing to stderr; the level is
// controlled by the HUBWATCH_LOG_LEVEL environment variable (default "info").
func NewLogger(component string) *logrus.Entry {
	once.Do(initBase)
	return base.WithField("component", component)
}

// SetOutput redirects all loggers to w. Used by tests to capture output.
func SetOutput(w io.Writer) {
	once.Do(initBase)
	base.SetOutput(w)
}

// SetLevel overrides the log level for all loggers.
func SetLevel(level logrus.Level) {
	once.Do(initBase)
	base.SetLevel(level)
}

func initBase() {
	base = logrus.New()
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	base.SetLevel(levelFromEnv())
}

func levelFromEnv() logrus.Level {
	raw := strings.TrimSpace(os.Getenv("HUBWATCH_LOG_LEVEL"))
	if raw == "" {
		return logrus.InfoLevel
	}
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
