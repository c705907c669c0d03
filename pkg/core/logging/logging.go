// ============================================================================
// rpcreg - Process-wide RPC Client Registry
// ============================================================================
//
// Package:     logging
// Description: Named component loggers backed by logrus
// License:     MIT
// ============================================================================

package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config holds configuration for the package-level logger.
type Config struct {
	// Level is the minimum severity: debug, info, warn, error (default: info)
	Level string

	// Format selects the output format: "json" or "text" (default: text)
	Format string

	// Output is the destination writer (default: stderr)
	Output io.Writer
}

// DefaultConfig returns the configuration used before Configure is called.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "text",
	}
}

var root = func() *logrus.Logger {
	l := logrus.New()
	apply(l, DefaultConfig())
	return l
}()

func apply(l *logrus.Logger, cfg Config) {
	l.SetLevel(ParseLevel(cfg.Level))

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output != nil {
		l.SetOutput(cfg.Output)
	} else {
		l.SetOutput(os.Stderr)
	}
}

// Configure reconfigures the package-level logger in place, so loggers
// previously returned by New pick up the new settings.
func Configure(cfg Config) {
	apply(root, cfg)
}

// New returns a logger for the named component. All entries carry the
// component as a structured field.
func New(component string) *logrus.Entry {
	return root.WithField("component", component)
}

// ParseLevel maps a level name to a logrus level, defaulting to info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info", "":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
