package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

var logFormats = []string{"json", "text"}

// newLogger builds a logrus.Logger the way the teacher's newLogger builds
// an slog.Logger (cmd/dex/logger.go): a level and a text/json format, both
// operator-configurable, with text as the default a bare `authd serve`
// without a logger section still gets.
func newLogger(level, format string) (*logrus.Logger, error) {
	logger := logrus.New()

	switch strings.ToLower(format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("log format is not one of the supported values (%s): %s", strings.Join(logFormats, ", "), format)
	}

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)

	return logger, nil
}
