// Package logging builds the logrus logger shared by the screening components.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cancer-risk-screening/internal/domain"
)

// NewLogger creates a logger from configuration. Output is "stdout", "stderr" or a file path
// opened for appending; the returned close function releases the file and is a no-op otherwise.
func NewLogger(config domain.LoggingConfig) (*logrus.Logger, func() error, error) {
	logger := logrus.New()

	// Set log level
	level := logrus.InfoLevel
	if config.Level != "" {
		parsed, err := logrus.ParseLevel(config.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	// Set formatter
	switch strings.ToLower(config.Format) {
	case "", "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	default:
		return nil, nil, fmt.Errorf("invalid log format: %s", config.Format)
	}

	out, closeFn, err := openOutput(config.Output)
	if err != nil {
		return nil, nil, err
	}
	logger.SetOutput(out)

	return logger, closeFn, nil
}

func openOutput(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(output) {
	case "", "stderr":
		return os.Stderr, noop, nil
	case "stdout":
		return os.Stdout, noop, nil
	}

	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, f.Close, nil
}
