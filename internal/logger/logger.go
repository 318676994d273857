// Package logger sets up structured logging on log/slog. All services
// log JSON to stdout with a service field so multi-process deployments
// can be filtered with jq alone.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Init creates a JSON logger tagged with the service name and installs
// it as the slog default.
func Init(service string, level slog.Level) *slog.Logger {
	return InitWriter(os.Stdout, service, level)
}

// InitWriter is Init with an explicit sink, for tests.
func InitWriter(w io.Writer, service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(handler).With(
		slog.String("service", service),
	)
	slog.SetDefault(logger)
	return logger
}
