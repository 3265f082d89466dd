package logger

import (
	"fmt"
	"log/slog"
	"os"
)

// NewService returns the logger used by long-running servers. Records go to
// stderr, through the charm handler when pretty is set and as JSON otherwise.
// When logFile is non-empty JSON records are also appended to it; the returned
// close func releases that file.
func NewService(debug, pretty bool, logFile string) (*slog.Logger, func() error, error) {
	console := New(
		WithDebug(debug),
		WithPretty(pretty),
		WithJSON(!pretty),
		WithWriter(os.Stderr),
	)
	if logFile == "" {
		return console, func() error { return nil }, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := New(WithDebug(debug), WithJSON(true), WithWriter(f))
	return Multi(console, file), f.Close, nil
}
