package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// NewLogger builds a slog.Logger writing to stdout and, when logFile is
// non-empty, to an append-only log file at the same time. The returned
// close function releases the file handle.
func NewLogger(logFile string, debug bool) (*slog.Logger, func(), error) {
	writers := []io.Writer{os.Stdout}
	closeFn := func() {}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closeFn = func() { f.Close() }
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: level})
	return slog.New(handler), closeFn, nil
}
