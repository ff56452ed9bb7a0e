package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds the service logger.  Output always goes to stdout and, when
// file is non-empty, is also appended to that file.  The returned closer
// releases the file and is never nil.
func New(level, file string) (*slog.Logger, io.Closer, error) {
	var writer io.Writer = os.Stdout
	var closer io.Closer = io.NopCloser(nil)
	if file != "" {
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		writer = io.MultiWriter(os.Stdout, f)
		closer = f
	}
	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(handler), closer, nil
}

// ParseLevel maps LOG_LEVEL values to slog levels, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
