package logging

import (
	"io"
	"log/slog"
	"os"
)

// SetupJSON sets slog's default logger to JSON on stdout at the given level,
// tagging every record with the service name.
func SetupJSON(level slog.Level, service string) {
	slog.SetDefault(NewJSON(os.Stdout, level, service))
}

func NewJSON(w io.Writer, level slog.Level, service string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})

	return slog.New(h).With("service", service)
}
