package logutil

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-logr/logr"
	"github.com/minus-twelve/warden/redact"
)

// New returns a logr.Logger backed by slog that masks PII fields. level is
// one of debug, info, warn or error; format is text or json.
func New(level, format string, w io.Writer) logr.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return logr.FromSlogHandler(redact.NewHandler(handler, redact.PIIFields))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogAndWrapErr logs an error with context fields and wraps it with a message.
// It returns a wrapped error (with %w) so errors.Is / errors.As still work.
func LogAndWrapErr(logger logr.Logger, msg string, err error, fields ...any) error {
	if err == nil {
		return nil
	}
	logger.Error(err, msg, fields...)
	return fmt.Errorf("%s: %w", msg, err)
}

// DebugAndWrapErr is LogAndWrapErr at debug verbosity.
func DebugAndWrapErr(logger logr.Logger, msg string, err error, fields ...any) error {
	if err == nil {
		return nil
	}
	allFields := append(append(make([]any, 0, len(fields)+2), fields...), "err", err)
	logger.V(1).Info(msg, allFields...)
	return fmt.Errorf("%s: %w", msg, err)
}
