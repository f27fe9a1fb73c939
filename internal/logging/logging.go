// Package logging builds the structured loggers used by patchtool.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Key constants for structured log fields.
const (
	KeyPatchID   = "patch_id"
	KeyElement   = "element"
	KeyItem      = "item"
	KeyOperation = "operation"
	KeyDecision  = "decision"
	KeyPhase     = "phase"
	KeyPath      = "path"
	KeyError     = "error"
)

// Formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New returns a logger writing to w in the given format ("text" or "json").
// Unknown formats fall back to text.
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(format, FormatJSON) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ParseLevel maps debug, info, warn or error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ValidFormat reports whether format is accepted by New.
func ValidFormat(format string) bool {
	switch strings.ToLower(format) {
	case "", FormatText, FormatJSON:
		return true
	}
	return false
}

// WithPatch returns a child logger tagged with the patch id and operation.
func WithPatch(logger *slog.Logger, patchID, operation string) *slog.Logger {
	return logger.With(
		slog.String(KeyPatchID, patchID),
		slog.String(KeyOperation, operation),
	)
}
