package core

import (
	"io"
	"log/slog"
)

// EventLogger is the subset of the observability event log that core
// services need. Defining it here avoids importing the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// logEvent writes to the event log when one is configured. Event log
// failures are reported through the logger and otherwise ignored.
func logEvent(events EventLogger, log *slog.Logger, eventType string, data map[string]any) {
	if events == nil {
		return
	}
	if err := events.LogEvent(eventType, data); err != nil {
		log.Warn("event log write failed", "event", eventType, "error", err)
	}
}

// orDiscard returns l, or a logger that drops everything when l is nil.
func orDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}
