package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Event levels.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Event is one line of the event log.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Type    string         `json:"type"` // e.g. "task.updated", "history.append_failed"
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// TaskID returns the task_id carried in Data, or 0. Numbers decoded from
// JSON arrive as float64.
func (e Event) TaskID() int64 {
	return int64Field(e.Data, "task_id")
}

// EventFilter selects events on Read. Zero fields match everything.
type EventFilter struct {
	Since  *time.Time
	Until  *time.Time
	Type   string
	Level  string
	TaskID int64
}

// EventLog appends events and reads them back.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

type jsonlEventLog struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewJSONLEventLog opens (or creates) an append-only JSONL log at path.
func NewJSONLEventLog(path string) (EventLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{path: path, file: f}, nil
}

func (l *jsonlEventLog) Write(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // skip malformed lines
		}
		if filter.matches(event) {
			events = append(events, event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning event log: %w", err)
	}
	return events, nil
}

func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

func (f EventFilter) matches(event Event) bool {
	if f.Since != nil && event.Time.Before(*f.Since) {
		return false
	}
	if f.Until != nil && event.Time.After(*f.Until) {
		return false
	}
	if f.Type != "" && event.Type != f.Type {
		return false
	}
	if f.Level != "" && event.Level != f.Level {
		return false
	}
	if f.TaskID != 0 && event.TaskID() != f.TaskID {
		return false
	}
	return true
}

// messages holds the human-readable text written for known event types.
var messages = map[string]string{
	"task.created":          "task created",
	"task.updated":          "task updated",
	"task.status_changed":   "task status changed",
	"task.noop":             "mutation changed nothing",
	"task.assigned":         "task assigned",
	"history.appended":      "history entry appended",
	"history.append_failed": "history entry could not be appended",
	"member.added":          "member added",
	"member.role_changed":   "member role changed",
	"member.removed":        "member removed",
	"project.created":       "project created",
	"project.deleted":       "project deleted",
	"notification.failed":   "assignment notification failed",
}

// Recorder writes typed events to an EventLog. It satisfies the event
// logger interface the core services consume.
type Recorder struct {
	log EventLog
	now func() time.Time
}

// NewRecorder returns a Recorder backed by log.
func NewRecorder(log EventLog) *Recorder {
	return &Recorder{log: log, now: func() time.Time { return time.Now().UTC() }}
}

// LogEvent records an event of the given type. Failed audit appends are
// written at ERROR and failed notifications at WARN.
func (r *Recorder) LogEvent(eventType string, data map[string]any) error {
	msg, ok := messages[eventType]
	if !ok {
		msg = eventType
	}
	return r.log.Write(Event{
		Time:    r.now(),
		Level:   levelFor(eventType),
		Type:    eventType,
		Message: msg,
		Data:    data,
	})
}

func levelFor(eventType string) string {
	switch eventType {
	case "history.append_failed":
		return LevelError
	case "notification.failed":
		return LevelWarn
	default:
		return LevelInfo
	}
}

func int64Field(data map[string]any, key string) int64 {
	switch v := data[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}
