package observability

import (
	"fmt"
	"time"
)

// Metrics is an aggregate over the events since a point in time.
type Metrics struct {
	TasksCreated         int            `json:"tasks_created"`
	TasksUpdated         int            `json:"tasks_updated"`
	StatusChanges        int            `json:"status_changes"`
	StatusTransitions    map[string]int `json:"status_transitions"`
	NoopMutations        int            `json:"noop_mutations"`
	FieldChanges         map[string]int `json:"field_changes"`
	HistoryAppended      int            `json:"history_appended"`
	AuditFailures        int            `json:"audit_failures"`
	Assignments          int            `json:"assignments"`
	NotificationFailures int            `json:"notification_failures"`
	ProjectsCreated      int            `json:"projects_created"`
	ProjectsDeleted      int            `json:"projects_deleted"`
	MembershipChanges    int            `json:"membership_changes"`
	EventCount           int            `json:"event_count"`
	OldestEvent          *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent          *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator returns a MetricsCalculator reading from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		StatusTransitions: make(map[string]int),
		FieldChanges:      make(map[string]int),
		EventCount:        len(events),
	}

	for _, event := range events {
		t := event.Time
		if m.OldestEvent == nil || t.Before(*m.OldestEvent) {
			m.OldestEvent = &t
		}
		if m.NewestEvent == nil || t.After(*m.NewestEvent) {
			m.NewestEvent = &t
		}

		switch event.Type {
		case "task.created":
			m.TasksCreated++
		case "task.updated":
			m.TasksUpdated++
			if fields, ok := event.Data["fields"].([]any); ok {
				for _, f := range fields {
					if name, ok := f.(string); ok {
						m.FieldChanges[name]++
					}
				}
			}
		case "task.status_changed":
			m.StatusChanges++
			from, to := stringField(event.Data, "old_status"), stringField(event.Data, "new_status")
			if from != "" && to != "" {
				m.StatusTransitions[from+" -> "+to]++
			}
		case "task.noop":
			m.NoopMutations++
		case "history.appended":
			m.HistoryAppended++
		case "history.append_failed":
			m.AuditFailures++
		case "task.assigned":
			m.Assignments++
		case "notification.failed":
			m.NotificationFailures++
		case "project.created":
			m.ProjectsCreated++
		case "project.deleted":
			m.ProjectsDeleted++
		case "member.added", "member.role_changed", "member.removed":
			m.MembershipChanges++
		}
	}

	return m, nil
}
