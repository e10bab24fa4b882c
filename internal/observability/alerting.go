package observability

import (
	"fmt"
	"sort"
	"time"
)

// AlertSeverity is the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert is a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts fire. Failure counts are measured
// over Window; a count strictly greater than its maximum raises an alert.
type AlertThresholds struct {
	MaxAuditFailures        int           `yaml:"max_audit_failures" json:"max_audit_failures"`
	MaxNotificationFailures int           `yaml:"max_notification_failures" json:"max_notification_failures"`
	StaleDays               int           `yaml:"stale_days" json:"stale_days"`
	Window                  time.Duration `yaml:"window" json:"window"`
}

// DefaultAlertThresholds returns the thresholds used when none are configured.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		MaxAuditFailures:        0,
		MaxNotificationFailures: 3,
		StaleDays:               7,
		Window:                  24 * time.Hour,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine returns an AlertEngine over eventLog.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now()
	var alerts []Alert

	audit, err := ae.checkAuditFailures(now)
	if err != nil {
		return nil, fmt.Errorf("checking audit failures: %w", err)
	}
	alerts = append(alerts, audit...)

	notify, err := ae.checkNotificationFailures(now)
	if err != nil {
		return nil, fmt.Errorf("checking notification failures: %w", err)
	}
	alerts = append(alerts, notify...)

	stale, err := ae.checkStaleTasks(now)
	if err != nil {
		return nil, fmt.Errorf("checking stale tasks: %w", err)
	}
	alerts = append(alerts, stale...)

	return alerts, nil
}

func (ae *alertEngine) since(now time.Time) *time.Time {
	if ae.thresholds.Window <= 0 {
		return nil
	}
	t := now.Add(-ae.thresholds.Window)
	return &t
}

// checkAuditFailures raises one alert when mutations were saved without
// their history entry more often than allowed.
func (ae *alertEngine) checkAuditFailures(now time.Time) ([]Alert, error) {
	events, err := ae.eventLog.Read(EventFilter{Type: "history.append_failed", Since: ae.since(now)})
	if err != nil {
		return nil, err
	}
	if len(events) <= ae.thresholds.MaxAuditFailures {
		return nil, nil
	}

	tasks := make(map[int64]bool)
	for _, e := range events {
		if id := e.TaskID(); id != 0 {
			tasks[id] = true
		}
	}
	return []Alert{{
		ID:          "audit-failures",
		Condition:   "audit_trail_incomplete",
		Severity:    SeverityHigh,
		Message:     fmt.Sprintf("%d history appends failed across %d tasks (allowed %d); tasks: %v", len(events), len(tasks), ae.thresholds.MaxAuditFailures, sortedIDs(tasks)),
		TriggeredAt: now,
	}}, nil
}

func (ae *alertEngine) checkNotificationFailures(now time.Time) ([]Alert, error) {
	events, err := ae.eventLog.Read(EventFilter{Type: "notification.failed", Since: ae.since(now)})
	if err != nil {
		return nil, err
	}
	if len(events) <= ae.thresholds.MaxNotificationFailures {
		return nil, nil
	}
	return []Alert{{
		ID:          "notification-failures",
		Condition:   "notifications_failing",
		Severity:    SeverityMedium,
		Message:     fmt.Sprintf("%d assignment notifications failed (allowed %d)", len(events), ae.thresholds.MaxNotificationFailures),
		TriggeredAt: now,
	}}, nil
}

// checkStaleTasks looks for tasks left IN_PROGRESS with no activity for
// longer than StaleDays.
func (ae *alertEngine) checkStaleTasks(now time.Time) ([]Alert, error) {
	if ae.thresholds.StaleDays <= 0 {
		return nil, nil
	}
	events, err := ae.eventLog.Read(EventFilter{})
	if err != nil {
		return nil, err
	}

	lastActivity := make(map[int64]time.Time)
	status := make(map[int64]string)
	for _, event := range events {
		id := event.TaskID()
		if id == 0 {
			continue
		}
		if event.Time.After(lastActivity[id]) {
			lastActivity[id] = event.Time
		}
		switch event.Type {
		case "task.created":
			status[id] = stringField(event.Data, "status")
		case "task.status_changed":
			status[id] = stringField(event.Data, "new_status")
		}
	}

	threshold := time.Duration(ae.thresholds.StaleDays) * 24 * time.Hour
	stale := make(map[int64]bool)
	for id, last := range lastActivity {
		if status[id] == "IN_PROGRESS" && now.Sub(last) > threshold {
			stale[id] = true
		}
	}

	var alerts []Alert
	for _, id := range sortedIDs(stale) {
		alerts = append(alerts, Alert{
			ID:          fmt.Sprintf("stale-%d", id),
			Condition:   "task_stale",
			Severity:    SeverityLow,
			Message:     fmt.Sprintf("task %d has been in progress with no activity for more than %d days", id, ae.thresholds.StaleDays),
			TriggeredAt: now,
		})
	}
	return alerts, nil
}

func sortedIDs(set map[int64]bool) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
