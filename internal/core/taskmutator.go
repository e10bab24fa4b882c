package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/valter-silva-au/mpt/pkg/models"
)

// TaskMutator applies partial updates and status changes to tasks and
// records one history entry for every mutation that changed a tracked
// field. Authorization is the caller's job: TaskMutator assumes the actor
// has already passed CanAccessTask.
type TaskMutator struct {
	tasks   TaskStore
	history HistoryStore
	events  EventLogger
	log     *slog.Logger
	now     func() time.Time
}

// NewTaskMutator creates a TaskMutator. events and log may be nil.
func NewTaskMutator(tasks TaskStore, history HistoryStore, events EventLogger, log *slog.Logger) *TaskMutator {
	return &TaskMutator{
		tasks:   tasks,
		history: history,
		events:  events,
		log:     orDiscard(log),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// UpdateTask merges update into the stored task, saves it and appends a
// history entry describing the change. ProjectID and CreatedBy in update are
// ignored. When no tracked field changed the task is still saved but no
// history entry is written.
//
// If the task was saved but its history entry could not be appended, the
// saved task is returned together with an error wrapping ErrAuditFailed.
func (m *TaskMutator) UpdateTask(ctx context.Context, actor *models.Actor, taskID int64, update TaskUpdate) (models.Task, error) {
	if taskID <= 0 {
		return models.Task{}, invalidArgf("task id is required")
	}
	current, err := m.load(ctx, taskID)
	if err != nil {
		return models.Task{}, fmt.Errorf("updating task %d: %w", taskID, err)
	}
	if err := update.validate(); err != nil {
		return models.Task{}, fmt.Errorf("updating task %d: %w", taskID, err)
	}

	before := current.Clone()
	update.apply(&current)

	saved, err := m.tasks.SaveTask(ctx, current)
	if err != nil {
		return models.Task{}, fmt.Errorf("updating task %d: saving: %w", taskID, err)
	}

	diff := ComputeDiff(before, saved)
	if diff == "" {
		m.log.DebugContext(ctx, "task update changed nothing", "task_id", taskID)
		logEvent(m.events, m.log, "task.noop", map[string]any{
			"task_id": taskID,
			"op":      "update",
		})
		return saved, nil
	}

	logEvent(m.events, m.log, "task.updated", map[string]any{
		"task_id":    taskID,
		"project_id": saved.ProjectID,
		"fields":     DiffFields(before, saved),
	})
	return saved, m.record(ctx, actor, taskID, diff)
}

// UpdateStatus moves the task to status. Setting the status the task
// already has is a no-op: nothing is saved, no history is written and the
// task is returned as loaded. Any transition between statuses is allowed.
func (m *TaskMutator) UpdateStatus(ctx context.Context, actor *models.Actor, taskID int64, status models.TaskStatus) (models.Task, error) {
	if taskID <= 0 {
		return models.Task{}, invalidArgf("task id is required")
	}
	if !status.Valid() {
		return models.Task{}, fmt.Errorf("updating status of task %d: %w", taskID, invalidArgf("unknown status %q", status))
	}
	current, err := m.load(ctx, taskID)
	if err != nil {
		return models.Task{}, fmt.Errorf("updating status of task %d: %w", taskID, err)
	}

	if current.Status == status {
		m.log.DebugContext(ctx, "status unchanged", "task_id", taskID, "status", status)
		logEvent(m.events, m.log, "task.noop", map[string]any{
			"task_id": taskID,
			"op":      "status",
		})
		return current, nil
	}

	old := current.Status
	current.Status = status
	saved, err := m.tasks.SaveTask(ctx, current)
	if err != nil {
		return models.Task{}, fmt.Errorf("updating status of task %d: saving: %w", taskID, err)
	}

	logEvent(m.events, m.log, "task.status_changed", map[string]any{
		"task_id":    taskID,
		"project_id": saved.ProjectID,
		"old_status": string(old),
		"new_status": string(status),
	})
	return saved, m.record(ctx, actor, taskID, statusChange(old, status))
}

func (m *TaskMutator) load(ctx context.Context, taskID int64) (models.Task, error) {
	task, ok, err := m.tasks.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, fmt.Errorf("loading: %w", err)
	}
	if !ok {
		return models.Task{}, ErrTaskNotFound
	}
	return task, nil
}

// record appends the history entry for a completed mutation.
func (m *TaskMutator) record(ctx context.Context, actor *models.Actor, taskID int64, description string) error {
	entry := models.HistoryEntry{
		ID:                uuid.NewString(),
		TaskID:            taskID,
		ChangedBy:         actorID(actor),
		Timestamp:         m.now(),
		ChangeDescription: description,
	}
	stored, err := m.history.AppendHistory(ctx, entry)
	if err != nil {
		m.log.ErrorContext(ctx, "history append failed",
			"task_id", taskID,
			"change", description,
			"error", err,
		)
		logEvent(m.events, m.log, "history.append_failed", map[string]any{
			"task_id": taskID,
			"change":  description,
			"error":   err.Error(),
		})
		return fmt.Errorf("recording change to task %d: %w: %v", taskID, ErrAuditFailed, err)
	}

	m.log.DebugContext(ctx, "history appended", "task_id", taskID, "entry_id", stored.ID)
	logEvent(m.events, m.log, "history.appended", map[string]any{
		"task_id":  taskID,
		"entry_id": stored.ID,
		"change":   description,
	})
	return nil
}
