package core

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/valter-silva-au/mpt/pkg/models"
)

// TaskDraft holds the fields of a task being created. Empty Priority and
// Status fall back to MEDIUM and TODO.
type TaskDraft struct {
	Name        string
	Description *string
	Priority    models.Priority
	Status      models.TaskStatus
	DueDate     *models.Date
	EndDate     *models.Date
}

// TaskService creates and reads tasks. Mutations go through TaskMutator.
type TaskService struct {
	projects ProjectStore
	tasks    TaskStore
	history  HistoryStore
	policy   *AccessPolicy
	events   EventLogger
	log      *slog.Logger
}

// NewTaskService creates a TaskService. events and log may be nil.
func NewTaskService(projects ProjectStore, tasks TaskStore, members MembershipDirectory, history HistoryStore, events EventLogger, log *slog.Logger) *TaskService {
	return &TaskService{
		projects: projects,
		tasks:    tasks,
		history:  history,
		policy:   NewAccessPolicy(projects, tasks, members),
		events:   events,
		log:      orDiscard(log),
	}
}

// CreateTask adds a task to a project the actor has access to. Creating a
// task does not write history.
func (s *TaskService) CreateTask(ctx context.Context, actor *models.Actor, projectID int64, draft TaskDraft) (models.Task, error) {
	if actor == nil {
		return models.Task{}, fmt.Errorf("creating task: %w", invalidArgf("an actor is required"))
	}
	name := strings.TrimSpace(draft.Name)
	if name == "" {
		return models.Task{}, fmt.Errorf("creating task: %w", invalidArgf("task name is required"))
	}
	if draft.Priority == "" {
		draft.Priority = models.PriorityMedium
	}
	if draft.Status == "" {
		draft.Status = models.StatusTodo
	}
	if !draft.Priority.Valid() {
		return models.Task{}, fmt.Errorf("creating task: %w", invalidArgf("unknown priority %q", draft.Priority))
	}
	if !draft.Status.Valid() {
		return models.Task{}, fmt.Errorf("creating task: %w", invalidArgf("unknown status %q", draft.Status))
	}

	allowed, err := s.policy.CanAccessProject(ctx, actor, projectID)
	if err != nil {
		return models.Task{}, fmt.Errorf("creating task in project %d: %w", projectID, err)
	}
	if !allowed {
		return models.Task{}, fmt.Errorf("creating task in project %d: %w", projectID, ErrForbidden)
	}

	task := models.Task{
		ProjectID: projectID,
		CreatedBy: actor.ID,
		Name:      name,
		Priority:  draft.Priority,
		Status:    draft.Status,
		DueDate:   copyDate(draft.DueDate),
		EndDate:   copyDate(draft.EndDate),
	}
	if draft.Description != nil {
		task.Description = models.StringPtr(*draft.Description)
	}

	created, err := s.tasks.CreateTask(ctx, task)
	if err != nil {
		return models.Task{}, fmt.Errorf("creating task in project %d: %w", projectID, err)
	}
	s.log.InfoContext(ctx, "task created", "task_id", created.ID, "project_id", projectID)
	logEvent(s.events, s.log, "task.created", map[string]any{
		"task_id":    created.ID,
		"project_id": projectID,
		"created_by": actor.ID,
		"priority":   string(created.Priority),
		"status":     string(created.Status),
	})
	return created, nil
}

// GetTask returns the task with the given id.
func (s *TaskService) GetTask(ctx context.Context, taskID int64) (models.Task, error) {
	if taskID <= 0 {
		return models.Task{}, invalidArgf("task id is required")
	}
	task, ok, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, fmt.Errorf("loading task %d: %w", taskID, err)
	}
	if !ok {
		return models.Task{}, fmt.Errorf("loading task %d: %w", taskID, ErrTaskNotFound)
	}
	return task, nil
}

// ListTasks returns the tasks of a project ordered by id. A non-nil status
// keeps only tasks in that status.
func (s *TaskService) ListTasks(ctx context.Context, projectID int64, status *models.TaskStatus) ([]models.Task, error) {
	if _, err := s.policy.loadProject(ctx, projectID); err != nil {
		return nil, err
	}
	all, err := s.tasks.ListTasksByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks of project %d: %w", projectID, err)
	}
	out := make([]models.Task, 0, len(all))
	for _, t := range all {
		if status != nil && t.Status != *status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// History returns the audit trail of a task, oldest first.
func (s *TaskService) History(ctx context.Context, taskID int64) ([]models.HistoryEntry, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	entries, err := s.history.HistoryByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("reading history of task %d: %w", taskID, err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}
