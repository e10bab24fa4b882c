// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the mpt task and policy operations as tools for AI assistants.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/mpt/internal/core"
	"github.com/valter-silva-au/mpt/internal/observability"
	"github.com/valter-silva-au/mpt/pkg/models"
)

// TaskReader is the read side of the task service.
type TaskReader interface {
	GetTask(ctx context.Context, taskID int64) (models.Task, error)
	ListTasks(ctx context.Context, projectID int64, status *models.TaskStatus) ([]models.Task, error)
	History(ctx context.Context, taskID int64) ([]models.HistoryEntry, error)
}

// TaskWriter applies task mutations.
type TaskWriter interface {
	UpdateTask(ctx context.Context, actor *models.Actor, taskID int64, update core.TaskUpdate) (models.Task, error)
	UpdateStatus(ctx context.Context, actor *models.Actor, taskID int64, status models.TaskStatus) (models.Task, error)
}

// Authorizer answers the policy questions the tools gate on.
type Authorizer interface {
	CanDeleteProject(ctx context.Context, actor *models.Actor, projectID int64) (bool, error)
	CanAccessTask(ctx context.Context, actor *models.Actor, taskID int64) (bool, error)
	CanAccessProject(ctx context.Context, actor *models.Actor, projectID int64) (bool, error)
}

// Server wraps the mpt services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	tasks       TaskReader
	mutator     TaskWriter
	policy      Authorizer
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates a new MCP server. metricsCalc and alertEngine may be
// nil when the event log is unavailable.
func NewServer(tasks TaskReader, mutator TaskWriter, policy Authorizer, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		tasks:       tasks,
		mutator:     mutator,
		policy:      policy,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "mpt", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

// actorFrom builds the caller from the actor_id/admin pair every tool takes.
func actorFrom(id int64, admin bool) (*models.Actor, error) {
	if id <= 0 && !admin {
		return nil, errors.New("actor_id is required")
	}
	return &models.Actor{ID: id, Admin: admin}, nil
}

type getTaskInput struct {
	ActorID int64 `json:"actor_id,omitempty" jsonschema:"the id of the user performing the call"`
	Admin   bool  `json:"admin,omitempty" jsonschema:"true when the caller is a global administrator"`
	TaskID  int64 `json:"task_id" jsonschema:"the numeric task id"`
}

type taskOutput struct {
	ID          int64   `json:"id"`
	ProjectID   int64   `json:"project_id"`
	CreatedBy   int64   `json:"created_by"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
	DueDate     string  `json:"due_date,omitempty"`
	EndDate     string  `json:"end_date,omitempty"`
	// AuditWarning is set when the change was saved but its history entry
	// could not be recorded.
	AuditWarning string `json:"audit_warning,omitempty"`
}

type listTasksInput struct {
	ActorID   int64  `json:"actor_id,omitempty" jsonschema:"the id of the user performing the call"`
	Admin     bool   `json:"admin,omitempty" jsonschema:"true when the caller is a global administrator"`
	ProjectID int64  `json:"project_id" jsonschema:"the project whose tasks to list"`
	Status    string `json:"status,omitempty" jsonschema:"filter by status (TODO, IN_PROGRESS, DONE)"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type updateTaskInput struct {
	ActorID     int64   `json:"actor_id,omitempty" jsonschema:"the id of the user performing the call"`
	Admin       bool    `json:"admin,omitempty" jsonschema:"true when the caller is a global administrator"`
	TaskID      int64   `json:"task_id" jsonschema:"the numeric task id"`
	Name        *string `json:"name,omitempty" jsonschema:"new task name"`
	Description *string `json:"description,omitempty" jsonschema:"new description; an empty string is stored as empty"`
	Priority    *string `json:"priority,omitempty" jsonschema:"LOW, MEDIUM or HIGH"`
	Status      *string `json:"status,omitempty" jsonschema:"TODO, IN_PROGRESS or DONE"`
	DueDate     *string `json:"due_date,omitempty" jsonschema:"YYYY-MM-DD; an empty string clears the date"`
	EndDate     *string `json:"end_date,omitempty" jsonschema:"YYYY-MM-DD; an empty string clears the date"`
}

type updateTaskStatusInput struct {
	ActorID int64  `json:"actor_id,omitempty" jsonschema:"the id of the user performing the call"`
	Admin   bool   `json:"admin,omitempty" jsonschema:"true when the caller is a global administrator"`
	TaskID  int64  `json:"task_id" jsonschema:"the numeric task id"`
	Status  string `json:"status" jsonschema:"the new status (TODO, IN_PROGRESS, DONE)"`
}

type historyInput struct {
	ActorID int64 `json:"actor_id,omitempty" jsonschema:"the id of the user performing the call"`
	Admin   bool  `json:"admin,omitempty" jsonschema:"true when the caller is a global administrator"`
	TaskID  int64 `json:"task_id" jsonschema:"the numeric task id"`
}

type historyEntryOutput struct {
	ID                string `json:"id"`
	ChangedBy         *int64 `json:"changed_by"`
	Timestamp         string `json:"timestamp"`
	ChangeDescription string `json:"change_description"`
}

type historyOutput struct {
	TaskID  int64                `json:"task_id"`
	Entries []historyEntryOutput `json:"entries"`
	Count   int                  `json:"count"`
}

type canDeleteProjectInput struct {
	ActorID   int64 `json:"actor_id,omitempty" jsonschema:"the id of the user performing the call"`
	Admin     bool  `json:"admin,omitempty" jsonschema:"true when the caller is a global administrator"`
	ProjectID int64 `json:"project_id" jsonschema:"the numeric project id"`
}

type canAccessTaskInput struct {
	ActorID int64 `json:"actor_id,omitempty" jsonschema:"the id of the user performing the call"`
	Admin   bool  `json:"admin,omitempty" jsonschema:"true when the caller is a global administrator"`
	TaskID  int64 `json:"task_id" jsonschema:"the numeric task id"`
}

type decisionOutput struct {
	Allowed bool `json:"allowed"`
}

type metricsOutput struct {
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
	OldestEvent          string         `json:"oldest_event,omitempty"`
	NewestEvent          string         `json:"newest_event,omitempty"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task",
		Description: "Get a task by id. The actor must be an admin or a member of the task's project.",
	}, s.handleGetTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List the tasks of a project with an optional status filter.",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_task",
		Description: "Apply a partial update to a task. Only supplied fields change; an empty due_date or end_date clears it. Records one history entry when a tracked field changed.",
	}, s.handleUpdateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_task_status",
		Description: "Change a task's status. Setting the current status again is a no-op.",
	}, s.handleUpdateTaskStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task_history",
		Description: "Return a task's audit trail, oldest entry first.",
	}, s.handleGetTaskHistory)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "can_delete_project",
		Description: "Report whether the actor may delete a project (global admin or project ADMIN).",
	}, s.handleCanDeleteProject)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "can_access_task",
		Description: "Report whether the actor may access a task (global admin or any member of its project).",
	}, s.handleCanAccessTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated counts from the event log: mutations, no-ops, history appends, audit and notification failures.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (audit failures, notification failures, stale tasks).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleGetTask(ctx context.Context, _ *gomcp.CallToolRequest, input getTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if _, res := s.authorizeTask(ctx, input.ActorID, input.Admin, input.TaskID); res != nil {
		return res, taskOutput{}, nil
	}

	task, err := s.tasks.GetTask(ctx, input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting task %d: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleListTasks(ctx context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	actor, err := actorFrom(input.ActorID, input.Admin)
	if err != nil {
		return errorResult(err.Error()), listTasksOutput{}, nil
	}
	if input.ProjectID <= 0 {
		return errorResult("project_id is required"), listTasksOutput{}, nil
	}

	var status *models.TaskStatus
	if input.Status != "" {
		st, err := core.ParseStatus(input.Status)
		if err != nil {
			return errorResult(err.Error()), listTasksOutput{}, nil
		}
		status = &st
	}

	ok, err := s.policy.CanAccessProject(ctx, actor, input.ProjectID)
	if err != nil {
		return errorResult(fmt.Sprintf("checking access to project %d: %s", input.ProjectID, err)), listTasksOutput{}, nil
	}
	if !ok {
		return errorResult(fmt.Sprintf("forbidden: user %d is not a member of project %d", actor.ID, input.ProjectID)), listTasksOutput{}, nil
	}

	tasks, err := s.tasks.ListTasks(ctx, input.ProjectID, status)
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), listTasksOutput{}, nil
	}

	out := listTasksOutput{
		Tasks: make([]taskOutput, len(tasks)),
		Count: len(tasks),
	}
	for i, t := range tasks {
		out.Tasks[i] = taskToOutput(t)
	}
	return nil, out, nil
}

func (s *Server) handleUpdateTask(ctx context.Context, _ *gomcp.CallToolRequest, input updateTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	update, err := input.taskUpdate()
	if err != nil {
		return errorResult(err.Error()), taskOutput{}, nil
	}
	actor, res := s.authorizeTask(ctx, input.ActorID, input.Admin, input.TaskID)
	if res != nil {
		return res, taskOutput{}, nil
	}

	task, err := s.mutator.UpdateTask(ctx, actor, input.TaskID, update)
	return mutationResult(input.TaskID, task, err)
}

func (s *Server) handleUpdateTaskStatus(ctx context.Context, _ *gomcp.CallToolRequest, input updateTaskStatusInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.Status == "" {
		return errorResult("status is required"), taskOutput{}, nil
	}
	status, err := core.ParseStatus(input.Status)
	if err != nil {
		return errorResult(err.Error()), taskOutput{}, nil
	}
	actor, res := s.authorizeTask(ctx, input.ActorID, input.Admin, input.TaskID)
	if res != nil {
		return res, taskOutput{}, nil
	}

	task, err := s.mutator.UpdateStatus(ctx, actor, input.TaskID, status)
	return mutationResult(input.TaskID, task, err)
}

func (s *Server) handleGetTaskHistory(ctx context.Context, _ *gomcp.CallToolRequest, input historyInput) (*gomcp.CallToolResult, historyOutput, error) {
	if _, res := s.authorizeTask(ctx, input.ActorID, input.Admin, input.TaskID); res != nil {
		return res, historyOutput{}, nil
	}

	entries, err := s.tasks.History(ctx, input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("reading history of task %d: %s", input.TaskID, err)), historyOutput{}, nil
	}

	out := historyOutput{
		TaskID:  input.TaskID,
		Entries: make([]historyEntryOutput, len(entries)),
		Count:   len(entries),
	}
	for i, e := range entries {
		out.Entries[i] = historyEntryOutput{
			ID:                e.ID,
			ChangedBy:         e.ChangedBy,
			Timestamp:         e.Timestamp.Format(time.RFC3339),
			ChangeDescription: e.ChangeDescription,
		}
	}
	return nil, out, nil
}

func (s *Server) handleCanDeleteProject(ctx context.Context, _ *gomcp.CallToolRequest, input canDeleteProjectInput) (*gomcp.CallToolResult, decisionOutput, error) {
	actor, err := actorFrom(input.ActorID, input.Admin)
	if err != nil {
		return errorResult(err.Error()), decisionOutput{}, nil
	}
	ok, err := s.policy.CanDeleteProject(ctx, actor, input.ProjectID)
	if err != nil {
		return errorResult(fmt.Sprintf("checking project %d: %s", input.ProjectID, err)), decisionOutput{}, nil
	}
	return nil, decisionOutput{Allowed: ok}, nil
}

func (s *Server) handleCanAccessTask(ctx context.Context, _ *gomcp.CallToolRequest, input canAccessTaskInput) (*gomcp.CallToolResult, decisionOutput, error) {
	actor, err := actorFrom(input.ActorID, input.Admin)
	if err != nil {
		return errorResult(err.Error()), decisionOutput{}, nil
	}
	ok, err := s.policy.CanAccessTask(ctx, actor, input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("checking task %d: %s", input.TaskID, err)), decisionOutput{}, nil
	}
	return nil, decisionOutput{Allowed: ok}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (event log may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}
	sinceTime, err := ParseSince(sinceStr, time.Now().UTC())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}
	out := metricsOutput{
		TasksCreated:         metrics.TasksCreated,
		TasksUpdated:         metrics.TasksUpdated,
		StatusChanges:        metrics.StatusChanges,
		StatusTransitions:    metrics.StatusTransitions,
		NoopMutations:        metrics.NoopMutations,
		FieldChanges:         metrics.FieldChanges,
		HistoryAppended:      metrics.HistoryAppended,
		AuditFailures:        metrics.AuditFailures,
		Assignments:          metrics.Assignments,
		NotificationFailures: metrics.NotificationFailures,
		ProjectsCreated:      metrics.ProjectsCreated,
		ProjectsDeleted:      metrics.ProjectsDeleted,
		MembershipChanges:    metrics.MembershipChanges,
		EventCount:           metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (event log may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

// --- Helpers ---

// authorizeTask resolves the actor and checks CanAccessTask. A non-nil
// result is the error to return to the client.
func (s *Server) authorizeTask(ctx context.Context, actorID int64, admin bool, taskID int64) (*models.Actor, *gomcp.CallToolResult) {
	actor, err := actorFrom(actorID, admin)
	if err != nil {
		return nil, errorResult(err.Error())
	}
	if taskID <= 0 {
		return nil, errorResult("task_id is required")
	}
	ok, err := s.policy.CanAccessTask(ctx, actor, taskID)
	if err != nil {
		return nil, errorResult(fmt.Sprintf("checking access to task %d: %s", taskID, err))
	}
	if !ok {
		return nil, errorResult(fmt.Sprintf("forbidden: user %d cannot access task %d", actor.ID, taskID))
	}
	return actor, nil
}

func (in updateTaskInput) taskUpdate() (core.TaskUpdate, error) {
	var u core.TaskUpdate
	if in.Name != nil {
		u.Name = core.Some(*in.Name)
	}
	if in.Description != nil {
		u.Description = core.Some(*in.Description)
	}
	if in.Priority != nil {
		p, err := core.ParsePriority(*in.Priority)
		if err != nil {
			return core.TaskUpdate{}, err
		}
		u.Priority = core.Some(p)
	}
	if in.Status != nil {
		st, err := core.ParseStatus(*in.Status)
		if err != nil {
			return core.TaskUpdate{}, err
		}
		u.Status = core.Some(st)
	}
	if in.DueDate != nil {
		d, err := core.ParseDateField(*in.DueDate)
		if err != nil {
			return core.TaskUpdate{}, fmt.Errorf("due_date: %w", err)
		}
		u.DueDate = core.Some(d)
	}
	if in.EndDate != nil {
		d, err := core.ParseDateField(*in.EndDate)
		if err != nil {
			return core.TaskUpdate{}, fmt.Errorf("end_date: %w", err)
		}
		u.EndDate = core.Some(d)
	}
	return u, nil
}

// mutationResult turns a mutator result into a tool result. An audit
// failure still reports the saved task, with a warning attached.
func mutationResult(taskID int64, task models.Task, err error) (*gomcp.CallToolResult, taskOutput, error) {
	if err != nil && !errors.Is(err, core.ErrAuditFailed) {
		return errorResult(fmt.Sprintf("updating task %d: %s", taskID, err)), taskOutput{}, nil
	}
	out := taskToOutput(task)
	if err != nil {
		out.AuditWarning = err.Error()
	}
	return nil, out, nil
}

func taskToOutput(t models.Task) taskOutput {
	out := taskOutput{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		CreatedBy:   t.CreatedBy,
		Name:        t.Name,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
	}
	if t.DueDate != nil {
		out.DueDate = t.DueDate.String()
	}
	if t.EndDate != nil {
		out.EndDate = t.EndDate.String()
	}
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		StatusTransitions: make(map[string]int),
		FieldChanges:      make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// ParseSince parses a duration like "7d", "30d" or "24h" into the point
// that far before now.
func ParseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
