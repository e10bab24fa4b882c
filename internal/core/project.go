package core

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/valter-silva-au/mpt/pkg/models"
)

// ProjectService creates, deletes and reports on projects.
type ProjectService struct {
	projects    ProjectStore
	members     MembershipStore
	tasks       TaskStore
	assignments AssignmentStore
	policy      *AccessPolicy
	events      EventLogger
	log         *slog.Logger
	now         func() time.Time
}

// NewProjectService creates a ProjectService. events and log may be nil.
func NewProjectService(projects ProjectStore, members MembershipStore, tasks TaskStore, assignments AssignmentStore, events EventLogger, log *slog.Logger) *ProjectService {
	return &ProjectService{
		projects:    projects,
		members:     members,
		tasks:       tasks,
		assignments: assignments,
		policy:      NewAccessPolicy(projects, tasks, members),
		events:      events,
		log:         orDiscard(log),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateProject creates a project owned by actor and makes actor its first
// ADMIN member. Project names are unique.
func (s *ProjectService) CreateProject(ctx context.Context, actor *models.Actor, name, description string, startDate *models.Date) (models.Project, error) {
	if actor == nil {
		return models.Project{}, fmt.Errorf("creating project: %w", invalidArgf("an actor is required"))
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Project{}, fmt.Errorf("creating project: %w", invalidArgf("project name is required"))
	}
	if _, exists, err := s.projects.GetProjectByName(ctx, name); err != nil {
		return models.Project{}, fmt.Errorf("creating project %q: %w", name, err)
	} else if exists {
		return models.Project{}, fmt.Errorf("creating project %q: %w", name, ErrProjectExists)
	}

	now := s.now()
	project, err := s.projects.CreateProject(ctx, models.Project{
		Name:        name,
		Description: description,
		StartDate:   copyDate(startDate),
		CreatedAt:   now,
		CreatedBy:   actor.ID,
	})
	if err != nil {
		return models.Project{}, fmt.Errorf("creating project %q: %w", name, err)
	}

	if _, err := s.members.AddMembership(ctx, models.Membership{
		ProjectID: project.ID,
		UserID:    actor.ID,
		Role:      models.RoleAdmin,
		JoinedAt:  now,
	}); err != nil {
		if delErr := s.projects.DeleteProject(ctx, project.ID); delErr != nil {
			s.log.WarnContext(ctx, "project rollback failed", "project_id", project.ID, "error", delErr)
		}
		return models.Project{}, fmt.Errorf("creating project %q: adding creator as admin: %w", name, err)
	}

	s.log.InfoContext(ctx, "project created", "project_id", project.ID, "name", name, "created_by", actor.ID)
	logEvent(s.events, s.log, "project.created", map[string]any{
		"project_id": project.ID,
		"name":       name,
		"created_by": actor.ID,
	})
	return project, nil
}

// DeleteProject removes a project together with its memberships, tasks and
// assignments. History entries of the removed tasks are kept.
func (s *ProjectService) DeleteProject(ctx context.Context, actor *models.Actor, projectID int64) error {
	allowed, err := s.policy.CanDeleteProject(ctx, actor, projectID)
	if err != nil {
		return fmt.Errorf("deleting project %d: %w", projectID, err)
	}
	if !allowed {
		return fmt.Errorf("deleting project %d: %w", projectID, ErrForbidden)
	}

	tasks, err := s.tasks.ListTasksByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("deleting project %d: listing tasks: %w", projectID, err)
	}
	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	if err := s.assignments.DeleteAssignmentsByTasks(ctx, ids); err != nil {
		return fmt.Errorf("deleting project %d: removing assignments: %w", projectID, err)
	}
	if err := s.tasks.DeleteTasksByProject(ctx, projectID); err != nil {
		return fmt.Errorf("deleting project %d: removing tasks: %w", projectID, err)
	}
	if err := s.members.RemoveMembershipsByProject(ctx, projectID); err != nil {
		return fmt.Errorf("deleting project %d: removing memberships: %w", projectID, err)
	}
	if err := s.projects.DeleteProject(ctx, projectID); err != nil {
		return fmt.Errorf("deleting project %d: %w", projectID, err)
	}

	s.log.InfoContext(ctx, "project deleted", "project_id", projectID, "tasks", len(ids))
	logEvent(s.events, s.log, "project.deleted", map[string]any{
		"project_id": projectID,
		"deleted_by": actorIDValue(actor),
		"tasks":      len(ids),
	})
	return nil
}

// GetProject returns the project with the given id.
func (s *ProjectService) GetProject(ctx context.Context, projectID int64) (models.Project, error) {
	project, err := s.policy.loadProject(ctx, projectID)
	if err != nil {
		return models.Project{}, err
	}
	return project, nil
}

// ListProjects returns all projects ordered by id.
func (s *ProjectService) ListProjects(ctx context.Context) ([]models.Project, error) {
	projects, err := s.projects.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects, nil
}

// Stats counts a project's tasks per status. Progress is the percentage of
// tasks that are done, rounded down, and 0 for a project without tasks.
func (s *ProjectService) Stats(ctx context.Context, projectID int64) (models.ProjectStats, error) {
	if _, err := s.policy.loadProject(ctx, projectID); err != nil {
		return models.ProjectStats{}, err
	}
	tasks, err := s.tasks.ListTasksByProject(ctx, projectID)
	if err != nil {
		return models.ProjectStats{}, fmt.Errorf("computing stats of project %d: %w", projectID, err)
	}
	return ComputeStats(projectID, tasks), nil
}

// ComputeStats aggregates tasks into a ProjectStats.
func ComputeStats(projectID int64, tasks []models.Task) models.ProjectStats {
	stats := models.ProjectStats{ProjectID: projectID, Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case models.StatusTodo:
			stats.Todo++
		case models.StatusInProgress:
			stats.InProgress++
		case models.StatusDone:
			stats.Done++
		}
	}
	if stats.Total > 0 {
		stats.Progress = stats.Done * 100 / stats.Total
	}
	return stats
}

func actorIDValue(actor *models.Actor) any {
	if actor == nil {
		return nil
	}
	return actor.ID
}
