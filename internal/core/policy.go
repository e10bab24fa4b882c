package core

import (
	"context"
	"fmt"

	"github.com/valter-silva-au/mpt/pkg/models"
)

// CanDeleteProject reports whether actor may delete project. Global admins,
// the project's creator and members holding the ADMIN role may delete it.
// A nil actor is never authorized.
func CanDeleteProject(actor *models.Actor, project models.Project, memberships []models.Membership) bool {
	if actor == nil {
		return false
	}
	if actor.Admin || actor.ID == project.CreatedBy {
		return true
	}
	for _, m := range memberships {
		if m.UserID == actor.ID && m.Role == models.RoleAdmin {
			return true
		}
	}
	return false
}

// CanAccessTask reports whether actor may read or mutate task. Any
// membership in the task's project grants access, whatever its role.
func CanAccessTask(actor *models.Actor, task models.Task, memberships []models.Membership) bool {
	if actor == nil {
		return false
	}
	if actor.Admin {
		return true
	}
	return isMember(actor.ID, task.ProjectID, memberships)
}

// CanManageMembers reports whether actor may add, re-role or remove
// members of project. The rule is the same as for deleting the project.
func CanManageMembers(actor *models.Actor, project models.Project, memberships []models.Membership) bool {
	return CanDeleteProject(actor, project, memberships)
}

func isMember(userID, projectID int64, memberships []models.Membership) bool {
	for _, m := range memberships {
		if m.UserID == userID && m.ProjectID == projectID {
			return true
		}
	}
	return false
}

// AccessPolicy resolves projects, tasks and memberships through the stores
// and evaluates the pure policy functions against them.
type AccessPolicy struct {
	projects ProjectStore
	tasks    TaskStore
	members  MembershipDirectory
}

// NewAccessPolicy creates an AccessPolicy over the given stores.
func NewAccessPolicy(projects ProjectStore, tasks TaskStore, members MembershipDirectory) *AccessPolicy {
	return &AccessPolicy{projects: projects, tasks: tasks, members: members}
}

// CanDeleteProject reports whether actor may delete the project with the
// given id. A missing project yields false and an ErrProjectNotFound error.
func (p *AccessPolicy) CanDeleteProject(ctx context.Context, actor *models.Actor, projectID int64) (bool, error) {
	project, err := p.loadProject(ctx, projectID)
	if err != nil {
		return false, err
	}
	if actor == nil {
		return false, nil
	}
	if actor.Admin {
		return true, nil
	}
	memberships, err := p.members.MembershipsByProject(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("listing members of project %d: %w", projectID, err)
	}
	return CanDeleteProject(actor, project, memberships), nil
}

// CanManageMembers reports whether actor may change the membership of the
// project with the given id.
func (p *AccessPolicy) CanManageMembers(ctx context.Context, actor *models.Actor, projectID int64) (bool, error) {
	return p.CanDeleteProject(ctx, actor, projectID)
}

// CanAccessTask reports whether actor may access the task with the given id.
// A missing task yields false and an ErrTaskNotFound error.
func (p *AccessPolicy) CanAccessTask(ctx context.Context, actor *models.Actor, taskID int64) (bool, error) {
	if taskID <= 0 {
		return false, invalidArgf("task id is required")
	}
	task, ok, err := p.tasks.GetTask(ctx, taskID)
	if err != nil {
		return false, fmt.Errorf("loading task %d: %w", taskID, err)
	}
	if !ok {
		return false, fmt.Errorf("checking access to task %d: %w", taskID, ErrTaskNotFound)
	}
	return p.canAccessProject(ctx, actor, task.ProjectID, func(ms []models.Membership) bool {
		return CanAccessTask(actor, task, ms)
	})
}

// CanAccessProject reports whether actor is a global admin or a member of
// the project with the given id.
func (p *AccessPolicy) CanAccessProject(ctx context.Context, actor *models.Actor, projectID int64) (bool, error) {
	if _, err := p.loadProject(ctx, projectID); err != nil {
		return false, err
	}
	return p.canAccessProject(ctx, actor, projectID, func(ms []models.Membership) bool {
		return isMember(actor.ID, projectID, ms)
	})
}

func (p *AccessPolicy) canAccessProject(ctx context.Context, actor *models.Actor, projectID int64, decide func([]models.Membership) bool) (bool, error) {
	if actor == nil {
		return false, nil
	}
	if actor.Admin {
		return true, nil
	}
	memberships, err := p.members.MembershipsByUser(ctx, actor.ID)
	if err != nil {
		return false, fmt.Errorf("listing memberships of user %d: %w", actor.ID, err)
	}
	return decide(memberships), nil
}

func (p *AccessPolicy) loadProject(ctx context.Context, projectID int64) (models.Project, error) {
	if projectID <= 0 {
		return models.Project{}, invalidArgf("project id is required")
	}
	project, ok, err := p.projects.GetProject(ctx, projectID)
	if err != nil {
		return models.Project{}, fmt.Errorf("loading project %d: %w", projectID, err)
	}
	if !ok {
		return models.Project{}, fmt.Errorf("loading project %d: %w", projectID, ErrProjectNotFound)
	}
	return project, nil
}
