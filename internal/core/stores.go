package core

import (
	"context"

	"github.com/valter-silva-au/mpt/pkg/models"
)

// The interfaces below are the collaborators the core consumes. They are
// defined here so core never imports a storage package.

// TaskStore loads and persists tasks.
type TaskStore interface {
	// GetTask returns the task and true, or false when no task has the id.
	GetTask(ctx context.Context, id int64) (models.Task, bool, error)
	SaveTask(ctx context.Context, task models.Task) (models.Task, error)
	CreateTask(ctx context.Context, task models.Task) (models.Task, error)
	ListTasksByProject(ctx context.Context, projectID int64) ([]models.Task, error)
	DeleteTasksByProject(ctx context.Context, projectID int64) error
}

// ProjectStore loads and persists projects.
type ProjectStore interface {
	GetProject(ctx context.Context, id int64) (models.Project, bool, error)
	GetProjectByName(ctx context.Context, name string) (models.Project, bool, error)
	CreateProject(ctx context.Context, project models.Project) (models.Project, error)
	DeleteProject(ctx context.Context, id int64) error
	ListProjects(ctx context.Context) ([]models.Project, error)
}

// MembershipDirectory is the read side of project membership.
type MembershipDirectory interface {
	MembershipsByProject(ctx context.Context, projectID int64) ([]models.Membership, error)
	MembershipsByUser(ctx context.Context, userID int64) ([]models.Membership, error)
}

// MembershipStore is the write side of project membership.
type MembershipStore interface {
	MembershipDirectory
	GetMembership(ctx context.Context, id int64) (models.Membership, bool, error)
	AddMembership(ctx context.Context, m models.Membership) (models.Membership, error)
	UpdateMembership(ctx context.Context, m models.Membership) (models.Membership, error)
	RemoveMembership(ctx context.Context, id int64) error
	RemoveMembershipsByProject(ctx context.Context, projectID int64) error
}

// HistoryStore is the append-only audit ledger.
type HistoryStore interface {
	AppendHistory(ctx context.Context, entry models.HistoryEntry) (models.HistoryEntry, error)
	// HistoryByTask returns a task's entries in timestamp order.
	HistoryByTask(ctx context.Context, taskID int64) ([]models.HistoryEntry, error)
}

// AssignmentStore persists task assignments.
type AssignmentStore interface {
	FindAssignment(ctx context.Context, taskID, membershipID int64) (models.Assignment, bool, error)
	GetAssignment(ctx context.Context, id int64) (models.Assignment, bool, error)
	CreateAssignment(ctx context.Context, a models.Assignment) (models.Assignment, error)
	DeleteAssignment(ctx context.Context, id int64) error
	AssignmentsByTask(ctx context.Context, taskID int64) ([]models.Assignment, error)
	DeleteAssignmentsByTasks(ctx context.Context, taskIDs []int64) error
}

// AssignmentNotice describes a new assignment for the notifier.
type AssignmentNotice struct {
	TaskID     int64
	TaskName   string
	ProjectID  int64
	AssigneeID int64
	AssignerID *int64
}

// AssignmentNotifier delivers assignment notices. Delivery is best-effort.
type AssignmentNotifier interface {
	NotifyAssignment(ctx context.Context, notice AssignmentNotice) error
}
