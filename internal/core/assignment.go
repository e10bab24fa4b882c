package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/valter-silva-au/mpt/pkg/models"
)

// AssignmentService assigns tasks to project members.
type AssignmentService struct {
	tasks       TaskStore
	members     MembershipStore
	assignments AssignmentStore
	policy      *AccessPolicy
	notifier    AssignmentNotifier
	events      EventLogger
	log         *slog.Logger
	now         func() time.Time
}

// NewAssignmentService creates an AssignmentService. notifier, events and
// log may be nil.
func NewAssignmentService(projects ProjectStore, tasks TaskStore, members MembershipStore, assignments AssignmentStore, notifier AssignmentNotifier, events EventLogger, log *slog.Logger) *AssignmentService {
	return &AssignmentService{
		tasks:       tasks,
		members:     members,
		assignments: assignments,
		policy:      NewAccessPolicy(projects, tasks, members),
		notifier:    notifier,
		events:      events,
		log:         orDiscard(log),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Assign assigns the task to the member identified by membershipID. The
// member must belong to the task's project. The assignee is notified
// after the assignment is stored; a failed notification is logged and
// never returned.
func (s *AssignmentService) Assign(ctx context.Context, actor *models.Actor, taskID, membershipID int64) (models.Assignment, error) {
	allowed, err := s.policy.CanAccessTask(ctx, actor, taskID)
	if err != nil {
		return models.Assignment{}, fmt.Errorf("assigning task %d: %w", taskID, err)
	}
	if !allowed {
		return models.Assignment{}, fmt.Errorf("assigning task %d: %w", taskID, ErrForbidden)
	}
	task, _, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return models.Assignment{}, fmt.Errorf("assigning task %d: %w", taskID, err)
	}

	if membershipID <= 0 {
		return models.Assignment{}, fmt.Errorf("assigning task %d: %w", taskID, invalidArgf("membership id is required"))
	}
	member, ok, err := s.members.GetMembership(ctx, membershipID)
	if err != nil {
		return models.Assignment{}, fmt.Errorf("assigning task %d: loading membership %d: %w", taskID, membershipID, err)
	}
	if !ok {
		return models.Assignment{}, fmt.Errorf("assigning task %d: membership %d: %w", taskID, membershipID, ErrMembershipNotFound)
	}
	if member.ProjectID != task.ProjectID {
		return models.Assignment{}, fmt.Errorf("assigning task %d: %w", taskID,
			invalidArgf("membership %d belongs to project %d, task is in project %d", membershipID, member.ProjectID, task.ProjectID))
	}

	if _, dup, err := s.assignments.FindAssignment(ctx, taskID, membershipID); err != nil {
		return models.Assignment{}, fmt.Errorf("assigning task %d: %w", taskID, err)
	} else if dup {
		return models.Assignment{}, fmt.Errorf("assigning task %d to membership %d: %w", taskID, membershipID, ErrAlreadyAssigned)
	}

	created, err := s.assignments.CreateAssignment(ctx, models.Assignment{
		TaskID:       taskID,
		MembershipID: membershipID,
		AssignedBy:   actorID(actor),
		AssignedAt:   s.now(),
	})
	if err != nil {
		return models.Assignment{}, fmt.Errorf("assigning task %d: %w", taskID, err)
	}
	logEvent(s.events, s.log, "task.assigned", map[string]any{
		"task_id":       taskID,
		"membership_id": membershipID,
		"assignee_id":   member.UserID,
		"assignment_id": created.ID,
	})

	s.notify(ctx, AssignmentNotice{
		TaskID:     taskID,
		TaskName:   task.Name,
		ProjectID:  task.ProjectID,
		AssigneeID: member.UserID,
		AssignerID: actorID(actor),
	})
	return created, nil
}

func (s *AssignmentService) notify(ctx context.Context, notice AssignmentNotice) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAssignment(ctx, notice); err != nil {
		s.log.WarnContext(ctx, "assignment notification failed",
			"task_id", notice.TaskID,
			"assignee_id", notice.AssigneeID,
			"error", err,
		)
		logEvent(s.events, s.log, "notification.failed", map[string]any{
			"task_id":     notice.TaskID,
			"assignee_id": notice.AssigneeID,
			"error":       err.Error(),
		})
	}
}

// AssignmentsOfTask lists the assignments of a task.
func (s *AssignmentService) AssignmentsOfTask(ctx context.Context, taskID int64) ([]models.Assignment, error) {
	if _, ok, err := s.tasks.GetTask(ctx, taskID); err != nil {
		return nil, fmt.Errorf("listing assignments of task %d: %w", taskID, err)
	} else if !ok {
		return nil, fmt.Errorf("listing assignments of task %d: %w", taskID, ErrTaskNotFound)
	}
	as, err := s.assignments.AssignmentsByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("listing assignments of task %d: %w", taskID, err)
	}
	return as, nil
}

// Unassign removes an assignment. The actor must have access to the task.
func (s *AssignmentService) Unassign(ctx context.Context, actor *models.Actor, assignmentID int64) error {
	if assignmentID <= 0 {
		return invalidArgf("assignment id is required")
	}
	a, ok, err := s.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return fmt.Errorf("removing assignment %d: %w", assignmentID, err)
	}
	if !ok {
		return fmt.Errorf("removing assignment %d: %w", assignmentID, ErrAssignmentNotFound)
	}
	allowed, err := s.policy.CanAccessTask(ctx, actor, a.TaskID)
	if err != nil {
		return fmt.Errorf("removing assignment %d: %w", assignmentID, err)
	}
	if !allowed {
		return fmt.Errorf("removing assignment %d: %w", assignmentID, ErrForbidden)
	}
	if err := s.assignments.DeleteAssignment(ctx, assignmentID); err != nil {
		return fmt.Errorf("removing assignment %d: %w", assignmentID, err)
	}
	return nil
}
