package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/valter-silva-au/mpt/pkg/models"
)

// MembershipManager grants, changes and revokes project roles.
type MembershipManager struct {
	projects ProjectStore
	members  MembershipStore
	events   EventLogger
	log      *slog.Logger
	now      func() time.Time
}

// NewMembershipManager creates a MembershipManager. events and log may be nil.
func NewMembershipManager(projects ProjectStore, members MembershipStore, events EventLogger, log *slog.Logger) *MembershipManager {
	return &MembershipManager{
		projects: projects,
		members:  members,
		events:   events,
		log:      orDiscard(log),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AddMember grants userID the named role in the project. The actor must be
// a global admin, the project's creator or a project ADMIN.
func (mm *MembershipManager) AddMember(ctx context.Context, actor *models.Actor, projectID, userID int64, role string) (models.Membership, error) {
	if userID <= 0 {
		return models.Membership{}, invalidArgf("user id is required")
	}
	r, err := ParseRole(role)
	if err != nil {
		return models.Membership{}, fmt.Errorf("adding member to project %d: %w", projectID, err)
	}
	if err := mm.authorize(ctx, actor, projectID); err != nil {
		return models.Membership{}, fmt.Errorf("adding member to project %d: %w", projectID, err)
	}

	existing, err := mm.members.MembershipsByProject(ctx, projectID)
	if err != nil {
		return models.Membership{}, fmt.Errorf("adding member to project %d: %w", projectID, err)
	}
	for _, m := range existing {
		if m.UserID == userID {
			return models.Membership{}, fmt.Errorf("adding user %d to project %d: %w", userID, projectID, ErrAlreadyMember)
		}
	}

	created, err := mm.members.AddMembership(ctx, models.Membership{
		ProjectID: projectID,
		UserID:    userID,
		Role:      r,
		JoinedAt:  mm.now(),
	})
	if err != nil {
		return models.Membership{}, fmt.Errorf("adding user %d to project %d: %w", userID, projectID, err)
	}
	mm.log.InfoContext(ctx, "member added", "project_id", projectID, "user_id", userID, "role", r)
	logEvent(mm.events, mm.log, "member.added", map[string]any{
		"project_id":    projectID,
		"user_id":       userID,
		"membership_id": created.ID,
		"role":          string(r),
	})
	return created, nil
}

// UpdateRole changes the role of an existing membership.
func (mm *MembershipManager) UpdateRole(ctx context.Context, actor *models.Actor, membershipID int64, role string) (models.Membership, error) {
	r, err := ParseRole(role)
	if err != nil {
		return models.Membership{}, fmt.Errorf("updating membership %d: %w", membershipID, err)
	}
	m, err := mm.load(ctx, membershipID)
	if err != nil {
		return models.Membership{}, fmt.Errorf("updating membership %d: %w", membershipID, err)
	}
	if err := mm.authorize(ctx, actor, m.ProjectID); err != nil {
		return models.Membership{}, fmt.Errorf("updating membership %d: %w", membershipID, err)
	}
	if m.Role == r {
		return m, nil
	}

	old := m.Role
	m.Role = r
	updated, err := mm.members.UpdateMembership(ctx, m)
	if err != nil {
		return models.Membership{}, fmt.Errorf("updating membership %d: %w", membershipID, err)
	}
	logEvent(mm.events, mm.log, "member.role_changed", map[string]any{
		"project_id":    m.ProjectID,
		"user_id":       m.UserID,
		"membership_id": membershipID,
		"old_role":      string(old),
		"new_role":      string(r),
	})
	return updated, nil
}

// RemoveMember revokes a membership.
func (mm *MembershipManager) RemoveMember(ctx context.Context, actor *models.Actor, membershipID int64) error {
	m, err := mm.load(ctx, membershipID)
	if err != nil {
		return fmt.Errorf("removing membership %d: %w", membershipID, err)
	}
	if err := mm.authorize(ctx, actor, m.ProjectID); err != nil {
		return fmt.Errorf("removing membership %d: %w", membershipID, err)
	}
	if err := mm.members.RemoveMembership(ctx, membershipID); err != nil {
		return fmt.Errorf("removing membership %d: %w", membershipID, err)
	}
	logEvent(mm.events, mm.log, "member.removed", map[string]any{
		"project_id":    m.ProjectID,
		"user_id":       m.UserID,
		"membership_id": membershipID,
	})
	return nil
}

// MembersOfProject lists the memberships of a project.
func (mm *MembershipManager) MembersOfProject(ctx context.Context, projectID int64) ([]models.Membership, error) {
	if _, ok, err := mm.projects.GetProject(ctx, projectID); err != nil {
		return nil, fmt.Errorf("listing members of project %d: %w", projectID, err)
	} else if !ok {
		return nil, fmt.Errorf("listing members of project %d: %w", projectID, ErrProjectNotFound)
	}
	ms, err := mm.members.MembershipsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing members of project %d: %w", projectID, err)
	}
	return ms, nil
}

// ProjectsOfUser lists the memberships held by a user.
func (mm *MembershipManager) ProjectsOfUser(ctx context.Context, userID int64) ([]models.Membership, error) {
	ms, err := mm.members.MembershipsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing memberships of user %d: %w", userID, err)
	}
	return ms, nil
}

func (mm *MembershipManager) load(ctx context.Context, membershipID int64) (models.Membership, error) {
	if membershipID <= 0 {
		return models.Membership{}, invalidArgf("membership id is required")
	}
	m, ok, err := mm.members.GetMembership(ctx, membershipID)
	if err != nil {
		return models.Membership{}, err
	}
	if !ok {
		return models.Membership{}, ErrMembershipNotFound
	}
	return m, nil
}

// authorize loads the project and checks CanManageMembers.
func (mm *MembershipManager) authorize(ctx context.Context, actor *models.Actor, projectID int64) error {
	if projectID <= 0 {
		return invalidArgf("project id is required")
	}
	project, ok, err := mm.projects.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProjectNotFound
	}
	memberships, err := mm.members.MembershipsByProject(ctx, projectID)
	if err != nil {
		return err
	}
	if !CanManageMembers(actor, project, memberships) {
		return ErrForbidden
	}
	return nil
}
