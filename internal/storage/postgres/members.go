package postgres

import (
	"context"
	"fmt"

	"github.com/valter-silva-au/mpt/internal/core"
	"github.com/valter-silva-au/mpt/pkg/models"
)

const memberColumns = `id, project_id, user_id, role, joined_at`

func (db *DB) MembershipsByProject(ctx context.Context, projectID int64) ([]models.Membership, error) {
	const q = `SELECT ` + memberColumns + ` FROM project_members WHERE project_id = $1 ORDER BY id`
	return db.selectMemberships(ctx, q, projectID)
}

func (db *DB) MembershipsByUser(ctx context.Context, userID int64) ([]models.Membership, error) {
	const q = `SELECT ` + memberColumns + ` FROM project_members WHERE user_id = $1 ORDER BY id`
	return db.selectMemberships(ctx, q, userID)
}

func (db *DB) selectMemberships(ctx context.Context, q string, arg int64) ([]models.Membership, error) {
	var out []models.Membership
	if err := db.conn.SelectContext(ctx, &out, q, arg); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	for i := range out {
		out[i].JoinedAt = out[i].JoinedAt.UTC()
	}
	return out, nil
}

func (db *DB) GetMembership(ctx context.Context, id int64) (models.Membership, bool, error) {
	const q = `SELECT ` + memberColumns + ` FROM project_members WHERE id = $1`

	var m models.Membership
	if err := db.conn.GetContext(ctx, &m, q, id); err != nil {
		if isNoRows(err) {
			return models.Membership{}, false, nil
		}
		return models.Membership{}, false, fmt.Errorf("get membership: %w", err)
	}
	m.JoinedAt = m.JoinedAt.UTC()
	return m, true, nil
}

func (db *DB) AddMembership(ctx context.Context, m models.Membership) (models.Membership, error) {
	const q = `
		INSERT INTO project_members(project_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING ` + memberColumns

	var out models.Membership
	if err := db.conn.GetContext(ctx, &out, q, m.ProjectID, m.UserID, string(m.Role)); err != nil {
		switch {
		case isUniqueViolation(err):
			return models.Membership{}, core.ErrAlreadyMember
		case isForeignKeyViolation(err):
			return models.Membership{}, core.ErrProjectNotFound
		case isCheckViolation(err):
			return models.Membership{}, fmt.Errorf("insert membership: %w", core.ErrInvalidArgument)
		}
		return models.Membership{}, fmt.Errorf("insert membership: %w", err)
	}
	out.JoinedAt = out.JoinedAt.UTC()
	return out, nil
}

// UpdateMembership changes the role only.
func (db *DB) UpdateMembership(ctx context.Context, m models.Membership) (models.Membership, error) {
	const q = `UPDATE project_members SET role = $2 WHERE id = $1 RETURNING ` + memberColumns

	var out models.Membership
	if err := db.conn.GetContext(ctx, &out, q, m.ID, string(m.Role)); err != nil {
		if isNoRows(err) {
			return models.Membership{}, core.ErrMembershipNotFound
		}
		return models.Membership{}, fmt.Errorf("update membership: %w", err)
	}
	out.JoinedAt = out.JoinedAt.UTC()
	return out, nil
}

func (db *DB) RemoveMembership(ctx context.Context, id int64) error {
	const q = `DELETE FROM project_members WHERE id = $1`

	res, err := db.conn.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrMembershipNotFound
	}
	return nil
}

func (db *DB) RemoveMembershipsByProject(ctx context.Context, projectID int64) error {
	const q = `DELETE FROM project_members WHERE project_id = $1`
	if _, err := db.conn.ExecContext(ctx, q, projectID); err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}
	return nil
}
