package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/valter-silva-au/mpt/internal/core"
	"github.com/valter-silva-au/mpt/pkg/models"
)

const assignmentColumns = `id, task_id, membership_id, assigned_by, assigned_at`

type assignmentRow struct {
	ID           int64         `db:"id"`
	TaskID       int64         `db:"task_id"`
	MembershipID int64         `db:"membership_id"`
	AssignedBy   sql.NullInt64 `db:"assigned_by"`
	AssignedAt   time.Time     `db:"assigned_at"`
}

func (r assignmentRow) assignment() models.Assignment {
	return models.Assignment{
		ID:           r.ID,
		TaskID:       r.TaskID,
		MembershipID: r.MembershipID,
		AssignedBy:   fromNullInt64(r.AssignedBy),
		AssignedAt:   r.AssignedAt.UTC(),
	}
}

func (db *DB) FindAssignment(ctx context.Context, taskID, membershipID int64) (models.Assignment, bool, error) {
	const q = `SELECT ` + assignmentColumns + ` FROM task_assignments WHERE task_id = $1 AND membership_id = $2`

	var r assignmentRow
	if err := db.conn.GetContext(ctx, &r, q, taskID, membershipID); err != nil {
		if isNoRows(err) {
			return models.Assignment{}, false, nil
		}
		return models.Assignment{}, false, fmt.Errorf("find assignment: %w", err)
	}
	return r.assignment(), true, nil
}

func (db *DB) GetAssignment(ctx context.Context, id int64) (models.Assignment, bool, error) {
	const q = `SELECT ` + assignmentColumns + ` FROM task_assignments WHERE id = $1`

	var r assignmentRow
	if err := db.conn.GetContext(ctx, &r, q, id); err != nil {
		if isNoRows(err) {
			return models.Assignment{}, false, nil
		}
		return models.Assignment{}, false, fmt.Errorf("get assignment: %w", err)
	}
	return r.assignment(), true, nil
}

func (db *DB) CreateAssignment(ctx context.Context, a models.Assignment) (models.Assignment, error) {
	const q = `
		INSERT INTO task_assignments(task_id, membership_id, assigned_by)
		VALUES ($1, $2, $3)
		RETURNING ` + assignmentColumns

	var r assignmentRow
	if err := db.conn.GetContext(ctx, &r, q, a.TaskID, a.MembershipID, toNullInt64(a.AssignedBy)); err != nil {
		switch {
		case isUniqueViolation(err):
			return models.Assignment{}, core.ErrAlreadyAssigned
		case isForeignKeyViolation(err):
			return models.Assignment{}, fmt.Errorf("insert assignment: %w", core.ErrNotFound)
		}
		return models.Assignment{}, fmt.Errorf("insert assignment: %w", err)
	}
	return r.assignment(), nil
}

func (db *DB) DeleteAssignment(ctx context.Context, id int64) error {
	const q = `DELETE FROM task_assignments WHERE id = $1`

	res, err := db.conn.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrAssignmentNotFound
	}
	return nil
}

func (db *DB) AssignmentsByTask(ctx context.Context, taskID int64) ([]models.Assignment, error) {
	const q = `SELECT ` + assignmentColumns + ` FROM task_assignments WHERE task_id = $1 ORDER BY id`

	var rows []assignmentRow
	if err := db.conn.SelectContext(ctx, &rows, q, taskID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	out := make([]models.Assignment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.assignment())
	}
	return out, nil
}
