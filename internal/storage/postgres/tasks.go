package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/valter-silva-au/mpt/internal/core"
	"github.com/valter-silva-au/mpt/pkg/models"
)

const taskColumns = `id, project_id, created_by, name, description, priority, status, due_date, end_date`

type taskRow struct {
	ID          int64          `db:"id"`
	ProjectID   int64          `db:"project_id"`
	CreatedBy   int64          `db:"created_by"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	Priority    string         `db:"priority"`
	Status      string         `db:"status"`
	DueDate     sql.NullTime   `db:"due_date"`
	EndDate     sql.NullTime   `db:"end_date"`
}

func (r taskRow) task() models.Task {
	return models.Task{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		CreatedBy:   r.CreatedBy,
		Name:        r.Name,
		Description: fromNullString(r.Description),
		Priority:    models.Priority(r.Priority),
		Status:      models.TaskStatus(r.Status),
		DueDate:     fromNullTime(r.DueDate),
		EndDate:     fromNullTime(r.EndDate),
	}
}

// GetTask returns the task with the given id, or false when absent.
func (db *DB) GetTask(ctx context.Context, id int64) (models.Task, bool, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	var r taskRow
	if err := db.conn.GetContext(ctx, &r, q, id); err != nil {
		if isNoRows(err) {
			return models.Task{}, false, nil
		}
		return models.Task{}, false, fmt.Errorf("get task: %w", err)
	}
	return r.task(), true, nil
}

// SaveTask writes the mutable fields of t. ProjectID and CreatedBy are not
// part of the UPDATE.
func (db *DB) SaveTask(ctx context.Context, t models.Task) (models.Task, error) {
	const q = `
		UPDATE tasks
		SET name = $2,
		    description = $3,
		    priority = $4,
		    status = $5,
		    due_date = $6,
		    end_date = $7
		WHERE id = $1
		RETURNING ` + taskColumns

	var r taskRow
	err := db.conn.GetContext(ctx, &r, q,
		t.ID, t.Name, toNullString(t.Description), string(t.Priority), string(t.Status),
		toNullTime(t.DueDate), toNullTime(t.EndDate))
	if err != nil {
		if isNoRows(err) {
			return models.Task{}, core.ErrTaskNotFound
		}
		if isCheckViolation(err) {
			return models.Task{}, fmt.Errorf("update task: %w", core.ErrInvalidArgument)
		}
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	return r.task(), nil
}

// CreateTask inserts t and returns it with its new id.
func (db *DB) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	const q = `
		INSERT INTO tasks(project_id, created_by, name, description, priority, status, due_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + taskColumns

	var r taskRow
	err := db.conn.GetContext(ctx, &r, q,
		t.ProjectID, t.CreatedBy, t.Name, toNullString(t.Description), string(t.Priority), string(t.Status),
		toNullTime(t.DueDate), toNullTime(t.EndDate))
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Task{}, core.ErrProjectNotFound
		}
		if isCheckViolation(err) {
			return models.Task{}, fmt.Errorf("insert task: %w", core.ErrInvalidArgument)
		}
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return r.task(), nil
}

// ListTasksByProject returns the tasks of a project ordered by id.
func (db *DB) ListTasksByProject(ctx context.Context, projectID int64) ([]models.Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = $1 ORDER BY id`

	var rows []taskRow
	if err := db.conn.SelectContext(ctx, &rows, q, projectID); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := make([]models.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.task())
	}
	return out, nil
}

// DeleteTasksByProject removes every task of a project.
func (db *DB) DeleteTasksByProject(ctx context.Context, projectID int64) error {
	const q = `DELETE FROM tasks WHERE project_id = $1`
	if _, err := db.conn.ExecContext(ctx, q, projectID); err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	return nil
}

// DeleteAssignmentsByTasks removes the assignments of the given tasks.
func (db *DB) DeleteAssignmentsByTasks(ctx context.Context, taskIDs []int64) error {
	if len(taskIDs) == 0 {
		return nil
	}
	const q = `DELETE FROM task_assignments WHERE task_id = ANY($1)`
	if _, err := db.conn.ExecContext(ctx, q, taskIDs); err != nil {
		return fmt.Errorf("delete assignments: %w", err)
	}
	return nil
}
