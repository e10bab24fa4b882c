package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/valter-silva-au/mpt/internal/core"
	"github.com/valter-silva-au/mpt/pkg/models"
)

const projectColumns = `id, name, description, start_date, created_at, created_by`

type projectRow struct {
	ID          int64        `db:"id"`
	Name        string       `db:"name"`
	Description string       `db:"description"`
	StartDate   sql.NullTime `db:"start_date"`
	CreatedAt   time.Time    `db:"created_at"`
	CreatedBy   int64        `db:"created_by"`
}

func (r projectRow) project() models.Project {
	return models.Project{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		StartDate:   fromNullTime(r.StartDate),
		CreatedAt:   r.CreatedAt.UTC(),
		CreatedBy:   r.CreatedBy,
	}
}

func (db *DB) GetProject(ctx context.Context, id int64) (models.Project, bool, error) {
	const q = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	return db.getProject(ctx, q, id)
}

func (db *DB) GetProjectByName(ctx context.Context, name string) (models.Project, bool, error) {
	const q = `SELECT ` + projectColumns + ` FROM projects WHERE name = $1`
	return db.getProject(ctx, q, name)
}

func (db *DB) getProject(ctx context.Context, q string, arg any) (models.Project, bool, error) {
	var r projectRow
	if err := db.conn.GetContext(ctx, &r, q, arg); err != nil {
		if isNoRows(err) {
			return models.Project{}, false, nil
		}
		return models.Project{}, false, fmt.Errorf("get project: %w", err)
	}
	return r.project(), true, nil
}

// CreateProject inserts p. A zero CreatedAt takes the database clock.
func (db *DB) CreateProject(ctx context.Context, p models.Project) (models.Project, error) {
	const q = `
		INSERT INTO projects(name, description, start_date, created_at, created_by)
		VALUES ($1, $2, $3, COALESCE($4, now()), $5)
		RETURNING ` + projectColumns

	var createdAt sql.NullTime
	if !p.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: p.CreatedAt, Valid: true}
	}

	var r projectRow
	err := db.conn.GetContext(ctx, &r, q, p.Name, p.Description, toNullTime(p.StartDate), createdAt, p.CreatedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Project{}, core.ErrProjectExists
		}
		return models.Project{}, fmt.Errorf("insert project: %w", err)
	}
	return r.project(), nil
}

// DeleteProject removes the project row. Tasks, memberships and
// assignments go with it through ON DELETE CASCADE; history stays.
func (db *DB) DeleteProject(ctx context.Context, id int64) error {
	const q = `DELETE FROM projects WHERE id = $1`

	res, err := db.conn.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrProjectNotFound
	}
	return nil
}

func (db *DB) ListProjects(ctx context.Context) ([]models.Project, error) {
	const q = `SELECT ` + projectColumns + ` FROM projects ORDER BY id`

	var rows []projectRow
	if err := db.conn.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	out := make([]models.Project, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.project())
	}
	return out, nil
}
