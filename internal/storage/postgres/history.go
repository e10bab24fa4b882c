package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/valter-silva-au/mpt/internal/core"
	"github.com/valter-silva-au/mpt/pkg/models"
)

const historyColumns = `id, task_id, changed_by, changed_at, change_description`

type historyRow struct {
	ID                string        `db:"id"`
	TaskID            int64         `db:"task_id"`
	ChangedBy         sql.NullInt64 `db:"changed_by"`
	ChangedAt         time.Time     `db:"changed_at"`
	ChangeDescription string        `db:"change_description"`
}

func (r historyRow) entry() models.HistoryEntry {
	return models.HistoryEntry{
		ID:                r.ID,
		TaskID:            r.TaskID,
		ChangedBy:         fromNullInt64(r.ChangedBy),
		Timestamp:         r.ChangedAt.UTC(),
		ChangeDescription: r.ChangeDescription,
	}
}

// AppendHistory inserts one audit row. An entry without an id gets a new
// UUID; a zero timestamp takes the current time.
func (db *DB) AppendHistory(ctx context.Context, e models.HistoryEntry) (models.HistoryEntry, error) {
	if e.TaskID <= 0 {
		return models.HistoryEntry{}, fmt.Errorf("history entry task id %d: %w", e.TaskID, core.ErrInvalidArgument)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	const q = `
		INSERT INTO task_history(id, task_id, changed_by, changed_at, change_description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + historyColumns

	var r historyRow
	if err := db.conn.GetContext(ctx, &r, q, e.ID, e.TaskID, toNullInt64(e.ChangedBy), e.Timestamp, e.ChangeDescription); err != nil {
		if isUniqueViolation(err) {
			return models.HistoryEntry{}, fmt.Errorf("history entry %s: %w", e.ID, core.ErrConflict)
		}
		return models.HistoryEntry{}, fmt.Errorf("insert history: %w", err)
	}
	return r.entry(), nil
}

func (db *DB) HistoryByTask(ctx context.Context, taskID int64) ([]models.HistoryEntry, error) {
	const q = `SELECT ` + historyColumns + ` FROM task_history WHERE task_id = $1 ORDER BY changed_at, id`

	var rows []historyRow
	if err := db.conn.SelectContext(ctx, &rows, q, taskID); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	out := make([]models.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry())
	}
	return out, nil
}
