package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/valter-silva-au/mpt/internal/core"
	"github.com/valter-silva-au/mpt/pkg/models"
)

var (
	_ core.ProjectStore    = (*DB)(nil)
	_ core.TaskStore       = (*DB)(nil)
	_ core.MembershipStore = (*DB)(nil)
	_ core.AssignmentStore = (*DB)(nil)
	_ core.HistoryStore    = (*DB)(nil)
)

func TestPGErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		unique bool
		fk     bool
		check  bool
	}{
		{"unique", &pgconn.PgError{Code: "23505"}, true, false, false},
		{"foreign key", &pgconn.PgError{Code: "23503"}, false, true, false},
		{"check", &pgconn.PgError{Code: "23514"}, false, false, true},
		{"wrapped unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true, false, false},
		{"other", errors.New("boom"), false, false, false},
		{"nil", nil, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.unique {
				t.Errorf("isUniqueViolation = %v, want %v", got, tt.unique)
			}
			if got := isForeignKeyViolation(tt.err); got != tt.fk {
				t.Errorf("isForeignKeyViolation = %v, want %v", got, tt.fk)
			}
			if got := isCheckViolation(tt.err); got != tt.check {
				t.Errorf("isCheckViolation = %v, want %v", got, tt.check)
			}
		})
	}
}

func TestIsNoRows(t *testing.T) {
	if !isNoRows(fmt.Errorf("get: %w", sql.ErrNoRows)) {
		t.Error("wrapped sql.ErrNoRows not detected")
	}
	if isNoRows(errors.New("other")) {
		t.Error("unrelated error detected as no rows")
	}
}

func TestNullConversions(t *testing.T) {
	if v := toNullTime(nil); v.Valid {
		t.Error("nil date should be NULL")
	}
	d := models.NewDate(2024, time.February, 29)
	nt := toNullTime(&d)
	if !nt.Valid || !nt.Time.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("toNullTime = %+v", nt)
	}
	if back := fromNullTime(nt); back == nil || *back != d {
		t.Errorf("fromNullTime = %v, want %v", back, d)
	}
	if fromNullTime(sql.NullTime{}) != nil {
		t.Error("NULL date should be nil")
	}

	empty := ""
	if ns := toNullString(&empty); !ns.Valid || ns.String != "" {
		t.Errorf("empty string should be a valid empty value, got %+v", ns)
	}
	if toNullString(nil).Valid {
		t.Error("nil string should be NULL")
	}
	if s := fromNullString(sql.NullString{Valid: true}); s == nil || *s != "" {
		t.Errorf("fromNullString = %v, want pointer to empty", s)
	}

	id := int64(7)
	if n := fromNullInt64(toNullInt64(&id)); n == nil || *n != 7 {
		t.Errorf("int64 round trip = %v", n)
	}
	if fromNullInt64(toNullInt64(nil)) != nil {
		t.Error("nil int64 should stay nil")
	}
}

// The tests below run against a live database named by
// MPT_TEST_POSTGRES_DSN and are skipped otherwise.

func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("MPT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MPT_TEST_POSTGRES_DSN not set")
	}
	db, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)), dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func uniqueName(t *testing.T) string {
	return fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
}

func TestDB_TaskLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p, err := db.CreateProject(ctx, models.Project{Name: uniqueName(t), CreatedBy: 1})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	t.Cleanup(func() { _ = db.DeleteProject(context.Background(), p.ID) })

	if _, err := db.CreateProject(ctx, models.Project{Name: p.Name, CreatedBy: 1}); !errors.Is(err, core.ErrProjectExists) {
		t.Errorf("duplicate project: err = %v", err)
	}

	due := models.NewDate(2025, time.June, 1)
	task, err := db.CreateTask(ctx, models.Task{
		ProjectID: p.ID, CreatedBy: 1, Name: "write", Priority: models.PriorityHigh,
		Status: models.StatusTodo, DueDate: &due,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Description != nil || task.DueDate == nil || *task.DueDate != due {
		t.Errorf("created = %+v", task)
	}

	task.Description = models.StringPtr("")
	task.DueDate = nil
	task.Status = models.StatusDone
	saved, err := db.SaveTask(ctx, task)
	if err != nil {
		t.Fatalf("SaveTask: %v", err)
	}
	if saved.Description == nil || *saved.Description != "" || saved.DueDate != nil || saved.Status != models.StatusDone {
		t.Errorf("saved = %+v", saved)
	}

	if _, err := db.SaveTask(ctx, models.Task{ID: -1, Priority: models.PriorityLow, Status: models.StatusTodo}); !errors.Is(err, core.ErrTaskNotFound) {
		t.Errorf("save missing task: err = %v", err)
	}
	if _, ok, err := db.GetTask(ctx, -1); ok || err != nil {
		t.Errorf("GetTask missing = (%v, %v)", ok, err)
	}
}

func TestDB_MembershipsAndAssignments(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p, err := db.CreateProject(ctx, models.Project{Name: uniqueName(t), CreatedBy: 1})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	t.Cleanup(func() { _ = db.DeleteProject(context.Background(), p.ID) })

	m, err := db.AddMembership(ctx, models.Membership{ProjectID: p.ID, UserID: 42, Role: models.RoleMember})
	if err != nil {
		t.Fatalf("AddMembership: %v", err)
	}
	if _, err := db.AddMembership(ctx, models.Membership{ProjectID: p.ID, UserID: 42, Role: models.RoleAdmin}); !errors.Is(err, core.ErrAlreadyMember) {
		t.Errorf("duplicate membership: err = %v", err)
	}
	m.Role = models.RoleObserver
	if updated, err := db.UpdateMembership(ctx, m); err != nil || updated.Role != models.RoleObserver {
		t.Errorf("UpdateMembership = %+v, %v", updated, err)
	}

	task, err := db.CreateTask(ctx, models.Task{ProjectID: p.ID, CreatedBy: 1, Name: "t", Priority: models.PriorityLow, Status: models.StatusTodo})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	a, err := db.CreateAssignment(ctx, models.Assignment{TaskID: task.ID, MembershipID: m.ID})
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	if _, err := db.CreateAssignment(ctx, models.Assignment{TaskID: task.ID, MembershipID: m.ID}); !errors.Is(err, core.ErrAlreadyAssigned) {
		t.Errorf("duplicate assignment: err = %v", err)
	}
	if found, ok, err := db.FindAssignment(ctx, task.ID, m.ID); err != nil || !ok || found.ID != a.ID {
		t.Errorf("FindAssignment = %+v, %v, %v", found, ok, err)
	}
	if err := db.DeleteAssignment(ctx, a.ID); err != nil {
		t.Fatalf("DeleteAssignment: %v", err)
	}
	if err := db.DeleteAssignment(ctx, a.ID); !errors.Is(err, core.ErrAssignmentNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
}

func TestDB_HistoryOutlivesTask(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p, err := db.CreateProject(ctx, models.Project{Name: uniqueName(t), CreatedBy: 1})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	task, err := db.CreateTask(ctx, models.Task{ProjectID: p.ID, CreatedBy: 1, Name: "t", Priority: models.PriorityLow, Status: models.StatusTodo})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Millisecond)
	by := int64(1)
	if _, err := db.AppendHistory(ctx, models.HistoryEntry{TaskID: task.ID, ChangedBy: &by, Timestamp: base.Add(time.Second), ChangeDescription: "status: TODO -> DONE"}); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	if _, err := db.AppendHistory(ctx, models.HistoryEntry{TaskID: task.ID, Timestamp: base, ChangeDescription: `name: "a" -> "t"`}); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}

	if err := db.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}

	entries, err := db.HistoryByTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("HistoryByTask: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].ChangedBy != nil || entries[1].ChangedBy == nil || *entries[1].ChangedBy != 1 {
		t.Errorf("entries out of order or ChangedBy wrong: %+v", entries)
	}
}
