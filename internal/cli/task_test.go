package cli

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/valter-silva-au/mpt/internal/core"
	"github.com/valter-silva-au/mpt/pkg/models"
)

func taskArg(f *cliFixture) []string {
	return []string{strconv.FormatInt(f.task.ID, 10)}
}

func historyOf(t *testing.T, f *cliFixture) []models.HistoryEntry {
	t.Helper()
	entries, err := TaskSvc.History(context.Background(), f.task.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	return entries
}

func TestTaskCreateCmd(t *testing.T) {
	f := setupServices(t)
	actAs(t, 2, false)
	setFlags(t, taskCreateCmd, "priority", "high", "due", "2025-04-01", "description", "")

	var err error
	out := captureStdout(t, func() {
		err = taskCreateCmd.RunE(taskCreateCmd, []string{strconv.FormatInt(f.project.ID, 10), "review"})
	})
	if err != nil {
		t.Fatalf("RunE: %v", err)
	}
	for _, want := range []string{"Created task", "review", "HIGH", "TODO", "2025-04-01", "Description: \n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTaskCreateCmd_OutsiderForbidden(t *testing.T) {
	f := setupServices(t)
	actAs(t, 3, false)

	err := taskCreateCmd.RunE(taskCreateCmd, []string{strconv.FormatInt(f.project.ID, 10), "sneaky"})
	if !errors.Is(err, core.ErrForbidden) {
		t.Errorf("err = %v, want forbidden", err)
	}
}

func TestTaskUpdateCmd_RecordsDiff(t *testing.T) {
	f := setupServices(t)
	actAs(t, 2, false)
	setFlags(t, taskUpdateCmd, "name", "write more docs", "due", "")

	var err error
	out := captureStdout(t, func() {
		err = taskUpdateCmd.RunE(taskUpdateCmd, taskArg(f))
	})
	if err != nil {
		t.Fatalf("RunE: %v", err)
	}
	if !strings.Contains(out, "write more docs") || !strings.Contains(out, "Due:         -") {
		t.Errorf("output:\n%s", out)
	}

	entries := historyOf(t, f)
	if len(entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(entries))
	}
	want := `name: "write docs" -> "write more docs", dueDate: 2025-03-01 -> null`
	if entries[0].ChangeDescription != want {
		t.Errorf("description = %q, want %q", entries[0].ChangeDescription, want)
	}
	if entries[0].ChangedBy == nil || *entries[0].ChangedBy != 2 {
		t.Errorf("changed by = %v, want 2", entries[0].ChangedBy)
	}
}

func TestTaskUpdateCmd_NoFlagsRecordsNothing(t *testing.T) {
	f := setupServices(t)
	actAs(t, 1, false)
	resetFlags(taskUpdateCmd)

	captureStdout(t, func() {
		if err := taskUpdateCmd.RunE(taskUpdateCmd, taskArg(f)); err != nil {
			t.Errorf("RunE: %v", err)
		}
	})
	if n := len(historyOf(t, f)); n != 0 {
		t.Errorf("history entries = %d, want 0", n)
	}
}

func TestTaskUpdateCmd_SameValueRecordsNothing(t *testing.T) {
	f := setupServices(t)
	actAs(t, 1, false)
	setFlags(t, taskUpdateCmd, "name", "write docs", "priority", "medium")

	captureStdout(t, func() {
		if err := taskUpdateCmd.RunE(taskUpdateCmd, taskArg(f)); err != nil {
			t.Errorf("RunE: %v", err)
		}
	})
	if n := len(historyOf(t, f)); n != 0 {
		t.Errorf("history entries = %d, want 0", n)
	}
}

func TestTaskUpdateCmd_Errors(t *testing.T) {
	f := setupServices(t)

	t.Run("outsider", func(t *testing.T) {
		actAs(t, 3, false)
		setFlags(t, taskUpdateCmd, "name", "x")
		err := taskUpdateCmd.RunE(taskUpdateCmd, taskArg(f))
		if !errors.Is(err, core.ErrForbidden) {
			t.Errorf("err = %v, want forbidden", err)
		}
	})
	t.Run("missing task", func(t *testing.T) {
		actAs(t, 1, false)
		setFlags(t, taskUpdateCmd, "name", "x")
		err := taskUpdateCmd.RunE(taskUpdateCmd, []string{"999"})
		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("err = %v, want not found", err)
		}
	})
	t.Run("bad priority", func(t *testing.T) {
		actAs(t, 1, false)
		setFlags(t, taskUpdateCmd, "priority", "urgent")
		err := taskUpdateCmd.RunE(taskUpdateCmd, taskArg(f))
		if !errors.Is(err, core.ErrInvalidArgument) {
			t.Errorf("err = %v, want invalid argument", err)
		}
	})
	t.Run("bad date", func(t *testing.T) {
		actAs(t, 1, false)
		setFlags(t, taskUpdateCmd, "end", "31/12/2025")
		err := taskUpdateCmd.RunE(taskUpdateCmd, taskArg(f))
		if err == nil || !strings.Contains(err.Error(), "--end") {
			t.Errorf("err = %v, want --end parse error", err)
		}
	})
	if n := len(historyOf(t, f)); n != 0 {
		t.Errorf("history entries = %d, want 0 after failed updates", n)
	}
}

func TestTaskStatusCmd_IdempotentNoop(t *testing.T) {
	f := setupServices(t)
	actAs(t, 2, false)

	captureStdout(t, func() {
		if err := taskStatusCmd.RunE(taskStatusCmd, append(taskArg(f), "in-progress")); err != nil {
			t.Fatalf("RunE: %v", err)
		}
		if err := taskStatusCmd.RunE(taskStatusCmd, append(taskArg(f), "IN_PROGRESS")); err != nil {
			t.Fatalf("RunE (repeat): %v", err)
		}
	})

	entries := historyOf(t, f)
	if len(entries) != 1 || entries[0].ChangeDescription != "status: TODO -> IN_PROGRESS" {
		t.Errorf("history = %+v", entries)
	}
}

func TestTaskStatusCmd_InvalidStatus(t *testing.T) {
	f := setupServices(t)
	actAs(t, 1, false)
	err := taskStatusCmd.RunE(taskStatusCmd, append(taskArg(f), "BLOCKED"))
	if !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("err = %v, want invalid argument", err)
	}
}

func TestTaskHistoryCmd(t *testing.T) {
	f := setupServices(t)
	actAs(t, 1, false)

	out := captureStdout(t, func() {
		if err := taskHistoryCmd.RunE(taskHistoryCmd, taskArg(f)); err != nil {
			t.Fatalf("RunE: %v", err)
		}
	})
	if !strings.Contains(out, "No history") {
		t.Errorf("output = %q", out)
	}

	if _, err := Mutator.UpdateStatus(context.Background(), &models.Actor{ID: 1}, f.task.ID, models.StatusDone); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	out = captureStdout(t, func() {
		if err := taskHistoryCmd.RunE(taskHistoryCmd, taskArg(f)); err != nil {
			t.Fatalf("RunE: %v", err)
		}
	})
	if !strings.Contains(out, "status: TODO -> DONE") || !strings.Contains(out, "user 1") {
		t.Errorf("output:\n%s", out)
	}
}

func TestTaskHistoryCmd_OutsiderForbidden(t *testing.T) {
	f := setupServices(t)
	actAs(t, 3, false)
	if err := taskHistoryCmd.RunE(taskHistoryCmd, taskArg(f)); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("err = %v, want forbidden", err)
	}
}

func TestTaskShowCmd_GlobalAdmin(t *testing.T) {
	f := setupServices(t)
	actAs(t, 0, true)

	out := captureStdout(t, func() {
		if err := taskShowCmd.RunE(taskShowCmd, taskArg(f)); err != nil {
			t.Fatalf("RunE: %v", err)
		}
	})
	if !strings.Contains(out, "write docs") || !strings.Contains(out, "Assigned:    0 member(s)") {
		t.Errorf("output:\n%s", out)
	}
}

func TestTaskListCmd(t *testing.T) {
	f := setupServices(t)
	actAs(t, 2, false)
	project := []string{strconv.FormatInt(f.project.ID, 10)}

	out := captureStdout(t, func() {
		if err := taskListCmd.RunE(taskListCmd, project); err != nil {
			t.Fatalf("RunE: %v", err)
		}
	})
	if !strings.Contains(out, "write docs") {
		t.Errorf("output:\n%s", out)
	}

	setFlags(t, taskListCmd, "status", "done")
	out = captureStdout(t, func() {
		if err := taskListCmd.RunE(taskListCmd, project); err != nil {
			t.Fatalf("RunE: %v", err)
		}
	})
	if !strings.Contains(out, "No tasks found.") {
		t.Errorf("filtered output:\n%s", out)
	}

	actAs(t, 3, false)
	if err := taskListCmd.RunE(taskListCmd, project); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("outsider err = %v, want forbidden", err)
	}
}

func TestTaskAssignCmd(t *testing.T) {
	f := setupServices(t)
	actAs(t, 1, false)
	members, err := MemberMgr.MembersOfProject(context.Background(), f.project.ID)
	if err != nil {
		t.Fatalf("MembersOfProject: %v", err)
	}
	var memberID int64
	for _, m := range members {
		if m.UserID == 2 {
			memberID = m.ID
		}
	}
	args := append(taskArg(f), strconv.FormatInt(memberID, 10))

	out := captureStdout(t, func() {
		if err := taskAssignCmd.RunE(taskAssignCmd, args); err != nil {
			t.Fatalf("RunE: %v", err)
		}
	})
	if !strings.Contains(out, "Assigned task") {
		t.Errorf("output = %q", out)
	}
	if err := taskAssignCmd.RunE(taskAssignCmd, args); !errors.Is(err, core.ErrConflict) {
		t.Errorf("second assign err = %v, want conflict", err)
	}
}

func TestTaskUpdateFromFlags_Presence(t *testing.T) {
	resetFlags(taskUpdateCmd)
	setFlags(t, taskUpdateCmd, "description", "", "due", "", "end", "2025-05-05")

	u, err := taskUpdateFromFlags(taskUpdateCmd)
	if err != nil {
		t.Fatalf("taskUpdateFromFlags: %v", err)
	}
	if u.Name.Set || u.Priority.Set || u.Status.Set {
		t.Errorf("unset flags reported present: %+v", u)
	}
	if d, ok := u.Description.Get(); !ok || d != "" {
		t.Errorf("description = %q, %v; want explicit empty", d, ok)
	}
	if d, ok := u.DueDate.Get(); !ok || d != nil {
		t.Errorf("due = %v, %v; want explicit clear", d, ok)
	}
	if d, ok := u.EndDate.Get(); !ok || d == nil || d.String() != "2025-05-05" {
		t.Errorf("end = %v, %v", d, ok)
	}
}

func TestMutationError(t *testing.T) {
	if err := mutationError(nil); err != nil {
		t.Errorf("mutationError(nil) = %v", err)
	}
	if err := mutationError(core.ErrAuditFailed); err != nil {
		t.Errorf("audit failure should be reported as a warning, got %v", err)
	}
	if err := mutationError(core.ErrTaskNotFound); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("mutationError(not found) = %v", err)
	}
}
