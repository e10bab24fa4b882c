package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/mpt/pkg/models"
	"pgregory.net/rapid"
)

var trackedNames = []string{"name", "description", "priority", "status", "dueDate", "endDate"}

func optDateGenerator() *rapid.Generator[*models.Date] {
	return rapid.Custom(func(t *rapid.T) *models.Date {
		if rapid.Bool().Draw(t, "nilDate") {
			return nil
		}
		d := models.NewDate(
			rapid.IntRange(2020, 2030).Draw(t, "year"),
			time.Month(rapid.IntRange(1, 12).Draw(t, "month")),
			rapid.IntRange(1, 28).Draw(t, "day"),
		)
		return &d
	})
}

func taskGenerator() *rapid.Generator[models.Task] {
	return rapid.Custom(func(t *rapid.T) models.Task {
		task := models.Task{
			ID:        rapid.Int64Range(1, 100).Draw(t, "id"),
			ProjectID: rapid.Int64Range(1, 10).Draw(t, "projectID"),
			CreatedBy: rapid.Int64Range(1, 10).Draw(t, "createdBy"),
			Name:      rapid.StringMatching(`[A-Za-z ]{1,12}`).Draw(t, "name"),
			Priority:  rapid.SampledFrom(models.Priorities).Draw(t, "priority"),
			Status:    rapid.SampledFrom(models.Statuses).Draw(t, "status"),
			DueDate:   optDateGenerator().Draw(t, "due"),
			EndDate:   optDateGenerator().Draw(t, "end"),
		}
		if rapid.Bool().Draw(t, "hasDescription") {
			task.Description = models.StringPtr(rapid.StringMatching(`[a-z]{0,10}`).Draw(t, "description"))
		}
		return task
	})
}

// A task compared with a copy of itself has no diff.
func TestProperty_DiffOfCloneIsEmpty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		task := taskGenerator().Draw(rt, "task")
		if d := ComputeDiff(task, task.Clone()); d != "" {
			rt.Fatalf("ComputeDiff(task, clone) = %q, want empty", d)
		}
	})
}

// Field segments of a diff always appear in the fixed tracked order.
func TestProperty_DiffFollowsFixedOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		prev := taskGenerator().Draw(rt, "prev")
		next := taskGenerator().Draw(rt, "next")
		fields := DiffFields(prev, next)
		last := -1
		for _, f := range fields {
			idx := -1
			for i, n := range trackedNames {
				if n == f {
					idx = i
				}
			}
			if idx <= last {
				rt.Fatalf("field %q out of order in %v", f, fields)
			}
			last = idx
		}
		diff := ComputeDiff(prev, next)
		if (diff == "") != (len(fields) == 0) {
			rt.Fatalf("diff %q inconsistent with fields %v", diff, fields)
		}
	})
}

// Changing exactly one tracked field through UpdateTask yields one history
// entry that names that field and no other.
func TestProperty_SingleFieldChangeRecordsOnlyThatField(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		orig := taskGenerator().Draw(rt, "task")
		field := rapid.IntRange(0, len(trackedNames)-1).Draw(rt, "field")

		var update TaskUpdate
		switch trackedNames[field] {
		case "name":
			update.Name = Some(orig.Name + "!")
		case "description":
			if orig.Description == nil {
				update.Description = Some("set")
			} else {
				update.Description = Some(*orig.Description + "x")
			}
		case "priority":
			update.Priority = Some(otherPriority(orig.Priority))
		case "status":
			update.Status = Some(otherStatus(orig.Status))
		case "dueDate":
			update.DueDate = Some(otherDate(orig.DueDate))
		case "endDate":
			update.EndDate = Some(otherDate(orig.EndDate))
		}

		store := newMemStore()
		store.seedTask(orig)
		m := NewTaskMutator(store, store, nil, nil)
		if _, err := m.UpdateTask(context.Background(), nil, orig.ID, update); err != nil {
			rt.Fatalf("UpdateTask: %v", err)
		}
		if len(store.history) != 1 {
			rt.Fatalf("history entries = %d, want 1", len(store.history))
		}
		desc := store.history[0].ChangeDescription
		if !strings.HasPrefix(desc, trackedNames[field]+": ") {
			rt.Fatalf("description %q does not start with %q", desc, trackedNames[field])
		}
		if strings.Contains(desc, ", ") {
			rt.Fatalf("description %q names more than one field", desc)
		}
	})
}

// Re-applying a task's own values changes nothing and records nothing.
func TestProperty_NoChangeUpdateRecordsNothing(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		orig := taskGenerator().Draw(rt, "task")
		update := TaskUpdate{
			Name:     Some(orig.Name),
			Priority: Some(orig.Priority),
			Status:   Some(orig.Status),
			DueDate:  Some(orig.DueDate),
			EndDate:  Some(orig.EndDate),
		}
		if orig.Description != nil {
			update.Description = Some(*orig.Description)
		}

		store := newMemStore()
		store.seedTask(orig)
		m := NewTaskMutator(store, store, nil, nil)
		if _, err := m.UpdateTask(context.Background(), nil, orig.ID, update); err != nil {
			rt.Fatalf("UpdateTask: %v", err)
		}
		if _, err := m.UpdateStatus(context.Background(), nil, orig.ID, orig.Status); err != nil {
			rt.Fatalf("UpdateStatus: %v", err)
		}
		if len(store.history) != 0 {
			rt.Fatalf("history entries = %d, want 0", len(store.history))
		}
		if store.saves != 1 {
			rt.Fatalf("saves = %d, want 1 (UpdateTask only)", store.saves)
		}
	})
}

// UpdateTask never changes ProjectID or CreatedBy.
func TestProperty_UpdateTaskPreservesImmutableFields(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		orig := taskGenerator().Draw(rt, "task")
		update := TaskUpdate{
			ProjectID: Some(rapid.Int64().Draw(rt, "projectID")),
			CreatedBy: Some(rapid.Int64().Draw(rt, "createdBy")),
		}
		if rapid.Bool().Draw(rt, "withName") {
			update.Name = Some(rapid.String().Draw(rt, "name"))
		}
		if rapid.Bool().Draw(rt, "withStatus") {
			update.Status = Some(rapid.SampledFrom(models.Statuses).Draw(rt, "status"))
		}

		store := newMemStore()
		store.seedTask(orig)
		m := NewTaskMutator(store, store, nil, nil)
		got, err := m.UpdateTask(context.Background(), nil, orig.ID, update)
		if err != nil {
			rt.Fatalf("UpdateTask: %v", err)
		}
		if got.ProjectID != orig.ProjectID || got.CreatedBy != orig.CreatedBy {
			rt.Fatalf("immutable fields changed: got %d/%d, want %d/%d",
				got.ProjectID, got.CreatedBy, orig.ProjectID, orig.CreatedBy)
		}
	})
}

func otherPriority(p models.Priority) models.Priority {
	if p == models.PriorityHigh {
		return models.PriorityLow
	}
	return models.PriorityHigh
}

func otherStatus(s models.TaskStatus) models.TaskStatus {
	if s == models.StatusDone {
		return models.StatusTodo
	}
	return models.StatusDone
}

func otherDate(d *models.Date) *models.Date {
	if d == nil {
		return date(2031, 1, 1)
	}
	return nil
}
