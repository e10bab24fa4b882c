package core

import (
	"context"
	"errors"
	"testing"

	"github.com/valter-silva-au/mpt/pkg/models"
)

func newProjectService(store *memStore) (*ProjectService, *recordingEvents) {
	events := &recordingEvents{}
	return NewProjectService(store, store, store, store, events, nil), events
}

func TestCreateProject_CreatorBecomesAdmin(t *testing.T) {
	store := newMemStore()
	svc, events := newProjectService(store)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, &models.Actor{ID: 10}, "  Apollo ", "moon", date(2025, 1, 1))
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.Name != "Apollo" || p.CreatedBy != 10 || p.CreatedAt.IsZero() {
		t.Errorf("project = %+v", p)
	}
	ms, _ := store.MembershipsByProject(ctx, p.ID)
	if len(ms) != 1 || ms[0].UserID != 10 || ms[0].Role != models.RoleAdmin {
		t.Errorf("memberships = %+v, want creator as ADMIN", ms)
	}
	if !events.has("project.created") {
		t.Errorf("events = %v, want project.created", events.events)
	}
}

func TestCreateProject_Validation(t *testing.T) {
	store := newMemStore()
	svc, _ := newProjectService(store)
	ctx := context.Background()

	if _, err := svc.CreateProject(ctx, nil, "x", "", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil actor: err = %v, want ErrInvalidArgument", err)
	}
	if _, err := svc.CreateProject(ctx, &models.Actor{ID: 1}, "  ", "", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("blank name: err = %v, want ErrInvalidArgument", err)
	}
	if _, err := svc.CreateProject(ctx, &models.Actor{ID: 1}, "dup", "", nil); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.CreateProject(ctx, &models.Actor{ID: 2}, "dup", "", nil); !errors.Is(err, ErrProjectExists) {
		t.Errorf("duplicate: err = %v, want ErrProjectExists", err)
	}
}

func TestCreateProject_MembershipFailureRemovesProject(t *testing.T) {
	store := newMemStore()
	store.memberErr = errors.New("membership store down")
	svc, events := newProjectService(store)
	ctx := context.Background()

	if _, err := svc.CreateProject(ctx, &models.Actor{ID: 10}, "Apollo", "", nil); !errors.Is(err, store.memberErr) {
		t.Fatalf("err = %v, want membership error", err)
	}
	projects, _ := store.ListProjects(ctx)
	if len(projects) != 0 {
		t.Errorf("projects = %+v, want none left behind", projects)
	}
	if _, ok, _ := store.GetProjectByName(ctx, "Apollo"); ok {
		t.Error("project still resolvable by name")
	}
	if events.has("project.created") {
		t.Error("project.created emitted for a failed create")
	}
}

func TestDeleteProject_Authorization(t *testing.T) {
	store := newMemStore()
	store.seedProject(models.Project{ID: 1, CreatedBy: 99})
	member := store.seedMember(models.Membership{ProjectID: 1, UserID: 20, Role: models.RoleMember})
	svc, _ := newProjectService(store)
	ctx := context.Background()

	if err := svc.DeleteProject(ctx, &models.Actor{ID: 20}, 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("member: err = %v, want ErrForbidden", err)
	}

	member.Role = models.RoleAdmin
	store.members[member.ID] = member
	if err := svc.DeleteProject(ctx, &models.Actor{ID: 20}, 1); err != nil {
		t.Fatalf("project admin: %v", err)
	}
	if err := svc.DeleteProject(ctx, &models.Actor{ID: 20}, 1); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("second delete: err = %v, want ErrProjectNotFound", err)
	}
}

func TestDeleteProject_NotFoundBeforeForbidden(t *testing.T) {
	store := newMemStore()
	svc, _ := newProjectService(store)
	if err := svc.DeleteProject(context.Background(), nil, 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteProject_CascadesButKeepsHistory(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	svc, events := newProjectService(store)
	p, err := svc.CreateProject(ctx, &models.Actor{ID: 10}, "p", "", nil)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	task, _ := store.CreateTask(ctx, models.Task{ProjectID: p.ID, Name: "t", Status: models.StatusTodo})
	ms, _ := store.MembershipsByProject(ctx, p.ID)
	_, _ = store.CreateAssignment(ctx, models.Assignment{TaskID: task.ID, MembershipID: ms[0].ID})
	_, _ = store.AppendHistory(ctx, models.HistoryEntry{ID: "h1", TaskID: task.ID, ChangeDescription: "status: TODO -> DONE"})

	if err := svc.DeleteProject(ctx, &models.Actor{ID: 10}, p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if len(store.tasks) != 0 || len(store.members) != 0 || len(store.assignments) != 0 || len(store.projects) != 0 {
		t.Errorf("leftovers: tasks=%d members=%d assignments=%d projects=%d",
			len(store.tasks), len(store.members), len(store.assignments), len(store.projects))
	}
	if len(store.history) != 1 {
		t.Errorf("history entries = %d, want 1 retained", len(store.history))
	}
	if !events.has("project.deleted") {
		t.Errorf("events = %v, want project.deleted", events.events)
	}
}

func TestStats(t *testing.T) {
	store := newMemStore()
	store.seedProject(models.Project{ID: 1, CreatedBy: 1})
	for i, s := range []models.TaskStatus{models.StatusTodo, models.StatusDone, models.StatusDone, models.StatusInProgress, models.StatusTodo, models.StatusTodo} {
		store.seedTask(models.Task{ID: int64(10 + i), ProjectID: 1, Status: s})
	}
	svc, _ := newProjectService(store)

	stats, err := svc.Stats(context.Background(), 1)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := models.ProjectStats{ProjectID: 1, Total: 6, Todo: 3, InProgress: 1, Done: 2, Progress: 33}
	if stats != want {
		t.Errorf("Stats = %+v, want %+v", stats, want)
	}
}

func TestComputeStats_Empty(t *testing.T) {
	if s := ComputeStats(4, nil); s.Progress != 0 || s.Total != 0 {
		t.Errorf("ComputeStats(empty) = %+v", s)
	}
}

func TestListProjects_SortedByID(t *testing.T) {
	store := newMemStore()
	store.seedProject(models.Project{ID: 3, Name: "c"})
	store.seedProject(models.Project{ID: 1, Name: "a"})
	store.seedProject(models.Project{ID: 2, Name: "b"})
	svc, _ := newProjectService(store)

	ps, err := svc.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	for i, p := range ps {
		if p.ID != int64(i+1) {
			t.Fatalf("ListProjects order = %+v", ps)
		}
	}
}
