package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/valter-silva-au/mpt/internal/core"
	"github.com/valter-silva-au/mpt/internal/observability"
	"github.com/valter-silva-au/mpt/internal/storage"
	"github.com/valter-silva-au/mpt/pkg/models"
)

// cliFixture wires real services over a temporary file store.
type cliFixture struct {
	store    *storage.FileStore
	eventLog observability.EventLog
	project  models.Project
	task     models.Task
}

// setupServices replaces the package service vars with services over a
// fresh store holding project "alpha" (ADMIN user 1, MEMBER user 2) and a
// TODO task "write docs". User 3 belongs to nothing. The previous vars are
// restored when the test ends.
func setupServices(t *testing.T) *cliFixture {
	t.Helper()
	dir := t.TempDir()
	store := storage.NewFileStore(dir)
	history := storage.NewHistoryLedger(dir)
	el, err := observability.NewJSONLEventLog(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = el.Close() })
	events := observability.NewRecorder(el)

	origProject, origMember, origTask, origMutator := ProjectSvc, MemberMgr, TaskSvc, Mutator
	origAssign, origPolicy, origActor := AssignSvc, Policy, DefaultActor
	origLog, origAlerts, origMetrics, origNotifier := EventLog, AlertEngine, MetricsCalc, Notifier
	t.Cleanup(func() {
		ProjectSvc, MemberMgr, TaskSvc, Mutator = origProject, origMember, origTask, origMutator
		AssignSvc, Policy, DefaultActor = origAssign, origPolicy, origActor
		EventLog, AlertEngine, MetricsCalc, Notifier = origLog, origAlerts, origMetrics, origNotifier
	})

	ProjectSvc = core.NewProjectService(store, store, store, store, events, nil)
	MemberMgr = core.NewMembershipManager(store, store, events, nil)
	TaskSvc = core.NewTaskService(store, store, store, history, events, nil)
	Mutator = core.NewTaskMutator(store, history, events, nil)
	AssignSvc = core.NewAssignmentService(store, store, store, store, nil, events, nil)
	Policy = core.NewAccessPolicy(store, store, store)
	DefaultActor = nil
	EventLog = el
	MetricsCalc = observability.NewMetricsCalculator(el)
	AlertEngine = observability.NewAlertEngine(el, observability.DefaultAlertThresholds())
	Notifier = nil

	ctx := context.Background()
	admin := &models.Actor{ID: 1}
	project, err := ProjectSvc.CreateProject(ctx, admin, "alpha", "", nil)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := MemberMgr.AddMember(ctx, admin, project.ID, 2, "MEMBER"); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	due := models.NewDate(2025, 3, 1)
	task, err := TaskSvc.CreateTask(ctx, admin, project.ID, core.TaskDraft{Name: "write docs", DueDate: &due})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return &cliFixture{store: store, eventLog: el, project: project, task: task}
}

// actAs sets the global actor flags for the duration of the test.
func actAs(t *testing.T, id int64, admin bool) {
	t.Helper()
	origAs, origAdmin := actorAs, actorAdmin
	t.Cleanup(func() { actorAs, actorAdmin = origAs, origAdmin })
	actorAs, actorAdmin = id, admin
}

// setFlags sets flags on cmd as if they were given on the command line and
// resets every flag of cmd when the test ends.
func setFlags(t *testing.T, cmd *cobra.Command, kv ...string) {
	t.Helper()
	t.Cleanup(func() { resetFlags(cmd) })
	for i := 0; i+1 < len(kv); i += 2 {
		if err := cmd.Flags().Set(kv[i], kv[i+1]); err != nil {
			t.Fatalf("setting --%s: %v", kv[i], err)
		}
	}
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

// captureStdout captures stdout output during fn execution.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = origStdout

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading pipe: %v", err)
	}
	return string(out)
}

func actorOf(id int64) *models.Actor {
	return &models.Actor{ID: id}
}

func findProject(t *testing.T, name string) (models.Project, error) {
	t.Helper()
	projects, err := ProjectSvc.ListProjects(context.Background())
	if err != nil {
		return models.Project{}, err
	}
	for _, p := range projects {
		if p.Name == name {
			return p, nil
		}
	}
	return models.Project{}, fmt.Errorf("project %q not found", name)
}
