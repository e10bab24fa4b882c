// Package internal provides the App struct that wires all components of
// mpt together and initializes the CLI layer.
package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/valter-silva-au/mpt/internal/cli"
	"github.com/valter-silva-au/mpt/internal/core"
	"github.com/valter-silva-au/mpt/internal/observability"
	"github.com/valter-silva-au/mpt/internal/storage"
	"github.com/valter-silva-au/mpt/internal/storage/postgres"
	"github.com/valter-silva-au/mpt/pkg/models"
)

// EventLogFileName is the JSONL event log kept in the base directory.
const EventLogFileName = ".mpt_events.jsonl"

// stores groups the persistence interfaces the core services need. Both
// backends satisfy all of them.
type stores struct {
	projects    core.ProjectStore
	tasks       core.TaskStore
	members     core.MembershipStore
	assignments core.AssignmentStore
	history     core.HistoryStore
	close       func() error
}

// App holds all service dependencies for mpt.
type App struct {
	BasePath string
	Config   *models.GlobalConfig
	Logger   *slog.Logger

	// Configuration
	ConfigMgr core.ConfigurationManager

	// Core services
	Projects    *core.ProjectService
	Members     *core.MembershipManager
	Tasks       *core.TaskService
	Mutator     *core.TaskMutator
	Assignments *core.AssignmentService
	Policy      *core.AccessPolicy

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    *observability.WebhookNotifier

	closeStore func() error
}

// NewApp creates and wires all components of mpt. basePath is the directory
// holding .mptconfig and the file backend's data. Diagnostics go to logOut.
func NewApp(ctx context.Context, basePath string, logOut io.Writer) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg
	app.Logger = observability.NewLogger(cfg.Log.Level, cfg.Log.Format, logOut)

	// --- Storage layer ---
	st, err := openStores(ctx, app.Logger, basePath, cfg.Storage)
	if err != nil {
		return nil, err
	}
	app.closeStore = st.close

	// --- Observability ---
	var events core.EventLogger
	app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(basePath, EventLogFileName))
	if err != nil {
		// Non-fatal: run without metrics and alerts.
		app.Logger.Warn("event log unavailable", "error", err)
		app.EventLog = nil
	}
	if app.EventLog != nil {
		events = observability.NewRecorder(app.EventLog)
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, alertThresholds(cfg.Alerts))
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}

	var notifier core.AssignmentNotifier
	if cfg.Notifications.Enabled && cfg.Notifications.WebhookURL != "" {
		app.Notifier = observability.NewWebhookNotifier(cfg.Notifications.WebhookURL, cfg.Notifications.FrontendBaseURL)
		notifier = app.Notifier
	}

	// --- Core services ---
	app.Policy = core.NewAccessPolicy(st.projects, st.tasks, st.members)
	app.Projects = core.NewProjectService(st.projects, st.members, st.tasks, st.assignments, events, app.Logger)
	app.Members = core.NewMembershipManager(st.projects, st.members, events, app.Logger)
	app.Tasks = core.NewTaskService(st.projects, st.tasks, st.members, st.history, events, app.Logger)
	app.Mutator = core.NewTaskMutator(st.tasks, st.history, events, app.Logger)
	app.Assignments = core.NewAssignmentService(st.projects, st.tasks, st.members, st.assignments, notifier, events, app.Logger)

	// --- Wire CLI package-level variables ---
	cli.ProjectSvc = app.Projects
	cli.MemberMgr = app.Members
	cli.TaskSvc = app.Tasks
	cli.Mutator = app.Mutator
	cli.AssignSvc = app.Assignments
	cli.Policy = app.Policy
	cli.DefaultActor = nil
	if cfg.Actor.UserID > 0 || cfg.Actor.Admin {
		cli.DefaultActor = &models.Actor{ID: cfg.Actor.UserID, Admin: cfg.Actor.Admin}
	}

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = nil
	if app.Notifier != nil {
		cli.Notifier = app.Notifier
	}

	return app, nil
}

// openStores opens the backend named by cfg.Driver.
func openStores(ctx context.Context, log *slog.Logger, basePath string, cfg models.StorageConfig) (stores, error) {
	switch cfg.Driver {
	case "", "file":
		fs := storage.NewFileStore(basePath)
		return stores{
			projects:    fs,
			tasks:       fs,
			members:     fs,
			assignments: fs,
			history:     storage.NewHistoryLedger(basePath),
			close:       func() error { return nil },
		}, nil
	case "postgres":
		db, err := postgres.New(log, cfg.PostgresDSN)
		if err != nil {
			return stores{}, err
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return stores{}, err
		}
		return stores{
			projects:    db,
			tasks:       db,
			members:     db,
			assignments: db,
			history:     db,
			close:       db.Close,
		}, nil
	default:
		return stores{}, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// alertThresholds overlays the configured limits on the defaults.
func alertThresholds(cfg models.AlertConfig) observability.AlertThresholds {
	t := observability.DefaultAlertThresholds()
	if cfg.MaxAuditFailures > 0 {
		t.MaxAuditFailures = cfg.MaxAuditFailures
	}
	if cfg.MaxNotificationFailures > 0 {
		t.MaxNotificationFailures = cfg.MaxNotificationFailures
	}
	return t
}

// Close releases the event log file handle and the database connection.
// It is safe to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	var firstErr error
	if a.EventLog != nil {
		firstErr = a.EventLog.Close()
	}
	if a.closeStore != nil {
		if err := a.closeStore(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ResolveBasePath determines the mpt base directory. MPT_HOME wins; otherwise
// the nearest ancestor of the working directory holding .mptconfig; otherwise
// the working directory itself.
func ResolveBasePath() string {
	if home := os.Getenv("MPT_HOME"); home != "" {
		return home
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	for dir := cwd; ; {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return cwd
}
