package cli

import (
	"github.com/valter-silva-au/mpt/internal/core"
	"github.com/valter-silva-au/mpt/internal/observability"
	"github.com/valter-silva-au/mpt/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	ProjectSvc *core.ProjectService
	MemberMgr  *core.MembershipManager
	TaskSvc    *core.TaskService
	Mutator    *core.TaskMutator
	AssignSvc  *core.AssignmentService
	Policy     *core.AccessPolicy

	// DefaultActor is the identity from .mptconfig, used when neither
	// --as nor --admin is given.
	DefaultActor *models.Actor
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
