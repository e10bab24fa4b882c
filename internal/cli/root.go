package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/mpt/internal/core"
	"github.com/valter-silva-au/mpt/pkg/models"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var (
	actorAs    int64
	actorAdmin bool
)

var rootCmd = &cobra.Command{
	Use:   "mpt",
	Short: "mpt - multi-tenant project and task tracker",
	Long: `mpt tracks projects, their members and their tasks.

Every change to a task is authorized against the caller's project role and
recorded in a per-task audit history describing exactly which fields changed.

The caller is taken from actor.user_id in .mptconfig unless --as or --admin
is given.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mpt %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.PersistentFlags().Int64Var(&actorAs, "as", 0, "Act as this user id")
	rootCmd.PersistentFlags().BoolVar(&actorAdmin, "admin", false, "Act as a global administrator")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// actorContext resolves the caller from the flags or the configured default,
// places it in the command context and returns both.
func actorContext(cmd *cobra.Command) (context.Context, *models.Actor, error) {
	ctx := cmdContext(cmd)

	var actor *models.Actor
	switch {
	case actorAs > 0 || actorAdmin:
		actor = &models.Actor{ID: actorAs, Admin: actorAdmin}
	case DefaultActor != nil && (DefaultActor.ID > 0 || DefaultActor.Admin):
		a := *DefaultActor
		actor = &a
	}
	ctx = core.WithActor(ctx, actor)

	resolved, ok := core.ContextActorResolver{}.ResolveActor(ctx)
	if !ok {
		return nil, nil, fmt.Errorf("no actor: pass --as <user-id> or set actor.user_id in %s", core.ConfigFileName)
	}
	return ctx, resolved, nil
}

// cmdContext returns the command's context, or the background context when
// the command was not started through Execute.
func cmdContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

// parseID parses a positional id argument.
func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q: %w", kind, s, core.ErrInvalidArgument)
	}
	return id, nil
}

// requireServices fails when app initialization did not set the services
// a command depends on.
func requireServices() error {
	if ProjectSvc == nil || MemberMgr == nil || TaskSvc == nil || Mutator == nil || AssignSvc == nil || Policy == nil {
		return fmt.Errorf("services not initialized")
	}
	return nil
}
