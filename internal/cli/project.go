package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/mpt/internal/core"
	"github.com/valter-silva-au/mpt/pkg/models"
)

var (
	projectDescription string
	projectStart       string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Long: `Create a project owned by the caller. The caller becomes the project's
first ADMIN member. Project names are unique.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		ctx, actor, err := actorContext(cmd)
		if err != nil {
			return err
		}
		start, err := core.ParseDateField(projectStart)
		if err != nil {
			return fmt.Errorf("parsing --start: %w", err)
		}

		project, err := ProjectSvc.CreateProject(ctx, actor, args[0], projectDescription, start)
		if err != nil {
			return err
		}
		fmt.Printf("Created project %d (%s)\n", project.ID, project.Name)
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project with its members, tasks and assignments",
	Long: `Delete a project. Only global administrators, the project creator and
project ADMIN members may delete a project. Task history is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		id, err := parseID("project", args[0])
		if err != nil {
			return err
		}
		ctx, actor, err := actorContext(cmd)
		if err != nil {
			return err
		}
		if err := ProjectSvc.DeleteProject(ctx, actor, id); err != nil {
			return err
		}
		fmt.Printf("Deleted project %d\n", id)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		projects, err := ProjectSvc.ListProjects(cmdContext(cmd))
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return nil
		}
		fmt.Printf("  %-6s %-24s %-8s %s\n", "ID", "NAME", "OWNER", "START")
		fmt.Printf("  %-6s %-24s %-8s %s\n", "--", "----", "-----", "-----")
		for _, p := range projects {
			fmt.Printf("  %-6d %-24s %-8d %s\n", p.ID, p.Name, p.CreatedBy, dateString(p.StartDate))
		}
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Show a project and its members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		id, err := parseID("project", args[0])
		if err != nil {
			return err
		}
		project, err := ProjectSvc.GetProject(cmdContext(cmd), id)
		if err != nil {
			return err
		}
		members, err := MemberMgr.MembersOfProject(cmdContext(cmd), id)
		if err != nil {
			return err
		}

		fmt.Printf("Project %d: %s\n", project.ID, project.Name)
		if project.Description != "" {
			fmt.Printf("  Description: %s\n", project.Description)
		}
		fmt.Printf("  Created by:  user %d\n", project.CreatedBy)
		fmt.Printf("  Created at:  %s\n", project.CreatedAt.Format("2006-01-02 15:04 UTC"))
		fmt.Printf("  Start date:  %s\n", dateString(project.StartDate))
		fmt.Printf("  Members:     %d\n", len(members))
		for _, m := range members {
			fmt.Printf("    #%-4d user %-6d %s\n", m.ID, m.UserID, m.Role)
		}
		return nil
	},
}

var projectStatsCmd = &cobra.Command{
	Use:   "stats <project-id>",
	Short: "Show task counts and progress of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		id, err := parseID("project", args[0])
		if err != nil {
			return err
		}
		stats, err := ProjectSvc.Stats(cmdContext(cmd), id)
		if err != nil {
			return err
		}
		fmt.Printf("Project %d\n", stats.ProjectID)
		fmt.Printf("  %-14s %d\n", "Total:", stats.Total)
		fmt.Printf("  %-14s %d\n", "Todo:", stats.Todo)
		fmt.Printf("  %-14s %d\n", "In progress:", stats.InProgress)
		fmt.Printf("  %-14s %d\n", "Done:", stats.Done)
		fmt.Printf("  %-14s %d%%\n", "Progress:", stats.Progress)
		return nil
	},
}

func dateString(d *models.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

func init() {
	projectCreateCmd.Flags().StringVar(&projectDescription, "description", "", "Project description")
	projectCreateCmd.Flags().StringVar(&projectStart, "start", "", "Start date (YYYY-MM-DD)")

	projectCmd.AddCommand(projectCreateCmd, projectDeleteCmd, projectListCmd, projectShowCmd, projectStatsCmd)
	rootCmd.AddCommand(projectCmd)
}
