package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/mpt/internal/core"
	"github.com/valter-silva-au/mpt/pkg/models"
)

var (
	taskName        string
	taskDescription string
	taskPriority    string
	taskStatus      string
	taskDue         string
	taskEnd         string
	taskListStatus  string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
	Long: `Create, inspect and change tasks.

Task commands require the caller to be a global administrator or a member of
the task's project. Every change records a history entry describing which
fields changed; a change that modifies nothing records nothing.`,
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <project-id> <name>",
	Short: "Create a task in a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		projectID, err := parseID("project", args[0])
		if err != nil {
			return err
		}
		ctx, actor, err := actorContext(cmd)
		if err != nil {
			return err
		}

		draft := core.TaskDraft{Name: args[1]}
		if cmd.Flags().Changed("description") {
			draft.Description = models.StringPtr(taskDescription)
		}
		if taskPriority != "" {
			if draft.Priority, err = core.ParsePriority(taskPriority); err != nil {
				return err
			}
		}
		if taskStatus != "" {
			if draft.Status, err = core.ParseStatus(taskStatus); err != nil {
				return err
			}
		}
		if draft.DueDate, err = core.ParseDateField(taskDue); err != nil {
			return fmt.Errorf("parsing --due: %w", err)
		}
		if draft.EndDate, err = core.ParseDateField(taskEnd); err != nil {
			return fmt.Errorf("parsing --end: %w", err)
		}

		task, err := TaskSvc.CreateTask(ctx, actor, projectID, draft)
		if err != nil {
			return err
		}
		fmt.Printf("Created task %d in project %d\n", task.ID, task.ProjectID)
		printTask(task)
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task and its assignments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		ctx, taskID, err := authorizeTask(cmd, args[0])
		if err != nil {
			return err
		}
		task, err := TaskSvc.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		assignments, err := AssignSvc.AssignmentsOfTask(ctx, taskID)
		if err != nil {
			return err
		}
		printTask(task)
		fmt.Printf("  Assigned:    %d member(s)\n", len(assignments))
		for _, a := range assignments {
			fmt.Printf("    membership %-4d since %s\n", a.MembershipID, a.AssignedAt.Format("2006-01-02"))
		}
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List the tasks of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		projectID, err := parseID("project", args[0])
		if err != nil {
			return err
		}
		ctx, actor, err := actorContext(cmd)
		if err != nil {
			return err
		}
		allowed, err := Policy.CanAccessProject(ctx, actor, projectID)
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("listing tasks of project %d: %w", projectID, core.ErrForbidden)
		}

		var filter *models.TaskStatus
		if taskListStatus != "" {
			st, err := core.ParseStatus(taskListStatus)
			if err != nil {
				return err
			}
			filter = &st
		}
		tasks, err := TaskSvc.ListTasks(ctx, projectID, filter)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}
		fmt.Printf("  %-6s %-12s %-7s %-11s %s\n", "ID", "STATUS", "PRI", "DUE", "NAME")
		fmt.Printf("  %-6s %-12s %-7s %-11s %s\n", "--", "------", "---", "---", "----")
		for _, t := range tasks {
			fmt.Printf("  %-6d %-12s %-7s %-11s %s\n", t.ID, t.Status, t.Priority, dateString(t.DueDate), t.Name)
		}
		return nil
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <task-id>",
	Short: "Update the fields of a task",
	Long: `Update the fields of a task. Only the flags given on the command line are
applied; pass --due "" or --end "" to clear a date.

  mpt task update 12 --name "Ship it" --priority high
  mpt task update 12 --due ""`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		update, err := taskUpdateFromFlags(cmd)
		if err != nil {
			return err
		}
		ctx, taskID, err := authorizeTask(cmd, args[0])
		if err != nil {
			return err
		}
		actor, _ := core.ContextActorResolver{}.ResolveActor(ctx)
		task, err := Mutator.UpdateTask(ctx, actor, taskID, update)
		if err := mutationError(err); err != nil {
			return err
		}
		fmt.Printf("Updated task %d\n", task.ID)
		printTask(task)
		return nil
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <task-id> <status>",
	Short: "Change the status of a task",
	Long: `Change the status of a task to TODO, IN_PROGRESS or DONE.

Setting the status a task already has changes nothing and records no history.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		status, err := core.ParseStatus(args[1])
		if err != nil {
			return err
		}
		ctx, taskID, err := authorizeTask(cmd, args[0])
		if err != nil {
			return err
		}
		actor, _ := core.ContextActorResolver{}.ResolveActor(ctx)
		task, err := Mutator.UpdateStatus(ctx, actor, taskID, status)
		if err := mutationError(err); err != nil {
			return err
		}
		fmt.Printf("Task %d is %s\n", task.ID, task.Status)
		return nil
	},
}

var taskHistoryCmd = &cobra.Command{
	Use:   "history <task-id>",
	Short: "Show the change history of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		ctx, taskID, err := authorizeTask(cmd, args[0])
		if err != nil {
			return err
		}
		entries, err := TaskSvc.History(ctx, taskID)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Printf("No history for task %d.\n", taskID)
			return nil
		}
		fmt.Printf("History of task %d (%d change(s))\n\n", taskID, len(entries))
		for _, e := range entries {
			by := "unknown"
			if e.ChangedBy != nil {
				by = fmt.Sprintf("user %d", *e.ChangedBy)
			}
			stamp := historyTimeStyle.Render(e.Timestamp.Format("2006-01-02 15:04:05 UTC"))
			fmt.Printf("  %s  %s\n    %s\n", stamp, by, e.ChangeDescription)
		}
		return nil
	},
}

var taskAssignCmd = &cobra.Command{
	Use:   "assign <task-id> <membership-id>",
	Short: "Assign a task to a project member",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		taskID, err := parseID("task", args[0])
		if err != nil {
			return err
		}
		membershipID, err := parseID("membership", args[1])
		if err != nil {
			return err
		}
		ctx, actor, err := actorContext(cmd)
		if err != nil {
			return err
		}
		a, err := AssignSvc.Assign(ctx, actor, taskID, membershipID)
		if err != nil {
			return err
		}
		fmt.Printf("Assigned task %d to membership %d (assignment %d)\n", a.TaskID, a.MembershipID, a.ID)
		return nil
	},
}

// authorizeTask parses the task id and checks that the caller may access
// it. The returned context carries the caller.
func authorizeTask(cmd *cobra.Command, arg string) (context.Context, int64, error) {
	taskID, err := parseID("task", arg)
	if err != nil {
		return nil, 0, err
	}
	ctx, actor, err := actorContext(cmd)
	if err != nil {
		return nil, 0, err
	}
	allowed, err := Policy.CanAccessTask(ctx, actor, taskID)
	if err != nil {
		return nil, 0, err
	}
	if !allowed {
		return nil, 0, fmt.Errorf("accessing task %d as user %d: %w", taskID, actor.ID, core.ErrForbidden)
	}
	return ctx, taskID, nil
}

// taskUpdateFromFlags builds a partial update from the flags that were
// given on the command line.
func taskUpdateFromFlags(cmd *cobra.Command) (core.TaskUpdate, error) {
	var u core.TaskUpdate
	flags := cmd.Flags()
	if flags.Changed("name") {
		u.Name = core.Some(taskName)
	}
	if flags.Changed("description") {
		u.Description = core.Some(taskDescription)
	}
	if flags.Changed("priority") {
		p, err := core.ParsePriority(taskPriority)
		if err != nil {
			return u, err
		}
		u.Priority = core.Some(p)
	}
	if flags.Changed("status") {
		s, err := core.ParseStatus(taskStatus)
		if err != nil {
			return u, err
		}
		u.Status = core.Some(s)
	}
	if flags.Changed("due") {
		d, err := core.ParseDateField(taskDue)
		if err != nil {
			return u, fmt.Errorf("parsing --due: %w", err)
		}
		u.DueDate = core.Some(d)
	}
	if flags.Changed("end") {
		d, err := core.ParseDateField(taskEnd)
		if err != nil {
			return u, fmt.Errorf("parsing --end: %w", err)
		}
		u.EndDate = core.Some(d)
	}
	return u, nil
}

// mutationError reports an incomplete audit trail as a warning; the task
// change itself was saved.
func mutationError(err error) error {
	if err == nil {
		return nil
	}
	if isAuditOnly(err) {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return nil
	}
	return err
}

func isAuditOnly(err error) bool {
	return errors.Is(err, core.ErrAuditFailed)
}

func printTask(t models.Task) {
	fmt.Printf("Task %d: %s\n", t.ID, t.Name)
	if t.Description != nil {
		fmt.Printf("  Description: %s\n", *t.Description)
	}
	fmt.Printf("  Project:     %d\n", t.ProjectID)
	fmt.Printf("  Status:      %s\n", styleForStatus(t.Status).Render(string(t.Status)))
	fmt.Printf("  Priority:    %s\n", t.Priority)
	fmt.Printf("  Due:         %s\n", dateString(t.DueDate))
	fmt.Printf("  End:         %s\n", dateString(t.EndDate))
	fmt.Printf("  Created by:  user %d\n", t.CreatedBy)
}

func init() {
	taskCreateCmd.Flags().StringVar(&taskDescription, "description", "", "Task description")
	taskCreateCmd.Flags().StringVar(&taskPriority, "priority", "", "Priority: LOW, MEDIUM or HIGH (default MEDIUM)")
	taskCreateCmd.Flags().StringVar(&taskStatus, "status", "", "Status: TODO, IN_PROGRESS or DONE (default TODO)")
	taskCreateCmd.Flags().StringVar(&taskDue, "due", "", "Due date (YYYY-MM-DD)")
	taskCreateCmd.Flags().StringVar(&taskEnd, "end", "", "End date (YYYY-MM-DD)")

	taskUpdateCmd.Flags().StringVar(&taskName, "name", "", "New name")
	taskUpdateCmd.Flags().StringVar(&taskDescription, "description", "", "New description")
	taskUpdateCmd.Flags().StringVar(&taskPriority, "priority", "", "New priority: LOW, MEDIUM or HIGH")
	taskUpdateCmd.Flags().StringVar(&taskStatus, "status", "", "New status: TODO, IN_PROGRESS or DONE")
	taskUpdateCmd.Flags().StringVar(&taskDue, "due", "", `New due date (YYYY-MM-DD), "" clears it`)
	taskUpdateCmd.Flags().StringVar(&taskEnd, "end", "", `New end date (YYYY-MM-DD), "" clears it`)

	taskListCmd.Flags().StringVar(&taskListStatus, "status", "", "Only list tasks with this status")
	_ = taskListCmd.RegisterFlagCompletionFunc("status", completeStatuses)

	for _, c := range []*cobra.Command{taskShowCmd, taskUpdateCmd, taskStatusCmd, taskHistoryCmd, taskAssignCmd} {
		c.ValidArgsFunction = completeTaskIDs
	}
	taskCreateCmd.ValidArgsFunction = completeProjectIDs
	taskListCmd.ValidArgsFunction = completeProjectIDs

	taskCmd.AddCommand(taskCreateCmd, taskShowCmd, taskListCmd, taskUpdateCmd, taskStatusCmd, taskHistoryCmd, taskAssignCmd)
	rootCmd.AddCommand(taskCmd)
}
