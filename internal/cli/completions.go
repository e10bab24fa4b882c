package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/mpt/pkg/models"
)

// completeProjectIDs completes the first positional argument with project
// ids, using the project name as description.
func completeProjectIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if ProjectSvc == nil || len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	projects, err := ProjectSvc.ListProjects(cmdContext(cmd))
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var ids []string
	for _, p := range projects {
		id := strconv.FormatInt(p.ID, 10)
		if strings.HasPrefix(id, toComplete) {
			ids = append(ids, id+"\t"+p.Name)
		}
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}

// completeTaskIDs completes the first positional argument with task ids
// across all projects.
func completeTaskIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if ProjectSvc == nil || TaskSvc == nil || len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	ctx := cmdContext(cmd)
	projects, err := ProjectSvc.ListProjects(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var ids []string
	for _, p := range projects {
		tasks, err := TaskSvc.ListTasks(ctx, p.ID, nil)
		if err != nil {
			continue
		}
		for _, t := range tasks {
			id := strconv.FormatInt(t.ID, 10)
			if strings.HasPrefix(id, toComplete) {
				ids = append(ids, id+"\t"+string(t.Status)+": "+t.Name)
			}
		}
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}

// completeStatuses completes task status values.
func completeStatuses(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, 0, len(models.Statuses))
	for _, s := range models.Statuses {
		out = append(out, string(s))
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
