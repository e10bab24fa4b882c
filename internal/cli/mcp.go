package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	mptmcp "github.com/valter-silva-au/mpt/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the mpt MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mpt MCP server on stdio",
	Long: `Start the mpt MCP server on stdio transport.

The server exposes mpt functionality as MCP tools that AI assistants can
call: get_task, list_tasks, update_task, update_task_status,
get_task_history, can_delete_project, can_access_task, get_metrics and
get_alerts. Every task tool takes the caller's actor_id.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}

		srv := mptmcp.NewServer(TaskSvc, Mutator, Policy, MetricsCalc, AlertEngine, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
