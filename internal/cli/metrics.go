package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	mptmcp "github.com/valter-silva-au/mpt/internal/mcp"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display task and audit metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include task creation and update counts, status transitions, no-op
mutations, per-field change counts, history appends and audit failures.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (event log may be unavailable)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		if metricsJSON {
			data, err := json.MarshalIndent(metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting metrics as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Printf("  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Printf("  %-24s %d\n", "Projects created:", metrics.ProjectsCreated)
		fmt.Printf("  %-24s %d\n", "Projects deleted:", metrics.ProjectsDeleted)
		fmt.Printf("  %-24s %d\n", "Membership changes:", metrics.MembershipChanges)
		fmt.Printf("  %-24s %d\n", "Tasks created:", metrics.TasksCreated)
		fmt.Printf("  %-24s %d\n", "Tasks updated:", metrics.TasksUpdated)
		fmt.Printf("  %-24s %d\n", "Status changes:", metrics.StatusChanges)
		fmt.Printf("  %-24s %d\n", "No-op mutations:", metrics.NoopMutations)
		fmt.Printf("  %-24s %d\n", "History appended:", metrics.HistoryAppended)
		fmt.Printf("  %-24s %d\n", "Audit failures:", metrics.AuditFailures)
		fmt.Printf("  %-24s %d\n", "Assignments:", metrics.Assignments)
		fmt.Printf("  %-24s %d\n", "Notification failures:", metrics.NotificationFailures)

		printCounts("Status transitions:", metrics.StatusTransitions)
		printCounts("Field changes:", metrics.FieldChanges)

		if metrics.OldestEvent != nil {
			fmt.Printf("\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Printf("  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

// printCounts prints a sorted breakdown under a heading, or nothing when
// counts is empty.
func printCounts(heading string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("\n  %s\n", heading)
	for _, k := range keys {
		fmt.Printf("    %-22s %d\n", k+":", counts[k])
	}
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past. The empty string
// means seven days.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	if strings.TrimSpace(s) == "" {
		return now.AddDate(0, 0, -7), nil
	}
	return mptmcp.ParseSince(s, now)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}
