package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"torrdrop/internal/inbox"
	"torrdrop/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and inbox status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Running:    %s\n", colorizeRunning(status.Running, shouldColorize(out)))
				fmt.Fprintf(out, "PID:        %d\n", status.PID)
				fmt.Fprintf(out, "Last cycle: %s\n", formatCycleTime(status.LastCycleAt))
				if status.LastError != "" {
					fmt.Fprintf(out, "Last error: %s\n", status.LastError)
				}
				fmt.Fprintf(out, "Database:   %s\n", status.InboxDBPath)
				fmt.Fprintf(out, "Lock file:  %s\n", status.LockPath)

				rows := buildStatusCountRows(status.Counts)
				if len(rows) == 0 {
					fmt.Fprintln(out, "Inbox is empty")
					return nil
				}
				fmt.Fprintln(out, renderTable([]column{{title: "Status"}, {title: "Count", right: true}}, rows))
				return nil
			})
		},
	}
}

func formatCycleTime(at time.Time) string {
	if at.IsZero() {
		return "never"
	}
	return at.Local().Format(time.RFC3339)
}

// buildStatusCountRows orders counts by workflow position so the table reads
// as a pipeline, with any unknown statuses appended alphabetically.
func buildStatusCountRows(counts map[string]int) [][]string {
	rows := make([][]string, 0, len(counts))
	seen := make(map[string]struct{}, len(counts))
	for _, status := range inbox.AllStatuses() {
		if count, ok := counts[string(status)]; ok {
			rows = append(rows, []string{string(status), fmt.Sprintf("%d", count)})
			seen[string(status)] = struct{}{}
		}
	}
	extras := make([]string, 0)
	for status := range counts {
		if _, ok := seen[status]; !ok {
			extras = append(extras, status)
		}
	}
	sort.Strings(extras)
	for _, status := range extras {
		rows = append(rows, []string{status, fmt.Sprintf("%d", counts[status])})
	}
	return rows
}
