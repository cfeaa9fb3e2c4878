package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"torrdrop/internal/ipc"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked descriptor files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.List(listStatuses)
				if err != nil {
					return err
				}
				if len(resp.Items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Inbox is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]column{
						{title: "ID", right: true},
						{title: "File"},
						{title: "Status"},
						{title: "Attempts", right: true},
						{title: "First Seen"},
					},
					buildListRows(resp.Items),
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func buildListRows(items []ipc.InboxItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			filepath.Base(item.Path),
			item.Status,
			strconv.Itoa(item.AttemptCount),
			item.FirstSeenAt.Local().Format(time.DateTime),
		})
	}
	return rows
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show details for a tracked descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Describe(id)
				if err != nil {
					return err
				}
				item := resp.Item
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:           %d\n", item.ID)
				fmt.Fprintf(out, "Path:         %s\n", item.Path)
				fmt.Fprintf(out, "Status:       %s\n", item.Status)
				fmt.Fprintf(out, "First seen:   %s\n", item.FirstSeenAt.Local().Format(time.RFC3339))
				fmt.Fprintf(out, "Size:         %d bytes\n", item.LastSize)
				fmt.Fprintf(out, "Attempts:     %d\n", item.AttemptCount)
				if item.JobID != "" {
					fmt.Fprintf(out, "Job ID:       %s\n", item.JobID)
				}
				if item.ArchivedPath != "" {
					fmt.Fprintf(out, "Moved to:     %s\n", item.ArchivedPath)
				}
				if item.ErrorMessage != "" {
					fmt.Fprintf(out, "Last error:   %s\n", item.ErrorMessage)
				}
				return nil
			})
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>...",
		Short: "Restore quarantined files for reprocessing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseItemID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				for _, id := range ids {
					resp, err := client.Retry(id)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Restored %s for reprocessing\n", filepath.Base(resp.Item.Path))
				}
				return nil
			})
		},
	}
}

func newPruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove records for archived files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Prune()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d archived record(s)\n", resp.Removed)
				return nil
			})
		},
	}
}

func parseItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid inbox item id %q", raw)
	}
	return id, nil
}
