package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"voicebox/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List import attempts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(statuses)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, resp)
				}

				stdout := cmd.OutOrStdout()
				if len(resp.Imports) == 0 {
					fmt.Fprintln(stdout, "No imports recorded")
					return nil
				}

				rows := make([][]string, 0, len(resp.Imports))
				for _, record := range resp.Imports {
					detail := record.PackTitle
					if record.Status == "failed" {
						detail = record.ErrorMessage
					}
					rows = append(rows, []string{
						fmt.Sprintf("%d", record.ID),
						record.Status,
						record.SourceType,
						truncate(record.Source, 48),
						detail,
						record.CreatedAt.Local().Format(time.DateTime),
					})
				}
				table := renderTable(
					[]string{"ID", "Status", "Type", "Source", "Detail", "Started"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(stdout, table)
				return nil
			})
		},
	}
	historyCmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (running, succeeded, failed)")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished import records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ClearHistory()
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d import record(s)\n", resp.Removed)
				return nil
			})
		},
	}
	historyCmd.AddCommand(clearCmd)

	return historyCmd
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
