package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"checkproof/internal/api"
	"checkproof/internal/ipc"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Upload every queued capture now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Retry()
				if err != nil {
					return fmt.Errorf("retry: %w", err)
				}
				if ctx.json() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, resp.Message)
				if rows := buildRetryRows(resp.Items); len(rows) > 0 {
					fmt.Fprint(out, renderTable([]string{"Capture", "Result"}, rows, nil))
				}
				return nil
			})
		},
	}
}

func buildRetryRows(items []api.RetryItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		result := "uploaded"
		if item.Error != "" {
			result = item.Error
		}
		rows = append(rows, []string{api.ShortID(item.ID), result})
	}
	return rows
}
