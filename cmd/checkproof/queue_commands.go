package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"checkproof/internal/api"
	"checkproof/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect captures waiting for upload",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueCountCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending captures, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd, func(access queueaccess.Access) error {
				items, err := access.List(cmd.Context())
				if err != nil {
					return err
				}
				items = api.SortQueueItemsOldestFirst(items)
				if items == nil {
					items = []api.QueueItem{}
				}
				if ctx.json() {
					return writeJSON(cmd, api.QueueListResponse{Items: items})
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, tableSpec{
					headers: []string{"ID", "Address", "Taken", "Queued", "Size"},
					aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
					rows:    buildQueueListRows(items),
					footer:  []string{"", "", "", "Total", strconv.Itoa(len(items))},
				}.render())
				if !access.Live() {
					fmt.Fprintln(out, "Daemon not running; showing the queue database directly")
				}
				return nil
			})
		},
	}
}

func newQueueCountCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of pending captures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd, func(access queueaccess.Access) error {
				pending, err := access.Count(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.json() {
					return writeJSON(cmd, api.QueueCountResponse{Pending: pending})
				}
				fmt.Fprintln(cmd.OutOrStdout(), pending)
				return nil
			})
		},
	}
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one pending capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New("capture id is required")
			}
			return ctx.withQueue(cmd, func(access queueaccess.Access) error {
				item, err := access.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("capture %s not queued", id)
				}
				if ctx.json() {
					return writeJSON(cmd, item)
				}
				rows := [][]string{
					{"ID", item.ID},
					{"Address", strings.ReplaceAll(item.Address, "\n", ", ")},
					{"Taken", api.DisplayTime(item.DeviceTS)},
					{"Queued", api.DisplayTime(item.CreatedAt)},
					{"Size", api.HumanSize(item.SizeBytes)},
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
				return nil
			})
		},
	}
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		address := strings.SplitN(item.Address, "\n", 2)[0]
		rows = append(rows, []string{
			api.ShortID(item.ID),
			displayOrDash(address),
			api.DisplayTime(item.DeviceTS),
			api.DisplayTime(item.CreatedAt),
			api.HumanSize(item.SizeBytes),
		})
	}
	return rows
}
