package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"podscribe/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent processing runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.History.Enabled {
				fmt.Fprintln(out, "Run history is disabled (history.enabled = false)")
				return nil
			}
			journal, err := history.OpenStore(cfg.History.Path)
			if err != nil {
				return err
			}
			defer journal.Close()

			runs, err := journal.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "Status", "Model", "OK", "Failed", "Total", "Duration"},
				historyRows(runs, time.Now()),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to show")
	return cmd
}

func historyRows(runs []history.Run, now time.Time) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := "-"
		if run.FinishedAt != nil {
			duration = run.Duration().Round(time.Second).String()
		}
		rows = append(rows, []string{
			humanize.RelTime(run.StartedAt, now, "ago", "from now"),
			run.Status,
			run.Model,
			strconv.Itoa(run.Succeeded),
			strconv.Itoa(run.Failed),
			strconv.Itoa(run.Total),
			duration,
		})
	}
	return rows
}
