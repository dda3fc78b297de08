package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tipflow/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var runID string
	var level string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print recent daemon log records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var filters []logs.Filter
			if runID != "" {
				filters = append(filters, logs.RunFilter(runID))
			}
			if level != "" {
				filters = append(filters, logs.LevelFilter(level))
			}

			tailCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			out := cmd.OutOrStdout()
			return logs.Tail(tailCtx, cfg.LogFilePath(), logs.TailOptions{
				Lines:  lines,
				Follow: follow,
				Filter: logs.All(filters...),
			}, func(line string) { fmt.Fprintln(out, line) })
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing records to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new records")
	cmd.Flags().StringVar(&runID, "run", "", "Only records for this run id or prefix")
	cmd.Flags().StringVar(&level, "level", "", "Only records at or above this level")
	return cmd
}
