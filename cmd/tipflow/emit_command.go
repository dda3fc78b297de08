package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"tipflow/internal/ingest"
	"tipflow/internal/queue"
)

func newEmitCommand(ctx *commandContext) *cobra.Command {
	var event ingest.Event
	var correlationID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Record a tip video upload event as a pending run",
		Long: "Record a tip/video-uploaded event directly in the run store. " +
			"A running daemon picks the run up on its next poll.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := strings.TrimSpace(correlationID)
			if id == "" {
				id = "cli-" + uuid.NewString()
			}
			return ctx.withStore(func(store *queue.Store) error {
				run, err := ingest.Enqueue(cmd.Context(), store, event, id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, map[string]string{"runId": run.ID, "status": string(run.Status)})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded run %s (%s)\n", run.ID, run.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&event.TipID, "tip", "", "Tip document id (omit for an unattached upload)")
	cmd.Flags().StringVar(&event.VideoResourceID, "video-resource", "", "Video resource document id")
	cmd.Flags().StringVar(&event.FileName, "file", "", "Uploaded file name")
	cmd.Flags().StringVar(&correlationID, "id", "", "Correlation id (defaults to a generated value)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the created run as JSON")
	_ = cmd.MarkFlagRequired("video-resource")
	return cmd
}
