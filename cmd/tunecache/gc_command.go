package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/tunecache/pkg/gc"
)

func newGCCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove album covers that no downloaded album references",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd.Context(), func(svc *services) error {
				collector := gc.NewCollector(svc.catalog, svc.orchestrator.Progress(), gc.Config{DryRun: dryRun})
				stats, err := collector.RunNow(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if dryRun {
					fmt.Fprintf(out, "%d orphaned covers (dry run, nothing deleted)\n", stats.OrphanedCount)
					return nil
				}
				fmt.Fprintf(out, "Deleted %d orphaned covers (%d failed)\n", stats.DeletedCount, stats.FailedCount)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report orphaned covers without deleting them")
	return cmd
}
