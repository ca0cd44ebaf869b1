package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/tunecache/pkg/eviction"
)

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <song|album> <id>",
		Short: "Remove a song, or an album with its songs and cover",
		Long: `Remove an offline item. Deleting an album also removes its songs, its
cover and its cached descriptor. Deleting something that is not stored
succeeds.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := eviction.ParseKind(args[0])
			if err != nil {
				return err
			}

			return ctx.withServices(cmd.Context(), func(svc *services) error {
				if !eviction.New(svc.catalog).DeleteItem(cmd.Context(), kind, args[1]) {
					return fmt.Errorf("failed to delete %s %s; retry to finish the removal", kind, args[1])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", kind, args[1])
				return nil
			})
		},
	}
}

func newPurgeCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove everything from the offline cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("purge removes every offline item; pass --yes to confirm")
			}
			return ctx.withServices(cmd.Context(), func(svc *services) error {
				n, err := eviction.New(svc.catalog).Purge(cmd.Context())
				if err != nil {
					return fmt.Errorf("purge stopped after %d records: %w", n, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d records\n", n)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the purge")
	return cmd
}
