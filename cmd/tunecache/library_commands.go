package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/tunecache/pkg/config"
	"github.com/marmos91/tunecache/pkg/librarycache"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Manage the offline snapshot of the library listing",
	}

	var filePath string
	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Store a library listing (JSON) as the offline snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if filePath == "" {
				return fmt.Errorf("--file is required")
			}
			var listing json.RawMessage
			if err := readJSONFile(filePath, &listing); err != nil {
				return err
			}
			return ctx.withLibrary(func(cache *librarycache.Cache) error {
				if err := cache.Save(listing); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Library snapshot saved")
				return nil
			})
		},
	}
	saveCmd.Flags().StringVarP(&filePath, "file", "f", "", "Library JSON file (\"-\" for stdin)")

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Print the offline snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(func(cache *librarycache.Cache) error {
				var listing json.RawMessage
				age, ok, err := cache.Load(&listing)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no usable library snapshot")
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Snapshot saved %s\n", humanize.Time(time.Now().Add(-age)))
				fmt.Fprintln(cmd.OutOrStdout(), string(listing))
				return nil
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the offline snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(func(cache *librarycache.Cache) error {
				if err := cache.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Library snapshot cleared")
				return nil
			})
		},
	}

	libraryCmd.AddCommand(saveCmd, loadCmd, clearCmd)
	return libraryCmd
}

// withLibrary opens the configured library cache for the duration of fn.
func (c *commandContext) withLibrary(fn func(*librarycache.Cache) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	cache, err := config.CreateLibraryCache(&cfg.LibraryCache)
	if err != nil {
		return fmt.Errorf("open library cache: %w", err)
	}
	if cache == nil {
		return fmt.Errorf("library cache is disabled (library_cache.enabled)")
	}
	defer func() { _ = cache.Close() }()

	return fn(cache)
}
