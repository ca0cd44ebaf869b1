package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/tunecache/pkg/playback"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var (
		outputPath string
		cover      bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve a downloaded song (or album cover) into a playback reference",
		Long: `Resolve a stored item into a playback reference and print it.

References only live as long as the process that minted them; use
--output to export the bytes, or 'tunecache serve' to play them over HTTP.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd.Context(), func(svc *services) error {
				resolver := playback.NewResolver(svc.catalog, nil)

				var (
					ref *playback.Ref
					err error
				)
				if cover {
					ref, err = resolver.ResolveCover(cmd.Context(), args[0])
				} else {
					ref, err = resolver.Resolve(cmd.Context(), args[0])
				}
				if err != nil {
					return fmt.Errorf("resolve %s: %w", args[0], err)
				}
				defer resolver.Release(ref.URL)

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s\t%s\t%s\n", ref.URL, ref.MimeType, humanize.Bytes(uint64(ref.Size)))

				if outputPath == "" {
					return nil
				}
				return exportRef(resolver.Registry(), ref, outputPath)
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the resolved bytes to this file")
	cmd.Flags().BoolVar(&cover, "cover", false, "Resolve the cover of the album with this id")
	return cmd
}

func exportRef(registry *playback.Registry, ref *playback.Ref, path string) error {
	r, _, err := registry.Open(ref.URL)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
