package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/tunecache/pkg/catalog"
	"github.com/marmos91/tunecache/pkg/store"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var albumID string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List offline songs and albums",
	}

	songsCmd := &cobra.Command{
		Use:   "songs",
		Short: "List downloaded songs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd.Context(), func(svc *services) error {
				var (
					songs []*catalog.DownloadedSong
					err   error
				)
				if albumID != "" {
					songs, err = svc.catalog.AlbumSongs(cmd.Context(), albumID)
				} else {
					songs, err = svc.catalog.Songs(cmd.Context())
				}
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(songs))
				for _, s := range songs {
					rows = append(rows, []string{
						s.ID,
						s.Title,
						s.Artist,
						s.AlbumID,
						s.ContentType(),
						humanize.Bytes(uint64(s.Size)),
						humanize.Time(s.DownloadedAt),
					})
				}
				return writeRows(cmd.OutOrStdout(),
					[]string{"ID", "Title", "Artist", "Album", "Type", "Size", "Downloaded"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
			})
		},
	}
	songsCmd.Flags().StringVar(&albumID, "album", "", "Only songs of this album")

	albumsCmd := &cobra.Command{
		Use:   "albums",
		Short: "List downloaded albums",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd.Context(), func(svc *services) error {
				albums, err := svc.catalog.Albums(cmd.Context())
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(albums))
				for _, a := range albums {
					stored, err := svc.catalog.AlbumSongs(cmd.Context(), a.AlbumID)
					if err != nil {
						return err
					}
					rows = append(rows, []string{
						a.AlbumID,
						a.Title,
						a.Artist,
						fmt.Sprintf("%d/%d", len(stored), a.TotalTracks),
						humanize.Time(a.DownloadedAt),
					})
				}
				return writeRows(cmd.OutOrStdout(),
					[]string{"ID", "Title", "Artist", "Tracks", "Downloaded"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
			})
		},
	}

	listCmd.AddCommand(songsCmd, albumsCmd)
	return listCmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show record counts and payload sizes per collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd.Context(), func(svc *services) error {
				start := time.Now()
				stats, err := svc.catalog.Stats(cmd.Context())
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(store.Collections)+1)
				for _, c := range store.Collections {
					cs := stats.Collections[c]
					rows = append(rows, []string{
						string(c),
						strconv.Itoa(cs.Records),
						humanize.Bytes(uint64(cs.PayloadBytes)),
					})
				}
				rows = append(rows, []string{
					"total",
					strconv.Itoa(stats.TotalRecords()),
					humanize.Bytes(uint64(stats.TotalPayloadBytes())),
				})

				if err := writeRows(cmd.OutOrStdout(),
					[]string{"Collection", "Records", "Payload"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight}); err != nil {
					return err
				}
				if isTerminal(cmd.OutOrStdout()) {
					fmt.Fprintf(cmd.OutOrStdout(), "Backend: %s (scanned in %s)\n", svc.backend.Name(), time.Since(start).Round(time.Millisecond))
				}
				return nil
			})
		},
	}
}
