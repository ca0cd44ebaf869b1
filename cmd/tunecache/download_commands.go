package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/tunecache/pkg/catalog"
	"github.com/marmos91/tunecache/pkg/download"
)

// albumRequest is the JSON document accepted by `download album`.
type albumRequest struct {
	Album catalog.Album  `json:"album"`
	Songs []catalog.Song `json:"songs"`
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download songs, albums and images for offline use",
	}

	downloadCmd.AddCommand(newDownloadSongCommand(ctx))
	downloadCmd.AddCommand(newDownloadAlbumCommand(ctx))
	downloadCmd.AddCommand(newDownloadImageCommand(ctx))

	return downloadCmd
}

func newDownloadSongCommand(ctx *commandContext) *cobra.Command {
	var (
		song     catalog.Song
		filePath string
	)

	cmd := &cobra.Command{
		Use:   "song",
		Short: "Download a single song",
		Example: `  tunecache download song --id 42 --title Intro --artist Band --url https://cdn.example.com/42.mp3
  tunecache download song --file song.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if filePath != "" {
				if err := readJSONFile(filePath, &song); err != nil {
					return err
				}
			}
			if strings.TrimSpace(song.ID) == "" || strings.TrimSpace(song.URL) == "" {
				return fmt.Errorf("a song needs --id and --url (or a --file with both)")
			}

			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			return ctx.withServices(runCtx, func(svc *services) error {
				unsubscribe := reportProgress(svc.orchestrator.Progress(), cmd.ErrOrStderr())
				defer unsubscribe()

				if !svc.orchestrator.DownloadSong(runCtx, song) {
					return fmt.Errorf("download of song %s failed", song.ID)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Downloaded song %s\n", song.ID)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&song.ID, "id", "", "Song id")
	flags.StringVar(&song.Title, "title", "", "Song title")
	flags.StringVar(&song.Artist, "artist", "", "Song artist")
	flags.StringVar(&song.AlbumID, "album-id", "", "Album the song belongs to")
	flags.StringVar(&song.URL, "url", "", "Audio URL (http, https or s3)")
	flags.StringVar(&song.AlbumCover, "cover", "", "Album cover URL")
	flags.StringVar(&song.FileName, "file-name", "", "File name to record (default <title>.mp3)")
	flags.Float64Var(&song.Duration, "duration", 0, "Duration in seconds")
	flags.StringVarP(&filePath, "file", "f", "", "Read the song from a JSON file (\"-\" for stdin)")
	return cmd
}

func newDownloadAlbumCommand(ctx *commandContext) *cobra.Command {
	var (
		filePath string
		perSong  bool
	)

	cmd := &cobra.Command{
		Use:   "album",
		Short: "Download an album and its songs",
		Long: `Download an album from a JSON document of the form

  {"album": {"id": "...", "title": "...", "artist": "...", "coverUrl": "..."},
   "songs": [{"id": "...", "title": "...", "url": "..."}]}

Songs are downloaded one at a time. A song that fails is skipped; the album
is recorded as long as the batch was not cancelled. By default the cover and
descriptors are cached too; --per-song downloads each song as a standalone
song instead, without cover or descriptors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if filePath == "" {
				return fmt.Errorf("--file is required")
			}
			var req albumRequest
			if err := readJSONFile(filePath, &req); err != nil {
				return err
			}

			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			return ctx.withServices(runCtx, func(svc *services) error {
				unsubscribe := reportProgress(svc.orchestrator.Progress(), cmd.ErrOrStderr())
				defer unsubscribe()

				runAlbum := svc.orchestrator.DownloadAlbumDirect
				if perSong {
					runAlbum = svc.orchestrator.DownloadAlbum
				}
				if !runAlbum(runCtx, req.Album, req.Songs) {
					if runCtx.Err() != nil {
						return runCtx.Err()
					}
					// A partial album is still recorded.
					recorded, err := svc.catalog.IsAlbumDownloaded(runCtx, req.Album.ID)
					if err != nil {
						return err
					}
					if !recorded {
						return fmt.Errorf("download of album %s failed", req.Album.ID)
					}
				}

				stored, err := svc.catalog.AlbumSongs(runCtx, req.Album.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Downloaded album %s (%d/%d songs)\n",
					req.Album.ID, len(stored), len(req.Songs))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Album JSON file (\"-\" for stdin)")
	cmd.Flags().BoolVar(&perSong, "per-song", false, "Download each song on its own, without cover or descriptors")
	return cmd
}

func newDownloadImageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "image <url>",
		Short: "Cache an image by URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd.Context(), func(svc *services) error {
				if err := svc.orchestrator.CacheImage(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cached image %s\n", args[0])
				return nil
			})
		},
	}
}

// reportProgress prints progress changes to w until the returned function is
// called.
func reportProgress(progress *download.Progress, w io.Writer) func() {
	return progress.Subscribe(func(u download.Update) {
		if u.Removed {
			return
		}
		fmt.Fprintf(w, "%s: %d%%\n", u.Key, u.Percent)
	})
}

func readJSONFile(path string, out any) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM, which cancels an in-flight
// download.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
