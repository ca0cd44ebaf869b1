package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/marmos91/tunecache/internal/logger"
	"github.com/marmos91/tunecache/pkg/gc"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve playback references and downloads over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			return ctx.withServices(runCtx, func(svc *services) error {
				addr := svc.cfg.Server.Listen
				if listen != "" {
					addr = listen
				}
				return serve(runCtx, svc, addr)
			})
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides server.listen)")
	return cmd
}

func serve(ctx context.Context, svc *services, addr string) error {
	a := newAPI(ctx, svc.backend, svc.catalog, svc.orchestrator)
	srv := &http.Server{Handler: a.routes()}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	if svc.metrics.Server != nil {
		go func() {
			if err := svc.metrics.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	collector := gc.NewCollector(svc.catalog, svc.orchestrator.Progress(), gc.Config{
		Enabled:  svc.cfg.GC.Enabled,
		Interval: svc.cfg.GC.Interval,
		DryRun:   svc.cfg.GC.DryRun,
	})
	collector.Start()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ln)
	}()

	logger.Info("Serving on %s. Press Ctrl+C to stop.", ln.Addr())

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), svc.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error: %v", err)
	}
	a.wait()
	if err := collector.Stop(shutdownCtx); err != nil {
		logger.Warn("Garbage collector did not stop in time: %v", err)
	}
	a.shutdown()

	logger.Info("Server stopped gracefully")
	return nil
}
