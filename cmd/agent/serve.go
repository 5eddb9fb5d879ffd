package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopping-agent/internal/di"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const cleanupInterval = time.Hour

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve missions over HTTP and WebSocket",
		Long: `Start the HTTP server. Clients start missions over /ws/agent or the REST
API and receive progress events as they happen.

Examples:
  agent serve
  agent serve --addr :9000 --origin https://ui.example`,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "listen address; overrides HTTP_ADDR")
	cmd.Flags().StringSlice("origin", nil, "allowed WebSocket origins (default any)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig(cmd)
	if cmd.Flags().Changed("addr") {
		cfg.HTTPAddr, _ = cmd.Flags().GetString("addr")
	}
	cfg.AllowedOrigins, _ = cmd.Flags().GetStringSlice("origin")

	container, err := di.NewContainer(cfg)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if container.Oracle == nil {
		container.Logger.Warn("OPENROUTER_API_KEY or OPENROUTER_MODEL_NAME missing, missions will be refused")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := container.NewServer()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})
	g.Go(func() error {
		container.Missions.RunCleanup(gctx, cleanupInterval)
		return nil
	})

	err = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if cerr := container.Close(shutdownCtx); cerr != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", cerr)
	}
	return err
}
