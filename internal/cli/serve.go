package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"autoloop/internal/api"
	"autoloop/internal/approval"
	"autoloop/internal/config"
	"autoloop/internal/events"
	"autoloop/internal/orchestrator"
	"autoloop/internal/storage"
)

// newServeCmd creates the serve command: engine plus API in one process.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the engine and API server",
		Long: `Start the autoloop engine and its API server.

The engine schedules work cycles on its cooldown; the API exposes the
control surface (state, objectives, tasks, approvals, cost) and a
websocket event stream at /ws.

Example:
  autoloop serve                       # Listen on the configured address
  autoloop serve --addr 0.0.0.0:7171   # Custom listener`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.API.Addr, _ = cmd.Flags().GetString("addr")
			}

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			store, err := storage.OpenSQLite(cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			pub := events.NewMemoryPublisher()
			defer pub.Close()

			engine := orchestrator.New(cfg, store, pub, logger)
			if err := engine.Start(); err != nil {
				return err
			}
			defer func() { _ = engine.Stop() }()

			queue := approval.New(store, pub, logger)
			server := api.New(api.Config{Addr: cfg.API.Addr, Logger: logger}, engine, queue, store, pub)

			fmt.Printf("autoloop engine running (mode %s), API on %s\n", cfg.Mode, cfg.API.Addr)
			fmt.Println("Press Ctrl+C to stop")

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Println("\nShutting down...")
				cancel()
			}()

			return server.Serve(ctx)
		},
	}

	cmd.Flags().String("addr", "", "listen address (overrides config)")
	return cmd
}
