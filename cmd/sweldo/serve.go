package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweldo/sweldo-sync/internal/dashboard"
	esync "github.com/sweldo/sweldo-sync/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "advanced",
	Short:   "Start the sync dashboard",
	Long: `Start an HTTP dashboard that runs pushes and pulls on request and streams
their progress over a WebSocket.

Endpoints:
  POST /api/sync/{entity}/{push|pull}   start a sync (409 if already running)
  GET  /api/status                      running jobs
  GET  /ws                              progress stream
  GET  /health                          health check

WebSocket messages include:
- sync_started: a push or pull began
- progress: one progress line of a running sync
- sync_complete: the sync finished
- sync_failed: the sync stopped with an error

Example usage:
  sweldo serve                   # Start on serve.port (default 8080)
  sweldo serve --port 9000       # Start on custom port`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port := cfg.Serve.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		reg := newRegistry(store)

		log := logger.WithField("component", "dashboard")
		server := dashboard.NewServer(&dashboard.Config{Port: port, Logger: log})
		handler := dashboard.NewHandler(server, func(name string) (esync.Syncer, error) {
			a, err := reg.Get(name)
			if err != nil {
				return nil, err
			}
			return a, nil
		}, log)

		if err := server.Start(); err != nil {
			_ = server.Stop()
			return fmt.Errorf("failed to start dashboard: %w", err)
		}

		fmt.Printf("Dashboard server started on http://%s\n", server.Addr())
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", server.Addr())
		fmt.Println("\nPress Ctrl+C to stop...")

		<-ctx.Done()

		fmt.Println("\nShutting down dashboard server...")
		shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
		defer stop()
		if err := handler.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: running syncs did not finish: %v\n", err)
		}
		if err := server.Stop(); err != nil {
			return fmt.Errorf("error during shutdown: %w", err)
		}

		fmt.Println("Dashboard server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (overrides serve.port)")
	rootCmd.AddCommand(serveCmd)
}
