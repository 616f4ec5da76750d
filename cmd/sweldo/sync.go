package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	esync "github.com/sweldo/sweldo-sync/internal/sync"
	"github.com/sweldo/sweldo-sync/internal/ui"
)

var pushCmd = &cobra.Command{
	Use:     "push [entity...]",
	GroupID: "sync",
	Short:   "Push local documents to the remote store",
	Long: `Push local JSON documents to the remote store.

Records are merged into the remote documents, so keys that exist only
remotely survive. Overwritten values are appended to the change ledger.
With no arguments every entity is pushed.

Examples:
  sweldo push
  sweldo push attendance leave`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context(), args, "push", func(ctx context.Context, a *esync.Adapter) error {
			return a.SyncToRemote(ctx, printProgress)
		})
	},
}

var pullCmd = &cobra.Command{
	Use:     "pull [entity...]",
	GroupID: "sync",
	Short:   "Pull remote documents into the local database",
	Long: `Pull remote documents into the local JSON database.

Remote records are merged into the local files. With no arguments every
entity is pulled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context(), args, "pull", func(ctx context.Context, a *esync.Adapter) error {
			return a.SyncFromRemote(ctx, printProgress)
		})
	},
}

func runSync(ctx context.Context, args []string, verb string, fn func(context.Context, *esync.Adapter) error) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	adapters, err := selectAdapters(newRegistry(store), args)
	if err != nil {
		return err
	}
	for _, a := range adapters {
		name := a.Codec().Name
		fmt.Printf("%s %s\n", ui.RenderAccent("→"), name)

		start := time.Now()
		if err := fn(ctx, a); err != nil {
			fmt.Fprintf(os.Stderr, "%s %s %s failed\n", ui.RenderFail("✗"), verb, name)
			return fmt.Errorf("%s %s: %w", verb, name, err)
		}
		fmt.Printf("%s %s complete in %v\n", ui.RenderPass("✓"), name, time.Since(start).Round(time.Millisecond))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
}
