package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sweldo/sweldo-sync/internal/daemon"
	"github.com/sweldo/sweldo-sync/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "sync",
	Short:   "Push entities automatically when local documents change",
	Long: `Watch the local database and push an entity to the remote store once its
documents have stopped changing for the debounce interval.

Every entity is pushed once at startup unless --no-initial is given.

Examples:
  sweldo watch
  sweldo watch --debounce 5s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		noInitial, _ := cmd.Flags().GetBool("no-initial")
		if cmd.Flags().Changed("debounce") {
			cfg.Watch.Debounce, _ = cmd.Flags().GetDuration("debounce")
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		reg := newRegistry(store)
		pushers := make(map[string]daemon.Pusher)
		for _, a := range reg.All() {
			pushers[a.Codec().Name] = a
		}

		d, err := daemon.New(cfg.DBRoot, pushers, &daemon.Config{
			DebounceInterval: cfg.Watch.Debounce,
			InitialSync:      !noInitial,
			OnProgress:       printProgress,
			Logger:           logger.WithField("component", "daemon"),
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Watching %s (debounce %v)\n", ui.RenderAccent("●"), cfg.DBRoot, cfg.Watch.Debounce)
		fmt.Println("Press Ctrl+C to stop...")

		if err := d.Start(ctx); err != nil && ctx.Err() == nil {
			return err
		}

		fmt.Printf("\n%s Watcher stopped after %s\n", ui.RenderPass("✓"), plural(d.Pushes(), "push"))
		return nil
	},
}

func init() {
	watchCmd.Flags().Duration("debounce", 0, "Quiet period before pushing (overrides watch.debounce)")
	watchCmd.Flags().Bool("no-initial", false, "Skip the startup push of every entity")
	rootCmd.AddCommand(watchCmd)
}
