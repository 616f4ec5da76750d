package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweldo/sweldo-sync/internal/config"
	"github.com/sweldo/sweldo-sync/internal/docstore"
	"github.com/sweldo/sweldo-sync/internal/logging"
	esync "github.com/sweldo/sweldo-sync/internal/sync"
	"github.com/sweldo/sweldo-sync/internal/ui"
)

var (
	configPath string
	dbRootFlag string
	noColor    bool
	verbose    bool

	cfg    *config.Config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sweldo",
	Short: "Sync a local payroll database with a remote document store",
	Long: `sweldo keeps the per-employee JSON payroll database on disk in sync with a
remote document store (SQLite or S3), records a change ledger for every
overwrite, and migrates legacy CSV files into the JSON layout.

Configuration is read from sweldo.yaml (current directory or
$HOME/.config/sweldo), a .env file, and SWELDO_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			ui.SetColor(false)
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbRootFlag != "" {
			cfg.DBRoot = dbRootFlag
		}
		if verbose {
			cfg.Log.Level = "debug"
		}

		logger, err = logging.New(cfg.Log)
		return err
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "maint", Title: "Maintenance Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: sweldo.yaml in . or $HOME/.config/sweldo)")
	rootCmd.PersistentFlags().StringVar(&dbRootFlag, "db-root", "", "Local database root (overrides db_root)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore opens the configured remote store. Callers close it.
func openStore(ctx context.Context) (docstore.Store, error) {
	store, err := docstore.Open(ctx, cfg.Docstore(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote store: %w", err)
	}
	return store, nil
}

func newRegistry(store docstore.Store) *esync.Registry {
	return esync.NewRegistry(cfg.DBRoot, store, &esync.RegistryOptions{
		BatchSize:        cfg.Sync.BatchSize,
		LedgerMaxEntries: cfg.Ledger.MaxEntries,
		SniffDateStrings: cfg.Transform.SniffDateStrings,
		Logger:           logger,
	})
}

// selectAdapters returns the adapters named in args, or all of them.
func selectAdapters(reg *esync.Registry, args []string) ([]*esync.Adapter, error) {
	if len(args) == 0 {
		return reg.All(), nil
	}
	out := make([]*esync.Adapter, 0, len(args))
	for _, name := range args {
		a, err := reg.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func printProgress(msg string) {
	fmt.Printf("  %s\n", ui.RenderMuted(msg))
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	switch {
	case strings.HasSuffix(word, "y"):
		return fmt.Sprintf("%d %sies", n, strings.TrimSuffix(word, "y"))
	case strings.HasSuffix(word, "sh"), strings.HasSuffix(word, "s"):
		return fmt.Sprintf("%d %ses", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
