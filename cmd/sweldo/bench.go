package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweldo/sweldo-sync/internal/docstore"
	"github.com/sweldo/sweldo-sync/internal/loadtest"
)

var benchCmd = &cobra.Command{
	Use:     "bench",
	GroupID: "advanced",
	Short:   "Measure push throughput on a synthetic attendance database",
	Long: `Generate a synthetic attendance database in a temporary directory, push it
to a scratch store and report write latency percentiles. The pushed data is
pulled back and compared before the command returns.

Drivers:
  memory - in-process store (default), measures sync overhead only
  sqlite - temporary SQLite file, measures the embedded backend

Examples:
  # 50 employees, 12 months, default batch size
  sweldo bench

  # Compare batch sizes on SQLite
  sweldo bench --driver sqlite --batch-size 10
  sweldo bench --driver sqlite --batch-size 500

  # Output results as JSON
  sweldo bench --json`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().Int("employees", 50, "Number of synthetic employees")
	benchCmd.Flags().Int("months", 12, "Months of attendance per employee")
	benchCmd.Flags().Int("batch-size", 0, "Documents per batch (default: sync.batch_size)")
	benchCmd.Flags().String("driver", docstore.DriverMemory, "Scratch store: memory or sqlite")
	benchCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	employees, _ := cmd.Flags().GetInt("employees")
	months, _ := cmd.Flags().GetInt("months")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	driver, _ := cmd.Flags().GetString("driver")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if batchSize == 0 {
		batchSize = cfg.Sync.BatchSize
	}
	if driver != docstore.DriverMemory && driver != docstore.DriverSQLite {
		return fmt.Errorf("--driver must be 'memory' or 'sqlite'")
	}

	dir, err := os.MkdirTemp("", "sweldo-bench-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	ctx := cmd.Context()
	if !jsonOutput {
		fmt.Printf("Generating %d employees × %d months...\n", employees, months)
	}
	tree, err := loadtest.CreateTestTree(ctx, filepath.Join(dir, "local"), employees, months, time.Now().AddDate(0, -months, 0))
	if err != nil {
		return err
	}

	store, err := docstore.Open(ctx, docstore.Config{
		Driver:     driver,
		SQLitePath: filepath.Join(dir, "remote.db"),
	}, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := tree.RunPush(ctx, store, batchSize)
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}
	if err := tree.VerifyPull(ctx, store, filepath.Join(dir, "pulled")); err != nil {
		return fmt.Errorf("round trip failed: %w", err)
	}

	if jsonOutput {
		res.Writes.Durations = nil
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Printf("Driver: %s\n", driver)
	res.Print(os.Stdout)
	return nil
}
