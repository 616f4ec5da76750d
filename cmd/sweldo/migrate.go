package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/sweldo/sweldo-sync/internal/entity"
	"github.com/sweldo/sweldo-sync/internal/migrate"
	"github.com/sweldo/sweldo-sync/internal/ui"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "maint",
	Short:   "Convert legacy CSV files to JSON documents",
	Long: `Convert the legacy CSV database into JSON documents.

Each {year}_{month}_{entity}.csv under a subject folder becomes
{year}_{month}_{entity}.json. Files that already have a JSON counterpart
are skipped, so the command is safe to run repeatedly. Legacy files are
never modified or removed.

With --backups the legacy *_backup.csv change history is converted into
ledger documents instead.

Examples:
  sweldo migrate --dry-run
  sweldo migrate --entity attendance --yes
  sweldo migrate --backups`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		yes, _ := cmd.Flags().GetBool("yes")
		backups, _ := cmd.Flags().GetBool("backups")
		only, _ := cmd.Flags().GetString("entity")

		codecs := entity.All()
		if only != "" {
			codec, err := entity.Lookup(only)
			if err != nil {
				return err
			}
			codecs = []*entity.Codec{codec}
		}

		if !dryRun && !yes {
			confirmed := false
			err := huh.NewConfirm().
				Title(fmt.Sprintf("Migrate legacy files under %s?", cfg.DBRoot)).
				Description("JSON documents will be written next to the CSV files.").
				Affirmative("Migrate").
				Negative("Cancel").
				Value(&confirmed).
				Run()
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Migration cancelled")
				return nil
			}
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		total, err := runMigrate(ctx, codecs, dryRun, backups)
		if err != nil {
			return err
		}

		prefix := ""
		if dryRun {
			prefix = "[dry run] "
		}
		fmt.Printf("%s%s%s migrated, %s skipped, %s written\n",
			prefix, ui.RenderPass("✓ "),
			plural(total.FilesMigrated, "file"),
			plural(total.FilesSkipped, "file"),
			plural(total.RecordsWritten, "record"))

		if len(total.Errors) > 0 {
			fmt.Printf("%s %s:\n", ui.RenderWarn("⚠"), plural(len(total.Errors), "error"))
			for _, e := range total.Errors {
				fmt.Printf("  %s\n", e)
			}
			return fmt.Errorf("migration finished with %s", plural(len(total.Errors), "error"))
		}
		return nil
	},
}

// runMigrate converts each codec's legacy files, or its legacy backups when
// backups is set. Per-file failures are collected in the result.
func runMigrate(ctx context.Context, codecs []*entity.Codec, dryRun, backups bool) (*migrate.Result, error) {
	opts := &migrate.Options{DryRun: dryRun, Logger: logger}
	total := &migrate.Result{}
	for _, codec := range codecs {
		m := migrate.New(cfg.DBRoot, codec, opts)
		var (
			res *migrate.Result
			err error
		)
		if backups {
			res, err = m.MigrateBackups(ctx, printProgress)
		} else {
			res, err = m.Run(ctx, printProgress)
		}
		total.Add(res)
		if err != nil {
			return total, fmt.Errorf("%s migration failed: %w", codec.Name, err)
		}
	}
	return total, nil
}

func init() {
	migrateCmd.Flags().Bool("dry-run", false, "Parse legacy files without writing anything")
	migrateCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	migrateCmd.Flags().Bool("backups", false, "Migrate legacy backup files into ledger documents")
	migrateCmd.Flags().String("entity", "", "Migrate a single entity")
	rootCmd.AddCommand(migrateCmd)
}
