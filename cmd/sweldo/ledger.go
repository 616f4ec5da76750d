package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/sweldo/sweldo-sync/internal/schema"
	esync "github.com/sweldo/sweldo-sync/internal/sync"
	"github.com/sweldo/sweldo-sync/internal/ui"
)

var ledgerCmd = &cobra.Command{
	Use:     "ledger",
	GroupID: "maint",
	Short:   "Inspect and prune the change ledger",
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show <entity> <subject> [year month]",
	Short: "Show the change history of one document",
	Long: `Show every recorded change of one remote document, oldest first.

Monthly entities need a year and month; single entities take only the subject.

Examples:
  sweldo ledger show attendance EMP001 2024 1
  sweldo ledger show employee EMP001`,
	Args: cobra.RangeArgs(2, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := schema.GroupKey{SubjectID: args[1]}
		if len(args) == 4 {
			var err error
			if key.Year, err = strconv.Atoi(args[2]); err != nil {
				return fmt.Errorf("invalid year %q", args[2])
			}
			if key.Month, err = strconv.Atoi(args[3]); err != nil || key.Month < 1 || key.Month > 12 {
				return fmt.Errorf("invalid month %q", args[3])
			}
		} else if len(args) == 3 {
			return fmt.Errorf("year and month must be given together")
		}

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		a, err := ledgerAdapter(newRegistry(store), args[0])
		if err != nil {
			return err
		}
		doc, err := a.Ledger().History(ctx, key)
		if err != nil {
			return err
		}
		if doc == nil || len(doc.Backups) == 0 {
			fmt.Printf("No history recorded for %s %s\n", a.Codec().Name, key)
			return nil
		}

		fmt.Printf("%s %s %s (%s)\n", ui.RenderAccent("History"), a.Codec().Name, key, plural(len(doc.Backups), "entry"))
		for _, e := range doc.Backups {
			fmt.Printf("\n%s\n", ui.RenderMuted(e.Timestamp.Local().Format(time.DateTime)))
			for _, c := range e.Changes {
				fmt.Printf("  %-4s %-16s %v %s %v\n", c.Day, c.Field, c.OldValue, ui.RenderAccent("→"), c.NewValue)
			}
		}
		return nil
	},
}

var ledgerPruneCmd = &cobra.Command{
	Use:   "prune [entity...]",
	Short: "Drop ledger entries older than a cutoff",
	Long: `Drop ledger entries recorded before --before.

The cutoff is a date (2024-01-31) or a phrase such as "3 months ago" or
"last friday". With no arguments every entity's ledger is pruned.

Examples:
  sweldo ledger prune --before 2024-01-01
  sweldo ledger prune attendance --before "6 months ago"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("before")
		if text == "" {
			return fmt.Errorf("--before is required")
		}
		before, err := parseCutoff(text, time.Now())
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		adapters, err := selectAdapters(newRegistry(store), args)
		if err != nil {
			return err
		}
		total := 0
		for _, a := range adapters {
			if a.Ledger() == nil {
				continue
			}
			n, err := a.Ledger().Prune(ctx, before)
			if err != nil {
				return fmt.Errorf("failed to prune %s: %w", a.Codec().Name, err)
			}
			if n > 0 {
				printProgress(fmt.Sprintf("%s: removed %s", a.Codec().Name, plural(n, "entry")))
			}
			total += n
		}

		fmt.Printf("%s Removed %s recorded before %s\n", ui.RenderPass("✓"), plural(total, "entry"), before.Format(time.DateOnly))
		return nil
	},
}

func ledgerAdapter(reg *esync.Registry, name string) (*esync.Adapter, error) {
	a, err := reg.Get(name)
	if err != nil {
		return nil, err
	}
	if a.Ledger() == nil {
		return nil, fmt.Errorf("%s has no ledger", a.Codec().Name)
	}
	return a, nil
}

// parseCutoff accepts an ISO date or a natural-language phrase relative to now.
func parseCutoff(text string, now time.Time) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, text, now.Location()); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("cannot understand date %q", text)
	}
	return r.Time, nil
}

func init() {
	ledgerPruneCmd.Flags().String("before", "", `Cutoff date or phrase ("2024-01-01", "3 months ago")`)
	ledgerCmd.AddCommand(ledgerShowCmd)
	ledgerCmd.AddCommand(ledgerPruneCmd)
	rootCmd.AddCommand(ledgerCmd)
}
