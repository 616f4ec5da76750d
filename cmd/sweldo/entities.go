package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sweldo/sweldo-sync/internal/entity"
	"github.com/sweldo/sweldo-sync/internal/ui"
)

var entitiesCmd = &cobra.Command{
	Use:     "entities",
	GroupID: "maint",
	Short:   "List the entities sweldo syncs",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCOLLECTION\tFOLDER\tGROUPING\tRECORDS")
		for _, c := range entity.All() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Name, c.Collection, c.Area, c.Grouping, c.RecordsField)
		}
		w.Flush()
	},
}

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "maint",
	Short:   "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		if cfg.File != "" {
			fmt.Println(ui.RenderMuted("# " + cfg.File))
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(entitiesCmd)
	rootCmd.AddCommand(configCmd)
}
