package cli

import (
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/strata/internal/sqlite"
)

func printStats(p *printer, stats sqlite.SnapshotStats) error {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return p.print(stats, table.Row{"Table", "Rows"}, func(t table.Writer) {
		for _, name := range names {
			t.AppendRow(table.Row{name, stats[name]})
		}
	})
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write every table to JSONL files in dir",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.printer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			store, err := a.attach()
			if err != nil {
				return err
			}
			defer store.Detach()

			stats, err := store.Export(args[0])
			if err != nil {
				return err
			}
			a.logger.Info("exported snapshot", "dir", args[0])
			return printStats(p, stats)
		},
	}
}

func newRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <dir>",
		Short: "Replace the store contents with the JSONL files in dir",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.printer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			store, err := a.attach()
			if err != nil {
				return err
			}
			defer store.Detach()

			stats, err := store.Restore(args[0])
			if err != nil {
				return err
			}
			a.logger.Info("restored snapshot", "dir", args[0])
			return printStats(p, stats)
		},
	}
}
