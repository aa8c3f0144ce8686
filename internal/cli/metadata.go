package cli

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/strata/internal/catalog"
	"github.com/mesh-intelligence/strata/internal/ingest"
	"github.com/mesh-intelligence/strata/internal/modeling"
	"github.com/mesh-intelligence/strata/internal/sqlite"
)

func newMetadataCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Ingest metadata from connected databases",
	}
	cmd.AddCommand(newMetadataSyncCmd(a))
	return cmd
}

func newMetadataSyncCmd(a *app) *cobra.Command {
	var (
		driver, dsn, schema, direction string
		req                            ingest.SyncRequest
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Read tables, columns and foreign keys into a model",
		Long: "Read tables, columns and foreign keys from a database and create the\n" +
			"matching objects, attributes and relationships in a model. Foreign keys\n" +
			"are taken from the catalog and inferred from <table>_id column names.",
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.printer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if driver == "" || dsn == "" {
				return usagef("--driver and --dsn are required")
			}
			req.Direction = ingest.Direction(direction)

			src, err := catalog.Open(cmd.Context(), driver, dsn, schema)
			if errors.Is(err, catalog.ErrUnsupportedDriver) {
				return usageError{err}
			}
			if err != nil {
				return fmt.Errorf("connecting to %s: %w", driver, err)
			}
			defer src.Close()
			req.Source = src

			return a.withService(func(svc *modeling.Service, _ *sqlite.Backend) error {
				rep, err := ingest.New(svc, a.logger).Sync(cmd.Context(), req)
				if rep == nil {
					return err
				}
				if perr := p.print(rep, table.Row{"Metric", "Count"}, func(t table.Writer) {
					t.AppendRows([]table.Row{
						{"tables", rep.Tables},
						{"objects created", rep.ObjectsCreated},
						{"objects matched", rep.ObjectsMatched},
						{"attributes created", rep.AttributesCreated},
						{"relationships created", rep.RelationshipsCreated},
						{"relationships skipped", rep.RelationshipsSkipped},
						{"errors", len(rep.Errors)},
					})
				}); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.ModelID, "model", "", "model to ingest into")
	f.StringVar(&driver, "driver", "", "database driver: sqlite, postgres or mysql")
	f.StringVar(&dsn, "dsn", "", "data source name")
	f.StringVar(&schema, "schema", "", "database schema (postgres default: public; mysql default: the DSN database)")
	f.StringVar(&req.System, "system", "", "name recorded as the connected system (default: the driver)")
	f.StringVar(&direction, "direction", string(ingest.DirectionSource), "source or target")
	f.BoolVar(&req.IncludeAttributes, "attributes", true, "create attributes from columns")
	f.StringSliceVar(&req.Tables, "table", nil, "tables to ingest (repeatable; default: all)")
	return cmd
}
