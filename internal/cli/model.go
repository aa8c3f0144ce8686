package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/strata/internal/modeling"
	"github.com/mesh-intelligence/strata/internal/modelsync"
	"github.com/mesh-intelligence/strata/internal/sqlite"
	"github.com/mesh-intelligence/strata/pkg/types"
)

func newModelCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Create and inspect models",
	}
	cmd.AddCommand(newModelCreateCmd(a), newModelTripleCmd(a), newModelFamilyCmd(a), newModelListCmd(a))
	return cmd
}

var modelHeader = table.Row{"Model ID", "Layer", "Name", "Parent", "Target System"}

func modelRow(m *types.Model) table.Row {
	return table.Row{m.ModelID, m.Layer, m.Name, m.ParentModelID, m.TargetSystem}
}

func newModelCreateCmd(a *app) *cobra.Command {
	var m types.Model
	var layer string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a single model",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.printer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			m.Layer = types.Layer(layer)
			return a.withService(func(svc *modeling.Service, _ *sqlite.Backend) error {
				created, err := svc.CreateModel(cmd.Context(), &m)
				if err != nil {
					return err
				}
				return p.print(created, modelHeader, func(t table.Writer) { t.AppendRow(modelRow(created)) })
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&m.Name, "name", "", "model name (required)")
	f.StringVar(&layer, "layer", "", "layer: conceptual, logical or physical (required)")
	f.StringVar(&m.ParentModelID, "parent", "", "conceptual parent model id")
	f.StringVar(&m.Domain, "domain", "", "business domain")
	f.StringVar(&m.TargetSystem, "target-system", "", "target database system")
	f.StringVar(&m.Description, "description", "", "description")
	return cmd
}

func newModelTripleCmd(a *app) *cobra.Command {
	var in modeling.TripleInput
	cmd := &cobra.Command{
		Use:   "triple",
		Short: "Create a conceptual model with logical and physical children",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.printer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return a.withService(func(svc *modeling.Service, _ *sqlite.Backend) error {
				tr, err := svc.CreateModelTriple(cmd.Context(), in)
				if err != nil {
					return err
				}
				return p.print(tr, modelHeader, func(t table.Writer) {
					for _, m := range []*types.Model{tr.Conceptual, tr.Logical, tr.Physical} {
						t.AppendRow(modelRow(m))
					}
				})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "model name (required)")
	f.StringVar(&in.Domain, "domain", "", "business domain")
	f.StringVar(&in.TargetSystem, "target-system", "", "target database system")
	f.StringVar(&in.Description, "description", "", "description")
	return cmd
}

func newModelFamilyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "family <model-id>",
		Short: "Show the conceptual, logical and physical models of a family",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.printer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return a.withService(func(svc *modeling.Service, _ *sqlite.Backend) error {
				f, err := svc.Family(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return p.print(familyViewOf(f), modelHeader, func(t table.Writer) {
					for _, m := range f.Members {
						t.AppendRow(modelRow(m))
					}
				})
			})
		},
	}
}

// familyView is the serialized form of a family.
type familyView struct {
	Root       *types.Model   `json:"root"`
	Conceptual *types.Model   `json:"conceptual,omitempty"`
	Logical    *types.Model   `json:"logical,omitempty"`
	Physical   *types.Model   `json:"physical,omitempty"`
	Members    []*types.Model `json:"members"`
}

func familyViewOf(f *modelsync.Family) familyView {
	return familyView{Root: f.Root, Conceptual: f.Conceptual, Logical: f.Logical, Physical: f.Physical, Members: f.Members}
}

func newModelListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List models",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.printer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return a.withService(func(svc *modeling.Service, _ *sqlite.Backend) error {
				models, err := svc.Engine().Models(modelsync.NewCache())
				if err != nil {
					return err
				}
				return p.print(models, modelHeader, func(t table.Writer) {
					for _, m := range models {
						t.AppendRow(modelRow(m))
					}
				})
			})
		},
	}
}
