package cli

import (
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/strata/internal/modeling"
	"github.com/mesh-intelligence/strata/internal/sqlite"
)

func newRelationshipCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "relationship",
		Aliases: []string{"rel"},
		Short:   "Create, update and delete relationships across a model family",
	}
	cmd.AddCommand(newRelationshipCreateCmd(a), newRelationshipUpdateCmd(a), newRelationshipDeleteCmd(a))
	return cmd
}

var projectionHeader = table.Row{"Model ID", "Layer", "Level", "Type", "Model Relationship ID"}

// printRelationship lists the projection written in each model, in family
// order.
func printRelationship(p *printer, res *modeling.RelationshipResult) error {
	return p.print(res, projectionHeader, func(t table.Writer) {
		for _, id := range res.SyncedModelIDs {
			mr := res.ByModel[id]
			if mr == nil {
				continue
			}
			level := string(mr.Level)
			if slices.Contains(res.Downgraded, id) {
				level += " (downgraded)"
			}
			t.AppendRow(table.Row{id, mr.Layer, level, mr.Type, mr.ModelRelationshipID})
		}
		t.AppendFooter(table.Row{"", "", "", "canonical", res.Relationship.RelationshipID})
	})
}

func newRelationshipCreateCmd(a *app) *cobra.Command {
	var in modeling.RelationshipInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create or update a relationship and project it into every model of the family",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.printer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return a.withService(func(svc *modeling.Service, _ *sqlite.Backend) error {
				res, err := svc.CreateRelationship(cmd.Context(), in)
				if err != nil {
					return err
				}
				return printRelationship(p, res)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.ModelID, "model", "", "model whose family is synchronized (default: the source object's model)")
	f.StringVar(&in.SourceObjectID, "source", "", "source object id")
	f.StringVar(&in.TargetObjectID, "target", "", "target object id")
	f.StringVar(&in.SourceAttributeID, "source-attr", "", "source attribute id")
	f.StringVar(&in.TargetAttributeID, "target-attr", "", "target attribute id")
	f.StringVar(&in.Type, "type", "", "relationship type: 1:1, 1:N, N:1, N:M or M:N")
	f.StringVar(&in.Name, "name", "", "name")
	f.StringVar(&in.Description, "description", "", "description")
	return cmd
}

func newRelationshipUpdateCmd(a *app) *cobra.Command {
	var model, typ, name, description, sourceAttr, targetAttr string
	cmd := &cobra.Command{
		Use:   "update <relationship-id>",
		Short: "Change a relationship and re-synchronize its projections",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.printer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			patch := modeling.RelationshipPatch{ModelID: model}
			changed := func(flag string, v *string) *string {
				if cmd.Flags().Changed(flag) {
					return v
				}
				return nil
			}
			patch.Type = changed("type", &typ)
			patch.Name = changed("name", &name)
			patch.Description = changed("description", &description)
			patch.SourceAttributeID = changed("source-attr", &sourceAttr)
			patch.TargetAttributeID = changed("target-attr", &targetAttr)

			return a.withService(func(svc *modeling.Service, _ *sqlite.Backend) error {
				res, err := svc.UpdateRelationship(cmd.Context(), args[0], patch)
				if err != nil {
					return err
				}
				return printRelationship(p, res)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&model, "model", "", "model whose family is synchronized")
	f.StringVar(&typ, "type", "", "relationship type")
	f.StringVar(&name, "name", "", "name")
	f.StringVar(&description, "description", "", "description")
	f.StringVar(&sourceAttr, "source-attr", "", "source attribute id; empty moves to object level")
	f.StringVar(&targetAttr, "target-attr", "", "target attribute id; empty moves to object level")
	return cmd
}

func newRelationshipDeleteCmd(a *app) *cobra.Command {
	var in modeling.DeleteInput
	cmd := &cobra.Command{
		Use:   "delete [relationship-id]",
		Short: "Remove a relationship from every model of the family",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
				return usageError{err}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.printer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				in.RelationshipID = args[0]
			} else if in.SourceObjectID == "" || in.TargetObjectID == "" {
				return usagef("give a relationship id or both --source and --target")
			}
			return a.withService(func(svc *modeling.Service, _ *sqlite.Backend) error {
				res, err := svc.DeleteRelationship(cmd.Context(), in)
				if err != nil {
					return err
				}
				return p.print(res, table.Row{"Model ID", "Deleted"}, func(t table.Writer) {
					for _, id := range res.AffectedModelIDs {
						t.AppendRow(table.Row{id, len(res.DeletedByModel[id])})
					}
					if res.CanonicalDeleted {
						t.AppendFooter(table.Row{"canonical", res.RelationshipID})
					}
				})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.ModelID, "model", "", "model whose family is synchronized")
	f.StringVar(&in.SourceObjectID, "source", "", "source object id")
	f.StringVar(&in.TargetObjectID, "target", "", "target object id")
	f.StringVar(&in.SourceAttributeID, "source-attr", "", "source attribute id")
	f.StringVar(&in.TargetAttributeID, "target-attr", "", "target attribute id")
	return cmd
}
