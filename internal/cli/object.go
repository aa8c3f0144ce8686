package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/strata/internal/modeling"
	"github.com/mesh-intelligence/strata/internal/sqlite"
	"github.com/mesh-intelligence/strata/pkg/types"
)

func newObjectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "object",
		Short: "Create objects and edit their layer config",
	}
	cmd.AddCommand(newObjectCreateCmd(a), newObjectConfigCmd(a))
	return cmd
}

// objectFile is the YAML form of an object accepted by --file.
type objectFile struct {
	ModelID       string                             `yaml:"model_id"`
	Name          string                             `yaml:"name"`
	Description   string                             `yaml:"description"`
	Cascade       *bool                              `yaml:"cascade"`
	Config        map[string]any                     `yaml:"config"`
	LayerConfig   map[types.Layer]map[string]any     `yaml:"layer_config"`
	Attributes    []modeling.AttributeInput          `yaml:"attributes"`
	Relationships []modeling.ObjectRelationshipInput `yaml:"relationships"`
}

func (f *objectFile) input() modeling.CreateObjectInput {
	in := modeling.CreateObjectInput{
		ModelID:       f.ModelID,
		Name:          f.Name,
		Description:   f.Description,
		Cascade:       f.Cascade,
		Config:        f.Config,
		Attributes:    f.Attributes,
		Relationships: f.Relationships,
	}
	if len(f.LayerConfig) > 0 {
		in.LayerConfig = make(map[types.Layer]types.LayerConfig, len(f.LayerConfig))
		for layer, cfg := range f.LayerConfig {
			in.LayerConfig[layer] = cfg
		}
	}
	return in
}

// parseAttribute reads name[:type[:pk|fk|notnull...]].
func parseAttribute(spec string) (modeling.AttributeInput, error) {
	parts := strings.Split(spec, ":")
	ai := modeling.AttributeInput{Name: strings.TrimSpace(parts[0])}
	if ai.Name == "" {
		return ai, usagef("attribute %q: missing name", spec)
	}
	if len(parts) > 1 {
		ai.DataType = parts[1]
	}
	for _, flag := range parts[min(len(parts), 2):] {
		switch strings.ToLower(flag) {
		case "pk":
			ai.IsPrimaryKey = true
		case "fk":
			ai.IsForeignKey = true
		case "notnull":
			no := false
			ai.IsNullable = &no
		default:
			return ai, usagef("attribute %q: unknown flag %q", spec, flag)
		}
	}
	return ai, nil
}

// parseConfig decodes a JSON object flag value.
func parseConfig(flag, value string) (types.LayerConfig, error) {
	if value == "" {
		return nil, nil
	}
	var cfg types.LayerConfig
	if err := json.Unmarshal([]byte(value), &cfg); err != nil {
		return nil, usagef("--%s: %v", flag, err)
	}
	return cfg, nil
}

func newObjectCreateCmd(a *app) *cobra.Command {
	var (
		file      string
		flagSpec  objectFile
		attrs     []string
		noCascade bool
		config    string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an object, replicating it across the family from a conceptual model",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.printer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			spec := flagSpec
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return usagef("reading %s: %v", file, err)
				}
				if err := yaml.Unmarshal(data, &spec); err != nil {
					return usagef("parsing %s: %v", file, err)
				}
				if flagSpec.ModelID != "" {
					spec.ModelID = flagSpec.ModelID
				}
			}
			for _, s := range attrs {
				ai, err := parseAttribute(s)
				if err != nil {
					return err
				}
				spec.Attributes = append(spec.Attributes, ai)
			}
			if config != "" {
				cfg, err := parseConfig("config", config)
				if err != nil {
					return err
				}
				spec.Config = cfg
			}
			if noCascade {
				off := false
				spec.Cascade = &off
			}

			return a.withService(func(svc *modeling.Service, _ *sqlite.Backend) error {
				res, err := svc.CreateObject(cmd.Context(), spec.input())
				if res == nil {
					return err
				}
				if perr := p.print(res, table.Row{"Layer", "Model ID", "Object ID", "Model Object ID", "Attributes"}, func(t table.Writer) {
					t.AppendRow(table.Row{res.ModelObject.Layer, res.Object.ModelID, res.Object.ObjectID,
						res.ModelObject.ModelObjectID, len(res.Attributes)})
					for layer, r := range res.Replicas {
						t.AppendRow(table.Row{layer, r.ModelObject.ModelID, r.Object.ObjectID,
							r.ModelObject.ModelObjectID, len(r.Attributes)})
					}
					for _, s := range res.Skipped {
						t.AppendRow(table.Row{s.Layer, "", "", "skipped: " + s.Reason, ""})
					}
				}); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "YAML file describing the object")
	f.StringVar(&flagSpec.ModelID, "model", "", "home model id")
	f.StringVar(&flagSpec.Name, "name", "", "object name")
	f.StringVar(&flagSpec.Description, "description", "", "description")
	f.StringArrayVar(&attrs, "attr", nil, "attribute as name[:type[:pk][:fk][:notnull]] (repeatable)")
	f.BoolVar(&noCascade, "no-cascade", false, "do not replicate into the family's other layers")
	f.StringVar(&config, "config", "", "layer config as a JSON object")
	return cmd
}

func newObjectConfigCmd(a *app) *cobra.Command {
	var set string
	cmd := &cobra.Command{
		Use:   "config <model-object-id>",
		Short: "Merge keys into a projection's layer config",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.printer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			patch, err := parseConfig("set", set)
			if err != nil {
				return err
			}
			return a.withService(func(svc *modeling.Service, _ *sqlite.Backend) error {
				mo, err := svc.UpdateModelObjectConfig(cmd.Context(), args[0], patch)
				if err != nil {
					return err
				}
				cfg, err := json.Marshal(mo.Config)
				if err != nil {
					return fmt.Errorf("encoding config: %w", err)
				}
				return p.print(mo, table.Row{"Model Object ID", "Layer", "Config"}, func(t table.Writer) {
					t.AppendRow(table.Row{mo.ModelObjectID, mo.Layer, string(cfg)})
				})
			})
		},
	}
	cmd.Flags().StringVar(&set, "set", "", "JSON object merged into the config")
	return cmd
}
