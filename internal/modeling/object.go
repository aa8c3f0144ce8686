package modeling

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/strata/internal/modelsync"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// AttributeInput describes one attribute of a new object.
type AttributeInput struct {
	Name           string `json:"name" yaml:"name"`
	DataType       string `json:"data_type,omitempty" yaml:"data_type,omitempty"`
	ConceptualType string `json:"conceptual_type,omitempty" yaml:"conceptual_type,omitempty"`
	LogicalType    string `json:"logical_type,omitempty" yaml:"logical_type,omitempty"`
	PhysicalType   string `json:"physical_type,omitempty" yaml:"physical_type,omitempty"`
	IsPrimaryKey   bool   `json:"is_primary_key,omitempty" yaml:"is_primary_key,omitempty"`
	IsForeignKey   bool   `json:"is_foreign_key,omitempty" yaml:"is_foreign_key,omitempty"`
	// IsNullable defaults to true.
	IsNullable *bool `json:"is_nullable,omitempty" yaml:"is_nullable,omitempty"`
}

// ObjectRelationshipInput links a new object to an existing one. The
// source side is the new object; SourceAttribute names one of its new
// attributes.
type ObjectRelationshipInput struct {
	TargetObjectID    string `json:"target_object_id" yaml:"target_object_id"`
	Type              string `json:"type" yaml:"type"`
	SourceAttribute   string `json:"source_attribute,omitempty" yaml:"source_attribute,omitempty"`
	TargetAttributeID string `json:"target_attribute_id,omitempty" yaml:"target_attribute_id,omitempty"`
	Name              string `json:"name,omitempty" yaml:"name,omitempty"`
	Description       string `json:"description,omitempty" yaml:"description,omitempty"`
}

// CreateObjectInput describes an object to create in a home model.
type CreateObjectInput struct {
	ModelID       string
	Name          string
	Description   string
	Attributes    []AttributeInput
	Relationships []ObjectRelationshipInput
	// Cascade replicates the object into the family's other layers. It
	// defaults to true when the home model is conceptual.
	Cascade *bool
	// Config is the base layer config; LayerConfig overrides it per layer.
	Config      types.LayerConfig
	LayerConfig map[types.Layer]types.LayerConfig
}

// CreateObjectResult lists every record CreateObject wrote.
type CreateObjectResult struct {
	Object          *types.Object                      `json:"object"`
	ModelObject     *types.ModelObject                 `json:"model_object"`
	Attributes      []*types.Attribute                 `json:"attributes"`
	ModelAttributes []*types.ModelAttribute            `json:"model_attributes"`
	Replicas        map[types.Layer]*modelsync.Replica `json:"replicas,omitempty"`
	Skipped         []modelsync.SkippedLayer           `json:"skipped,omitempty"`
	Relationships   []*RelationshipResult              `json:"relationships,omitempty"`
}

// CreateObject creates a canonical object with its attributes and
// projection in the home model, replicates it into the sibling layers when
// cascading, then creates the requested relationships.
func (s *Service) CreateObject(ctx context.Context, in CreateObjectInput) (*CreateObjectResult, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fieldErr("name", types.ErrInvalidName)
	}
	for i, a := range in.Attributes {
		if strings.TrimSpace(a.Name) == "" {
			return nil, fieldErr(fmt.Sprintf("attributes[%d].name", i), types.ErrInvalidName)
		}
	}
	for i, r := range in.Relationships {
		if !types.ValidRelationshipType(r.Type) {
			return nil, fieldErr(fmt.Sprintf("relationships[%d].type", i), types.ErrInvalidRelationshipType)
		}
		if r.SourceAttribute != "" && !hasAttribute(in.Attributes, r.SourceAttribute) {
			return nil, fieldErr(fmt.Sprintf("relationships[%d].source_attribute", i), types.ErrNotFound)
		}
	}

	cache := modelsync.NewCache()
	model, family, err := s.loadHome(ctx, cache, in)
	if err != nil {
		return nil, err
	}

	res := &CreateObjectResult{}
	res.Object = &types.Object{ModelID: model.ModelID, Name: in.Name, Description: in.Description}
	if _, err := s.put(types.ObjectsTable, res.Object); err != nil {
		return nil, fmt.Errorf("creating object: %w", err)
	}
	res.ModelObject = &types.ModelObject{
		ModelID:  model.ModelID,
		ObjectID: res.Object.ObjectID,
		Layer:    model.Layer,
		Config:   modelsync.MergeConfig(in.Config, in.LayerConfig[model.Layer]),
	}
	if _, err := s.put(types.ModelObjectsTable, res.ModelObject); err != nil {
		return res, fmt.Errorf("projecting object: %w", err)
	}

	for i, ai := range in.Attributes {
		a := &types.Attribute{
			ObjectID:       res.Object.ObjectID,
			Name:           ai.Name,
			DataType:       ai.DataType,
			ConceptualType: ai.ConceptualType,
			LogicalType:    ai.LogicalType,
			PhysicalType:   ai.PhysicalType,
			IsPrimaryKey:   ai.IsPrimaryKey,
			IsForeignKey:   ai.IsForeignKey,
			IsNullable:     ai.IsNullable == nil || *ai.IsNullable,
			Ordinal:        i,
		}
		if _, err := s.put(types.AttributesTable, a); err != nil {
			return res, fmt.Errorf("creating attribute %s: %w", ai.Name, err)
		}
		ma := modelsync.ProjectAttribute(res.ModelObject, a)
		if _, err := s.put(types.ModelAttributesTable, ma); err != nil {
			return res, fmt.Errorf("projecting attribute %s: %w", ai.Name, err)
		}
		res.Attributes = append(res.Attributes, a)
		res.ModelAttributes = append(res.ModelAttributes, ma)
	}
	s.logger.Info("created object", "object_id", res.Object.ObjectID, "model_id", model.ModelID,
		"attributes", len(res.Attributes))

	cascade := model.IsConceptual()
	if in.Cascade != nil {
		cascade = *in.Cascade
	}
	if cascade {
		rep, err := s.engine.ReplicateToFamily(cache, family, res.Object, res.Attributes, in.Config, in.LayerConfig)
		if rep != nil {
			res.Replicas = rep.Replicas
			res.Skipped = rep.Skipped
		}
		if err != nil {
			return res, err
		}
	}

	for _, ri := range in.Relationships {
		rel, err := s.createRelationship(ctx, cache, RelationshipInput{
			ModelID:           model.ModelID,
			SourceObjectID:    res.Object.ObjectID,
			TargetObjectID:    ri.TargetObjectID,
			SourceAttributeID: attributeID(res.Attributes, ri.SourceAttribute),
			TargetAttributeID: ri.TargetAttributeID,
			Type:              ri.Type,
			Name:              ri.Name,
			Description:       ri.Description,
		})
		if err != nil {
			return res, err
		}
		res.Relationships = append(res.Relationships, rel)
	}
	return res, nil
}

// loadHome loads the home model and its family concurrently with the
// relationship targets, which only need to exist.
func (s *Service) loadHome(ctx context.Context, cache *modelsync.Cache, in CreateObjectInput) (*types.Model, *modelsync.Family, error) {
	model, err := lookup[*types.Model](s, types.ModelsTable, "model_id", in.ModelID)
	if err != nil {
		return nil, nil, err
	}

	var family *modelsync.Family
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := s.engine.ResolveFamily(cache, model.ModelID)
		family = f
		return err
	})
	for i, r := range in.Relationships {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			field := fmt.Sprintf("relationships[%d].target_object_id", i)
			_, err := lookup[*types.Object](s, types.ObjectsTable, field, r.TargetObjectID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return model, family, nil
}

func (s *Service) put(table string, data any) (string, error) {
	t, err := s.table(table)
	if err != nil {
		return "", err
	}
	return t.Set("", data)
}

func hasAttribute(attrs []AttributeInput, name string) bool {
	for _, a := range attrs {
		if strings.EqualFold(a.Name, name) {
			return true
		}
	}
	return false
}

func attributeID(attrs []*types.Attribute, name string) string {
	if name == "" {
		return ""
	}
	for _, a := range attrs {
		if strings.EqualFold(a.Name, name) {
			return a.AttributeID
		}
	}
	return ""
}

// UpdateModelObjectConfig merges patch into a projection's layer config and
// writes it back. Keys absent from patch, including ones this package does
// not know, are preserved.
func (s *Service) UpdateModelObjectConfig(ctx context.Context, modelObjectID string, patch types.LayerConfig) (*types.ModelObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mo, err := lookup[*types.ModelObject](s, types.ModelObjectsTable, "model_object_id", modelObjectID)
	if err != nil {
		return nil, err
	}
	mo.Config = modelsync.MergeConfig(mo.Config, patch)

	t, err := s.table(types.ModelObjectsTable)
	if err != nil {
		return nil, err
	}
	if _, err := t.Set(mo.ModelObjectID, mo); err != nil {
		return nil, fmt.Errorf("updating model object config: %w", err)
	}
	return mo, nil
}

// AddAttribute appends an attribute to the object a projection points at
// and projects it into the projection's model.
func (s *Service) AddAttribute(ctx context.Context, modelObjectID string, in AttributeInput) (*types.Attribute, *types.ModelAttribute, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, nil, fieldErr("name", types.ErrInvalidName)
	}
	mo, err := lookup[*types.ModelObject](s, types.ModelObjectsTable, "model_object_id", modelObjectID)
	if err != nil {
		return nil, nil, err
	}
	existing, err := s.engine.Attributes(modelsync.NewCache(), mo.ObjectID)
	if err != nil {
		return nil, nil, err
	}

	a := &types.Attribute{
		ObjectID:       mo.ObjectID,
		Name:           in.Name,
		DataType:       in.DataType,
		ConceptualType: in.ConceptualType,
		LogicalType:    in.LogicalType,
		PhysicalType:   in.PhysicalType,
		IsPrimaryKey:   in.IsPrimaryKey,
		IsForeignKey:   in.IsForeignKey,
		IsNullable:     in.IsNullable == nil || *in.IsNullable,
		Ordinal:        len(existing),
	}
	if _, err := s.put(types.AttributesTable, a); err != nil {
		return nil, nil, fmt.Errorf("creating attribute %s: %w", in.Name, err)
	}
	ma := modelsync.ProjectAttribute(mo, a)
	if _, err := s.put(types.ModelAttributesTable, ma); err != nil {
		return a, nil, fmt.Errorf("projecting attribute %s: %w", in.Name, err)
	}
	return a, ma, nil
}
