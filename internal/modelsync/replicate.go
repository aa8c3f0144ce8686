package modelsync

import (
	"fmt"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// ObjectPayload carries the fields of a replicated object that may differ
// from the conceptual object.
type ObjectPayload struct {
	Name        string
	Description string
}

// ReplicateRequest asks for one object and its attributes to be copied into
// the model of one layer.
type ReplicateRequest struct {
	Layer            types.Layer
	ConceptualModel  *types.Model
	ConceptualObject *types.Object
	TargetModel      *types.Model
	Object           ObjectPayload
	// Attributes are copied in order. When a template has an id the copy
	// links back to it.
	Attributes []*types.Attribute
	BaseConfig types.LayerConfig
	// Override is merged over BaseConfig for this layer only.
	Override types.LayerConfig
}

// Replica is everything Replicate wrote for one layer.
type Replica struct {
	Object          *types.Object
	ModelObject     *types.ModelObject
	Attributes      []*types.Attribute
	ModelAttributes []*types.ModelAttribute
}

// Replicate creates a canonical copy of the conceptual object in the target
// model, stamped with its origin, projects it with the merged layer config,
// and copies each attribute together with its projection.
func (e *Engine) Replicate(c *Cache, req ReplicateRequest) (*Replica, error) {
	if req.TargetModel == nil || req.ConceptualObject == nil {
		return nil, fmt.Errorf("replicating object: %w", types.ErrInvalidData)
	}
	if !req.Layer.Valid() || req.TargetModel.Layer != req.Layer {
		return nil, fmt.Errorf("replicating into model %s: %w", req.TargetModel.ModelID, types.ErrInvalidLayer)
	}

	src := req.ConceptualObject
	originModel := FirstPresent(src.OriginModelID, src.ModelID)
	if req.ConceptualModel != nil {
		originModel = req.ConceptualModel.ModelID
	}

	obj := &types.Object{
		ModelID:        req.TargetModel.ModelID,
		Name:           FirstPresent(req.Object.Name, src.Name),
		Description:    FirstPresent(req.Object.Description, src.Description),
		OriginObjectID: src.LineageID(),
		OriginModelID:  originModel,
	}
	if _, err := e.put(types.ObjectsTable, "", obj); err != nil {
		return nil, fmt.Errorf("replicating object %s into %s: %w", src.ObjectID, req.Layer, err)
	}
	c.initObject(obj)

	mo := &types.ModelObject{
		ModelID:        req.TargetModel.ModelID,
		ObjectID:       obj.ObjectID,
		Layer:          req.Layer,
		Config:         MergeConfig(req.BaseConfig, req.Override),
		OriginObjectID: obj.OriginObjectID,
		OriginModelID:  obj.OriginModelID,
	}
	if _, err := e.put(types.ModelObjectsTable, "", mo); err != nil {
		return nil, fmt.Errorf("projecting object %s into %s: %w", obj.ObjectID, req.TargetModel.ModelID, err)
	}
	c.initModelObject(mo)

	out := &Replica{Object: obj, ModelObject: mo}
	for i, tmpl := range req.Attributes {
		a := copyAttribute(tmpl, obj.ObjectID, req.Layer)
		if a.Ordinal == 0 {
			a.Ordinal = i
		}
		if _, err := e.put(types.AttributesTable, "", a); err != nil {
			return nil, fmt.Errorf("replicating attribute %s: %w", tmpl.Name, err)
		}
		c.putAttribute(a)

		ma := ProjectAttribute(mo, a)
		if _, err := e.put(types.ModelAttributesTable, "", ma); err != nil {
			return nil, fmt.Errorf("projecting attribute %s: %w", a.Name, err)
		}
		c.putModelAttribute(ma)

		out.Attributes = append(out.Attributes, a)
		out.ModelAttributes = append(out.ModelAttributes, ma)
	}

	e.logger.Info("replicated object",
		"layer", req.Layer,
		"model_id", req.TargetModel.ModelID,
		"object_id", obj.ObjectID,
		"origin_object_id", obj.OriginObjectID,
		"attributes", len(out.Attributes))
	return out, nil
}

// copyAttribute copies tmpl onto objectID, filling the layer's own type hint
// from the fallback chain.
func copyAttribute(tmpl *types.Attribute, objectID string, layer types.Layer) *types.Attribute {
	a := &types.Attribute{
		ObjectID:       objectID,
		Name:           tmpl.Name,
		DataType:       tmpl.DataType,
		ConceptualType: tmpl.ConceptualType,
		LogicalType:    tmpl.LogicalType,
		PhysicalType:   tmpl.PhysicalType,
		IsPrimaryKey:   tmpl.IsPrimaryKey,
		IsForeignKey:   tmpl.IsForeignKey,
		IsNullable:     tmpl.IsNullable,
		Ordinal:        tmpl.Ordinal,
	}
	if tmpl.AttributeID != "" {
		a.OriginAttributeID = tmpl.LineageID()
	}
	hint := ResolveTypeHint(layer, HintsOf(tmpl))
	switch layer {
	case types.LayerLogical:
		a.LogicalType = hint
	case types.LayerPhysical:
		a.PhysicalType = hint
	}
	return a
}

// SkippedLayer records a layer replication did not write to.
type SkippedLayer struct {
	Layer  types.Layer `json:"layer"`
	Reason string      `json:"reason"`
}

// Skip reasons.
const (
	SkipNoModel          = "family has no model at this layer"
	SkipAlreadyProjected = "object already projected"
)

// FamilyReplication is the outcome of replicating an object across its
// family.
type FamilyReplication struct {
	Replicas map[types.Layer]*Replica
	Skipped  []SkippedLayer
}

// ReplicateToFamily replicates obj from its home model into the logical and
// physical models of family. Each layer is independent: a layer with no
// model, or whose model already projects obj or a copy of it, is skipped
// and reported. An unrelated object with the same name does not count.
func (e *Engine) ReplicateToFamily(c *Cache, family *Family, obj *types.Object, attrs []*types.Attribute,
	base types.LayerConfig, overrides map[types.Layer]types.LayerConfig) (*FamilyReplication, error) {
	out := &FamilyReplication{Replicas: make(map[types.Layer]*Replica)}
	for _, layer := range types.Layers {
		target := family.ForLayer(layer)
		if target != nil && target.ModelID == obj.ModelID {
			continue
		}
		if layer == types.LayerConceptual {
			continue
		}
		if target == nil {
			out.Skipped = append(out.Skipped, SkippedLayer{Layer: layer, Reason: SkipNoModel})
			e.logger.Debug("skipping replication", "layer", layer, "reason", SkipNoModel, "object_id", obj.ObjectID)
			continue
		}
		existing, err := e.findObjectProjection(c, target.ModelID, obj, false)
		if err != nil {
			return out, err
		}
		if existing != nil {
			out.Skipped = append(out.Skipped, SkippedLayer{Layer: layer, Reason: SkipAlreadyProjected})
			e.logger.Debug("skipping replication", "layer", layer, "reason", SkipAlreadyProjected, "object_id", obj.ObjectID)
			continue
		}

		r, err := e.Replicate(c, ReplicateRequest{
			Layer:            layer,
			ConceptualModel:  family.Conceptual,
			ConceptualObject: obj,
			TargetModel:      target,
			Object:           ObjectPayload{Name: obj.Name, Description: obj.Description},
			Attributes:       attrs,
			BaseConfig:       base,
			Override:         overrides[layer],
		})
		if err != nil {
			return out, err
		}
		out.Replicas[layer] = r
	}
	return out, nil
}
