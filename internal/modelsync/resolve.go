package modelsync

import (
	"errors"
	"slices"
	"strings"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// ResolveObjectProjection finds the projection of obj inside modelID. It
// tries, in order, a projection of obj itself, a projection of any object
// sharing obj's lineage, and a projection of the one object with obj's name.
// It returns nil when the model has no projection for obj.
func (e *Engine) ResolveObjectProjection(c *Cache, modelID string, obj *types.Object) (*types.ModelObject, error) {
	return e.findObjectProjection(c, modelID, obj, true)
}

// findObjectProjection resolves by id and lineage, and by unique name only
// when byName is set.
func (e *Engine) findObjectProjection(c *Cache, modelID string, obj *types.Object, byName bool) (*types.ModelObject, error) {
	projs, err := e.Projections(c, modelID)
	if err != nil {
		return nil, err
	}
	for _, p := range projs {
		if p.ObjectID == obj.ObjectID {
			return p, nil
		}
	}

	objects, err := e.objectsFor(c, projs)
	if err != nil {
		return nil, err
	}

	lineage := obj.LineageID()
	var sameLineage []*types.ModelObject
	for _, p := range projs {
		o := objects[p.ObjectID]
		if p.OriginObjectID == lineage || (o != nil && o.LineageID() == lineage) {
			sameLineage = append(sameLineage, p)
		}
	}
	switch len(sameLineage) {
	case 0:
	case 1:
		return sameLineage[0], nil
	default:
		// Two copies claim the same origin; fall back to the name and then
		// to the oldest copy.
		e.logger.Warn("ambiguous lineage in model",
			"model_id", modelID, "lineage_id", lineage, "candidates", len(sameLineage))
		if p := uniqueByName(sameLineage, objects, obj.Name); p != nil {
			return p, nil
		}
		return sameLineage[0], nil
	}

	if !byName {
		return nil, nil
	}
	return uniqueByName(projs, objects, obj.Name), nil
}

// uniqueByName returns the single projection whose object is named name,
// compared case-insensitively, or nil when there is none or several.
func uniqueByName(projs []*types.ModelObject, objects map[string]*types.Object, name string) *types.ModelObject {
	var found *types.ModelObject
	for _, p := range projs {
		o := objects[p.ObjectID]
		if o == nil || !strings.EqualFold(o.Name, name) {
			continue
		}
		if found != nil {
			return nil
		}
		found = p
	}
	return found
}

// objectsFor loads the canonical objects behind projs, fetching the ones
// not cached yet in a single query.
func (e *Engine) objectsFor(c *Cache, projs []*types.ModelObject) (map[string]*types.Object, error) {
	out := make(map[string]*types.Object, len(projs))
	var missing []string
	c.mu.Lock()
	for _, p := range projs {
		if o, ok := c.objects[p.ObjectID]; ok {
			out[p.ObjectID] = o
		} else if !slices.Contains(missing, p.ObjectID) {
			missing = append(missing, p.ObjectID)
		}
	}
	c.mu.Unlock()
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := fetchAll[*types.Object](e.store, types.ObjectsTable, types.Filter{"object_id": missing})
	if err != nil {
		return nil, err
	}
	for _, o := range loaded {
		c.putObject(o)
		out[o.ObjectID] = o
	}
	return out, nil
}

// LayerAttribute returns the canonical attribute that stands for attr on the
// object mo projects. When mo projects a lineage copy, the copy's attribute
// is found by lineage and then by unique name. It returns nil when the copy
// has no such attribute.
func (e *Engine) LayerAttribute(c *Cache, mo *types.ModelObject, attr *types.Attribute) (*types.Attribute, error) {
	if mo.ObjectID == attr.ObjectID {
		return attr, nil
	}
	attrs, err := e.Attributes(c, mo.ObjectID)
	if err != nil {
		return nil, err
	}

	lineage := attr.LineageID()
	var byLineage, byName []*types.Attribute
	for _, a := range attrs {
		if a.AttributeID == lineage || a.LineageID() == lineage {
			byLineage = append(byLineage, a)
		}
		if strings.EqualFold(a.Name, attr.Name) {
			byName = append(byName, a)
		}
	}
	if len(byLineage) > 0 {
		return byLineage[0], nil
	}
	if len(byName) == 1 {
		return byName[0], nil
	}
	return nil, nil
}

// ResolveAttributeProjection finds the projection of attr under mo. When
// create is set a missing projection is created from the canonical
// attribute's type, key and order fields. It returns nil when the object
// behind mo has no counterpart of attr, or when the projection is missing
// and create is false.
func (e *Engine) ResolveAttributeProjection(c *Cache, mo *types.ModelObject, attr *types.Attribute, create bool) (*types.ModelAttribute, error) {
	layerAttr, err := e.LayerAttribute(c, mo, attr)
	if err != nil || layerAttr == nil {
		return nil, err
	}

	find := func() (*types.ModelAttribute, error) {
		mas, err := e.AttributeProjections(c, mo.ModelObjectID)
		if err != nil {
			return nil, err
		}
		for _, ma := range mas {
			if ma.AttributeID == layerAttr.AttributeID {
				return ma, nil
			}
		}
		return nil, nil
	}
	if ma, err := find(); err != nil || ma != nil || !create {
		return ma, err
	}

	ma := ProjectAttribute(mo, layerAttr)
	if _, err := e.put(types.ModelAttributesTable, "", ma); err != nil {
		if !errors.Is(err, types.ErrDuplicate) {
			return nil, err
		}
		// Created concurrently by another request.
		c.forgetAttributeProjections(mo.ModelObjectID)
		return find()
	}
	c.putModelAttribute(ma)
	e.logger.Debug("created attribute projection",
		"model_id", mo.ModelID, "model_object_id", mo.ModelObjectID, "attribute_id", layerAttr.AttributeID)
	return ma, nil
}

// ProjectAttribute builds the projection of a under mo, taking the type
// hint for mo's layer.
func ProjectAttribute(mo *types.ModelObject, a *types.Attribute) *types.ModelAttribute {
	return &types.ModelAttribute{
		ModelID:       mo.ModelID,
		ModelObjectID: mo.ModelObjectID,
		AttributeID:   a.AttributeID,
		Layer:         mo.Layer,
		DataType:      ResolveTypeHint(mo.Layer, HintsOf(a)),
		IsPrimaryKey:  a.IsPrimaryKey,
		IsForeignKey:  a.IsForeignKey,
		IsNullable:    a.IsNullable,
		Ordinal:       a.Ordinal,
	}
}
