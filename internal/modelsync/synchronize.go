package modelsync

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// SyncRequest describes one canonical relationship to project across the
// family of BaseModelID. Level is a ceiling: attribute level is used only
// where both attribute ids are set and both attribute projections resolve.
type SyncRequest struct {
	BaseModelID       string
	RelationshipID    string
	SourceObjectID    string
	TargetObjectID    string
	Type              string
	Level             types.Level
	SourceAttributeID string
	TargetAttributeID string
	// Name and Description are written when non-empty; empty values leave
	// an existing projection's text alone unless ClearEmpty is set.
	Name        string
	Description string
	// ClearEmpty makes empty Name and Description clear the projections'
	// text, for callers passing a stored canonical record.
	ClearEmpty bool
}

// SyncResult maps each synchronized model to its relationship projection.
type SyncResult struct {
	ByModel map[string]*types.ModelRelationship
	// SyncedModelIDs lists the models written or confirmed, in family order.
	SyncedModelIDs []string
	// Downgraded lists models where attribute level was requested but the
	// projection was written at object level.
	Downgraded []string
	// Skipped lists models lacking a projection of either object.
	Skipped []string
}

// endsInModel is a relationship's ends resolved inside one model.
type endsInModel struct {
	model      *types.Model
	source     *types.ModelObject
	target     *types.ModelObject
	level      types.Level
	sourceAttr *types.ModelAttribute
	targetAttr *types.ModelAttribute
}

func (m *endsInModel) attrIDs() (string, string) {
	if m.level != types.LevelAttribute {
		return "", ""
	}
	return m.sourceAttr.ModelAttributeID, m.targetAttr.ModelAttributeID
}

// Synchronize creates or updates the projection of a relationship in every
// model of the base model's family. Models missing a projection of either
// object are skipped. Canonical records are never written.
func (e *Engine) Synchronize(c *Cache, req SyncRequest) (*SyncResult, error) {
	if !types.ValidRelationshipType(req.Type) {
		return nil, fmt.Errorf("synchronizing relationship: %w", types.ErrInvalidRelationshipType)
	}
	source, err := e.Object(c, req.SourceObjectID)
	if err != nil {
		return nil, err
	}
	target, err := e.Object(c, req.TargetObjectID)
	if err != nil {
		return nil, err
	}
	sourceAttr, targetAttr, err := e.requestedAttributes(c, req.Level, req.SourceAttributeID, req.TargetAttributeID)
	if err != nil {
		return nil, err
	}

	family, err := e.ResolveFamily(c, req.BaseModelID)
	if err != nil {
		return nil, err
	}

	res := &SyncResult{ByModel: make(map[string]*types.ModelRelationship)}
	for _, m := range family.Members {
		ends, err := e.resolveEnds(c, m, source, target, sourceAttr, targetAttr, true)
		if err != nil {
			return res, fmt.Errorf("synchronizing model %s: %w", m.ModelID, err)
		}
		if ends == nil {
			res.Skipped = append(res.Skipped, m.ModelID)
			e.logger.Debug("skipping model without both objects", "model_id", m.ModelID)
			continue
		}
		if sourceAttr != nil && ends.level == types.LevelObject {
			res.Downgraded = append(res.Downgraded, m.ModelID)
			e.logger.Info("downgraded relationship to object level",
				"model_id", m.ModelID, "source_attribute_id", sourceAttr.AttributeID,
				"target_attribute_id", targetAttr.AttributeID)
		}

		mr, err := e.upsertProjection(c, ends, req)
		if err != nil {
			return res, fmt.Errorf("synchronizing model %s: %w", m.ModelID, err)
		}
		c.recordSync(mr)
		res.ByModel[m.ModelID] = mr
		res.SyncedModelIDs = append(res.SyncedModelIDs, m.ModelID)
	}
	return res, nil
}

// requestedAttributes loads the canonical attributes when the request is at
// attribute level. It returns nils for object level.
func (e *Engine) requestedAttributes(c *Cache, level types.Level, sourceID, targetID string) (*types.Attribute, *types.Attribute, error) {
	if level == types.LevelObject || LevelFor(sourceID, targetID) != types.LevelAttribute {
		return nil, nil, nil
	}
	source, err := getAs[*types.Attribute](e.store, types.AttributesTable, sourceID)
	if err != nil {
		return nil, nil, err
	}
	target, err := getAs[*types.Attribute](e.store, types.AttributesTable, targetID)
	if err != nil {
		return nil, nil, err
	}
	return source, target, nil
}

// resolveEnds resolves both object projections in m and, when attributes
// are given, both attribute projections. It returns nil when either object
// is missing from m, and object level when either attribute projection
// cannot be resolved or created.
func (e *Engine) resolveEnds(c *Cache, m *types.Model, source, target *types.Object,
	sourceAttr, targetAttr *types.Attribute, create bool) (*endsInModel, error) {
	smo, err := e.ResolveObjectProjection(c, m.ModelID, source)
	if err != nil || smo == nil {
		return nil, err
	}
	tmo, err := e.ResolveObjectProjection(c, m.ModelID, target)
	if err != nil || tmo == nil {
		return nil, err
	}

	ends := &endsInModel{model: m, source: smo, target: tmo, level: types.LevelObject}
	if sourceAttr == nil || targetAttr == nil {
		return ends, nil
	}
	sma, err := e.ResolveAttributeProjection(c, smo, sourceAttr, create)
	if err != nil {
		return nil, err
	}
	tma, err := e.ResolveAttributeProjection(c, tmo, targetAttr, create)
	if err != nil {
		return nil, err
	}
	if sma != nil && tma != nil {
		ends.level = types.LevelAttribute
		ends.sourceAttr, ends.targetAttr = sma, tma
	}
	return ends, nil
}

// upsertProjection updates the matching projection in the model or creates
// one. A unique violation on create means another writer got there first;
// the projection is refetched and updated instead.
func (e *Engine) upsertProjection(c *Cache, ends *endsInModel, req SyncRequest) (*types.ModelRelationship, error) {
	sa, ta := ends.attrIDs()
	find := func() (*types.ModelRelationship, bool, error) {
		existing, err := e.RelationshipProjections(c, ends.model.ModelID)
		if err != nil {
			return nil, false, err
		}
		mr, ok := FindMatching(existing, ends.source.ModelObjectID, ends.target.ModelObjectID, ends.level, sa, ta)
		return mr, ok, nil
	}

	mr, ok, err := find()
	if err != nil {
		return nil, err
	}
	if !ok {
		mr = &types.ModelRelationship{
			ModelID:                ends.model.ModelID,
			RelationshipID:         req.RelationshipID,
			SourceModelObjectID:    ends.source.ModelObjectID,
			TargetModelObjectID:    ends.target.ModelObjectID,
			SourceModelAttributeID: sa,
			TargetModelAttributeID: ta,
			Layer:                  ends.model.Layer,
			Level:                  ends.level,
			Type:                   req.Type,
			Name:                   req.Name,
			Description:            req.Description,
		}
		_, err := e.put(types.ModelRelationshipsTable, "", mr)
		if err == nil {
			c.putModelRelationship(mr)
			e.logger.Info("created relationship projection",
				"model_id", mr.ModelID, "layer", mr.Layer, "level", mr.Level,
				"model_relationship_id", mr.ModelRelationshipID)
			return mr, nil
		}
		if !errors.Is(err, types.ErrDuplicate) {
			return nil, err
		}
		c.forgetModelRelationships(ends.model.ModelID)
		if mr, ok, err = find(); err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("relationship projection in model %s: %w", ends.model.ModelID, types.ErrDuplicate)
		}
	}

	if !applyChanges(mr, req) {
		return mr, nil
	}
	if _, err := e.put(types.ModelRelationshipsTable, mr.ModelRelationshipID, mr); err != nil {
		return nil, err
	}
	c.putModelRelationship(mr)
	e.logger.Info("updated relationship projection",
		"model_id", mr.ModelID, "model_relationship_id", mr.ModelRelationshipID)
	return mr, nil
}

// applyChanges copies the fields of req that differ onto mr and reports
// whether anything changed.
func applyChanges(mr *types.ModelRelationship, req SyncRequest) bool {
	changed := false
	set := func(dst *string, v string, keepEmpty bool) {
		if (v != "" || !keepEmpty) && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&mr.Type, req.Type, false)
	set(&mr.RelationshipID, req.RelationshipID, true)
	set(&mr.Name, req.Name, !req.ClearEmpty)
	set(&mr.Description, req.Description, !req.ClearEmpty)
	return changed
}
