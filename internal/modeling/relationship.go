package modeling

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/strata/internal/modelsync"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// RelationshipInput names a relationship between two canonical objects,
// optionally pinned to one attribute on each side. ModelID is the model the
// request was made in; it defaults to the source object's home model.
type RelationshipInput struct {
	ModelID           string `json:"model_id,omitempty"`
	SourceObjectID    string `json:"source_object_id"`
	TargetObjectID    string `json:"target_object_id"`
	SourceAttributeID string `json:"source_attribute_id,omitempty"`
	TargetAttributeID string `json:"target_attribute_id,omitempty"`
	Type              string `json:"type"`
	Name              string `json:"name,omitempty"`
	Description       string `json:"description,omitempty"`
}

// RelationshipResult carries the canonical relationship and its projection
// in each synchronized model.
type RelationshipResult struct {
	Relationship   *types.Relationship                 `json:"relationship"`
	Created        bool                                `json:"created"`
	ByModel        map[string]*types.ModelRelationship `json:"by_model"`
	SyncedModelIDs []string                            `json:"synced_model_ids"`
	Downgraded     []string                            `json:"downgraded,omitempty"`
}

// relationshipEnds are the loaded records a relationship input refers to.
type relationshipEnds struct {
	source, target         *types.Object
	sourceAttr, targetAttr *types.Attribute
}

// loadEnds loads both objects and any attributes concurrently and checks
// that each attribute belongs to its object.
func (s *Service) loadEnds(ctx context.Context, in RelationshipInput) (*relationshipEnds, error) {
	var ends relationshipEnds
	g, ctx := errgroup.WithContext(ctx)
	load := func(dst any, table, field, id string) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			switch p := dst.(type) {
			case **types.Object:
				o, err := lookup[*types.Object](s, table, field, id)
				*p = o
				return err
			case **types.Attribute:
				a, err := lookup[*types.Attribute](s, table, field, id)
				*p = a
				return err
			}
			return nil
		})
	}
	load(&ends.source, types.ObjectsTable, "source_object_id", in.SourceObjectID)
	load(&ends.target, types.ObjectsTable, "target_object_id", in.TargetObjectID)
	if in.SourceAttributeID != "" {
		load(&ends.sourceAttr, types.AttributesTable, "source_attribute_id", in.SourceAttributeID)
	}
	if in.TargetAttributeID != "" {
		load(&ends.targetAttr, types.AttributesTable, "target_attribute_id", in.TargetAttributeID)
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if ends.sourceAttr != nil && ends.sourceAttr.ObjectID != ends.source.ObjectID {
		return nil, fieldErr("source_attribute_id", types.ErrInvalidData)
	}
	if ends.targetAttr != nil && ends.targetAttr.ObjectID != ends.target.ObjectID {
		return nil, fieldErr("target_attribute_id", types.ErrInvalidData)
	}
	return &ends, nil
}

// canonicalRelationships returns every canonical relationship whose source
// is either object, which covers both orientations between them.
func (s *Service) canonicalRelationships(sourceID, targetID string) ([]*types.Relationship, error) {
	t, err := s.table(types.RelationshipsTable)
	if err != nil {
		return nil, err
	}
	rows, err := t.Fetch(types.Filter{"source_object_id": []string{sourceID, targetID}})
	if err != nil {
		return nil, fmt.Errorf("fetching relationships: %w", err)
	}
	out := make([]*types.Relationship, 0, len(rows))
	for _, r := range rows {
		if rel, ok := r.(*types.Relationship); ok {
			out = append(out, rel)
		}
	}
	return out, nil
}

// CreateRelationship finds or creates the canonical relationship, updates
// changed fields, and synchronizes its projection into every model of the
// family.
func (s *Service) CreateRelationship(ctx context.Context, in RelationshipInput) (*RelationshipResult, error) {
	return s.createRelationship(ctx, modelsync.NewCache(), in)
}

func (s *Service) createRelationship(ctx context.Context, cache *modelsync.Cache, in RelationshipInput) (*RelationshipResult, error) {
	if !types.ValidRelationshipType(in.Type) {
		return nil, fieldErr("type", types.ErrInvalidRelationshipType)
	}
	ends, err := s.loadEnds(ctx, in)
	if err != nil {
		return nil, err
	}
	baseModel := modelsync.FirstPresent(in.ModelID, ends.source.ModelID)

	level := modelsync.LevelFor(in.SourceAttributeID, in.TargetAttributeID)
	sa, ta := in.SourceAttributeID, in.TargetAttributeID
	if level == types.LevelObject {
		sa, ta = "", ""
	}

	existing, err := s.canonicalRelationships(in.SourceObjectID, in.TargetObjectID)
	if err != nil {
		return nil, err
	}
	rel, found := modelsync.FindMatching(existing, in.SourceObjectID, in.TargetObjectID, level, sa, ta)
	res := &RelationshipResult{Created: !found}

	t, err := s.table(types.RelationshipsTable)
	if err != nil {
		return nil, err
	}
	switch {
	case !found:
		rel = &types.Relationship{
			SourceObjectID:    in.SourceObjectID,
			TargetObjectID:    in.TargetObjectID,
			SourceAttributeID: sa,
			TargetAttributeID: ta,
			Type:              in.Type,
			Level:             level,
			Name:              in.Name,
			Description:       in.Description,
		}
		if _, err := t.Set("", rel); err != nil {
			return nil, fmt.Errorf("creating relationship: %w", err)
		}
		s.logger.Info("created relationship", "relationship_id", rel.RelationshipID, "level", level)
	case updateCanonical(rel, in.Type, in.Name, in.Description):
		if _, err := t.Set(rel.RelationshipID, rel); err != nil {
			return nil, fmt.Errorf("updating relationship: %w", err)
		}
		s.logger.Info("updated relationship", "relationship_id", rel.RelationshipID)
	}
	res.Relationship = rel

	sync, err := s.engine.Synchronize(cache, syncRequest(baseModel, rel))
	if err != nil {
		return res, err
	}
	res.ByModel = sync.ByModel
	res.SyncedModelIDs = sync.SyncedModelIDs
	res.Downgraded = sync.Downgraded
	return res, nil
}

// syncRequest projects rel as stored: its own orientation and ids.
func syncRequest(baseModel string, rel *types.Relationship) modelsync.SyncRequest {
	return modelsync.SyncRequest{
		BaseModelID:       baseModel,
		RelationshipID:    rel.RelationshipID,
		SourceObjectID:    rel.SourceObjectID,
		TargetObjectID:    rel.TargetObjectID,
		Type:              rel.Type,
		Level:             rel.Level,
		SourceAttributeID: rel.SourceAttributeID,
		TargetAttributeID: rel.TargetAttributeID,
		Name:              rel.Name,
		Description:       rel.Description,
	}
}

// updateCanonical applies the non-empty fields that differ and reports
// whether rel changed.
func updateCanonical(rel *types.Relationship, typ, name, description string) bool {
	changed := false
	for _, f := range []struct {
		dst *string
		v   string
	}{{&rel.Type, typ}, {&rel.Name, name}, {&rel.Description, description}} {
		if f.v != "" && *f.dst != f.v {
			*f.dst = f.v
			changed = true
		}
	}
	return changed
}

// RelationshipPatch lists the fields UpdateRelationship may change. Nil
// fields are left alone. Clearing both attribute ids moves the
// relationship to object level.
type RelationshipPatch struct {
	ModelID           string
	Type              *string
	Name              *string
	Description       *string
	SourceAttributeID *string
	TargetAttributeID *string
}

// UpdateRelationship changes a canonical relationship and re-synchronizes
// its projections. When the attribute pair changes, the projections of the
// old pair are removed first.
func (s *Service) UpdateRelationship(ctx context.Context, id string, patch RelationshipPatch) (*RelationshipResult, error) {
	rel, err := lookup[*types.Relationship](s, types.RelationshipsTable, "relationship_id", id)
	if err != nil {
		return nil, err
	}
	if patch.Type != nil && !types.ValidRelationshipType(*patch.Type) {
		return nil, fieldErr("type", types.ErrInvalidRelationshipType)
	}

	next := *rel
	if patch.Type != nil {
		next.Type = *patch.Type
	}
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.SourceAttributeID != nil {
		next.SourceAttributeID = *patch.SourceAttributeID
	}
	if patch.TargetAttributeID != nil {
		next.TargetAttributeID = *patch.TargetAttributeID
	}
	next.Level = modelsync.LevelFor(next.SourceAttributeID, next.TargetAttributeID)
	if next.Level == types.LevelObject {
		next.SourceAttributeID, next.TargetAttributeID = "", ""
	}

	ends, err := s.loadEnds(ctx, RelationshipInput{
		SourceObjectID:    next.SourceObjectID,
		TargetObjectID:    next.TargetObjectID,
		SourceAttributeID: next.SourceAttributeID,
		TargetAttributeID: next.TargetAttributeID,
	})
	if err != nil {
		return nil, err
	}
	baseModel := modelsync.FirstPresent(patch.ModelID, ends.source.ModelID)
	cache := modelsync.NewCache()

	if modelsync.KeyOf(rel.Endpoints()) != modelsync.KeyOf(next.Endpoints()) {
		if _, err := s.engine.Remove(cache, removeRequest(baseModel, rel)); err != nil {
			return nil, err
		}
	}

	t, err := s.table(types.RelationshipsTable)
	if err != nil {
		return nil, err
	}
	if _, err := t.Set(next.RelationshipID, &next); err != nil {
		return nil, fmt.Errorf("updating relationship: %w", err)
	}
	s.logger.Info("updated relationship", "relationship_id", next.RelationshipID, "level", next.Level)

	req := syncRequest(baseModel, &next)
	req.ClearEmpty = true
	sync, err := s.engine.Synchronize(cache, req)
	res := &RelationshipResult{Relationship: &next}
	if err != nil {
		return res, err
	}
	res.ByModel = sync.ByModel
	res.SyncedModelIDs = sync.SyncedModelIDs
	res.Downgraded = sync.Downgraded
	return res, nil
}

func removeRequest(baseModel string, rel *types.Relationship) modelsync.RemoveRequest {
	return modelsync.RemoveRequest{
		BaseModelID:       baseModel,
		SourceObjectID:    rel.SourceObjectID,
		TargetObjectID:    rel.TargetObjectID,
		SourceAttributeID: rel.SourceAttributeID,
		TargetAttributeID: rel.TargetAttributeID,
	}
}

// DeleteInput names the relationship to delete, either by canonical id or
// by its ends.
type DeleteInput struct {
	ModelID           string
	RelationshipID    string
	SourceObjectID    string
	TargetObjectID    string
	SourceAttributeID string
	TargetAttributeID string
}

// DeleteResult reports what DeleteRelationship removed.
type DeleteResult struct {
	RelationshipID   string              `json:"relationship_id,omitempty"`
	CanonicalDeleted bool                `json:"canonical_deleted"`
	DeletedByModel   map[string][]string `json:"deleted_by_model"`
	AffectedModelIDs []string            `json:"affected_model_ids"`
}

// DeleteRelationship removes every projection of the relationship from the
// family, then deletes the canonical relationship if it still exists.
func (s *Service) DeleteRelationship(ctx context.Context, in DeleteInput) (*DeleteResult, error) {
	if in.RelationshipID != "" {
		rel, err := lookup[*types.Relationship](s, types.RelationshipsTable, "relationship_id", in.RelationshipID)
		if err != nil {
			return nil, err
		}
		in.SourceObjectID, in.TargetObjectID = rel.SourceObjectID, rel.TargetObjectID
		in.SourceAttributeID, in.TargetAttributeID = rel.SourceAttributeID, rel.TargetAttributeID
	}
	ends, err := s.loadEnds(ctx, RelationshipInput{
		SourceObjectID:    in.SourceObjectID,
		TargetObjectID:    in.TargetObjectID,
		SourceAttributeID: in.SourceAttributeID,
		TargetAttributeID: in.TargetAttributeID,
	})
	if err != nil {
		return nil, err
	}
	baseModel := modelsync.FirstPresent(in.ModelID, ends.source.ModelID)

	removed, err := s.engine.Remove(modelsync.NewCache(), modelsync.RemoveRequest{
		BaseModelID:       baseModel,
		SourceObjectID:    in.SourceObjectID,
		TargetObjectID:    in.TargetObjectID,
		SourceAttributeID: in.SourceAttributeID,
		TargetAttributeID: in.TargetAttributeID,
	})
	if err != nil {
		return nil, err
	}
	res := &DeleteResult{DeletedByModel: removed.DeletedByModel, AffectedModelIDs: removed.AffectedModelIDs}

	existing, err := s.canonicalRelationships(in.SourceObjectID, in.TargetObjectID)
	if err != nil {
		return res, err
	}
	level := modelsync.LevelFor(in.SourceAttributeID, in.TargetAttributeID)
	rel, ok := modelsync.FindMatching(existing, in.SourceObjectID, in.TargetObjectID, level, in.SourceAttributeID, in.TargetAttributeID)
	if !ok {
		return res, nil
	}
	t, err := s.table(types.RelationshipsTable)
	if err != nil {
		return res, err
	}
	if err := t.Delete(rel.RelationshipID); err != nil && !errors.Is(err, types.ErrNotFound) {
		return res, fmt.Errorf("deleting relationship: %w", err)
	}
	res.RelationshipID = rel.RelationshipID
	res.CanonicalDeleted = true
	s.logger.Info("deleted relationship", "relationship_id", rel.RelationshipID,
		"models", len(removed.AffectedModelIDs))
	return res, nil
}
