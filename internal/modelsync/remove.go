package modelsync

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// RemoveRequest names the relationship whose projections are to be removed
// from the family of BaseModelID.
type RemoveRequest struct {
	BaseModelID       string
	SourceObjectID    string
	TargetObjectID    string
	SourceAttributeID string
	TargetAttributeID string
}

// RemoveResult lists the projections deleted per model.
type RemoveResult struct {
	DeletedByModel   map[string][]string
	AffectedModelIDs []string
}

// Remove deletes, in every model of the family, all relationship
// projections matching the ends in either orientation. The level is
// recomputed per model without creating attribute projections, so a model
// lacking them matches at object level. Duplicates are deleted too.
func (e *Engine) Remove(c *Cache, req RemoveRequest) (*RemoveResult, error) {
	source, err := e.Object(c, req.SourceObjectID)
	if err != nil {
		return nil, err
	}
	target, err := e.Object(c, req.TargetObjectID)
	if err != nil {
		return nil, err
	}
	sourceAttr, targetAttr, err := e.requestedAttributes(c, "", req.SourceAttributeID, req.TargetAttributeID)
	if err != nil {
		return nil, err
	}
	family, err := e.ResolveFamily(c, req.BaseModelID)
	if err != nil {
		return nil, err
	}

	res := &RemoveResult{DeletedByModel: make(map[string][]string)}
	for _, m := range family.Members {
		ends, err := e.resolveEnds(c, m, source, target, sourceAttr, targetAttr, false)
		if err != nil {
			return res, fmt.Errorf("removing from model %s: %w", m.ModelID, err)
		}
		if ends == nil {
			continue
		}
		existing, err := e.RelationshipProjections(c, m.ModelID)
		if err != nil {
			return res, err
		}
		sa, ta := ends.attrIDs()
		matches := FindAllMatching(existing, ends.source.ModelObjectID, ends.target.ModelObjectID, ends.level, sa, ta)
		if len(matches) == 0 {
			continue
		}

		t, err := e.table(types.ModelRelationshipsTable)
		if err != nil {
			return res, err
		}
		for _, mr := range matches {
			if err := t.Delete(mr.ModelRelationshipID); err != nil && !errors.Is(err, types.ErrNotFound) {
				return res, fmt.Errorf("removing projection %s: %w", mr.ModelRelationshipID, err)
			}
			c.dropModelRelationship(mr)
			res.DeletedByModel[m.ModelID] = append(res.DeletedByModel[m.ModelID], mr.ModelRelationshipID)
		}
		res.AffectedModelIDs = append(res.AffectedModelIDs, m.ModelID)
		e.logger.Info("removed relationship projections",
			"model_id", m.ModelID, "level", ends.level, "count", len(matches))
	}
	return res, nil
}
