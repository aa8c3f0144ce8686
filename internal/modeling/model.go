package modeling

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// CreateModel validates and stores a single model. A logical or physical
// model's parent, when given, must exist.
func (s *Service) CreateModel(ctx context.Context, m *types.Model) (*types.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, modelFieldErr(err)
	}
	if m.ParentModelID != "" {
		if m.IsConceptual() {
			return nil, fieldErr("parent_model_id", types.ErrInvalidParent)
		}
		if _, err := lookup[*types.Model](s, types.ModelsTable, "parent_model_id", m.ParentModelID); err != nil {
			return nil, err
		}
	}

	t, err := s.table(types.ModelsTable)
	if err != nil {
		return nil, err
	}
	if _, err := t.Set("", m); err != nil {
		return nil, fmt.Errorf("creating model: %w", err)
	}
	s.logger.Info("created model", "model_id", m.ModelID, "layer", m.Layer, "name", m.Name)
	return m, nil
}

func modelFieldErr(err error) error {
	switch err {
	case types.ErrInvalidName:
		return fieldErr("name", err)
	case types.ErrInvalidLayer:
		return fieldErr("layer", err)
	case types.ErrInvalidParent:
		return fieldErr("parent_model_id", err)
	}
	return err
}

// TripleInput describes a conceptual, logical and physical model created
// together.
type TripleInput struct {
	Name         string
	Domain       string
	TargetSystem string
	Description  string
}

// Triple is the result of CreateModelTriple.
type Triple struct {
	Conceptual *types.Model `json:"conceptual"`
	Logical    *types.Model `json:"logical"`
	Physical   *types.Model `json:"physical"`
}

// CreateModelTriple creates a conceptual model and logical and physical
// children sharing its name, domain and target system.
func (s *Service) CreateModelTriple(ctx context.Context, in TripleInput) (*Triple, error) {
	if in.Name == "" {
		return nil, fieldErr("name", types.ErrInvalidName)
	}
	newModel := func(layer types.Layer, parent string) *types.Model {
		return &types.Model{
			Name:          in.Name,
			Layer:         layer,
			ParentModelID: parent,
			Domain:        in.Domain,
			TargetSystem:  in.TargetSystem,
			Description:   in.Description,
		}
	}

	c, err := s.CreateModel(ctx, newModel(types.LayerConceptual, ""))
	if err != nil {
		return nil, err
	}
	l, err := s.CreateModel(ctx, newModel(types.LayerLogical, c.ModelID))
	if err != nil {
		return nil, err
	}
	p, err := s.CreateModel(ctx, newModel(types.LayerPhysical, c.ModelID))
	if err != nil {
		return nil, err
	}
	return &Triple{Conceptual: c, Logical: l, Physical: p}, nil
}
