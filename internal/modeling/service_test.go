package modeling

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/strata/internal/testutil"
	"github.com/mesh-intelligence/strata/pkg/types"
)

func newService(t *testing.T) (*Service, types.Store) {
	t.Helper()
	store := testutil.NewStore(t)
	return NewService(store, testutil.NewTestLogger(t)), store
}

func newTriple(t *testing.T, s *Service) *Triple {
	t.Helper()
	tr, err := s.CreateModelTriple(context.Background(), TripleInput{Name: "Sales", Domain: "retail", TargetSystem: "postgres"})
	require.NoError(t, err)
	return tr
}

func TestCreateModelTriple(t *testing.T) {
	s, _ := newService(t)
	tr := newTriple(t, s)

	assert.Equal(t, types.LayerConceptual, tr.Conceptual.Layer)
	assert.Equal(t, tr.Conceptual.ModelID, tr.Logical.ParentModelID)
	assert.Equal(t, tr.Conceptual.ModelID, tr.Physical.ParentModelID)
	assert.Equal(t, "postgres", tr.Physical.TargetSystem)
	assert.Equal(t, "retail", tr.Logical.Domain)

	f, err := s.Family(context.Background(), tr.Physical.ModelID)
	require.NoError(t, err)
	assert.Equal(t, []string{tr.Conceptual.ModelID, tr.Logical.ModelID, tr.Physical.ModelID}, f.MemberIDs())
}

func TestCreateModel_Validation(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	c, err := s.CreateModel(ctx, &types.Model{Name: "C", Layer: types.LayerConceptual})
	require.NoError(t, err)

	tests := []struct {
		name  string
		model *types.Model
		field string
		want  error
	}{
		{"missing name", &types.Model{Layer: types.LayerConceptual}, "name", types.ErrInvalidName},
		{"bad layer", &types.Model{Name: "x", Layer: "raw"}, "layer", types.ErrInvalidLayer},
		{"unknown parent", &types.Model{Name: "x", Layer: types.LayerLogical, ParentModelID: "ghost"}, "parent_model_id", types.ErrNotFound},
		{"conceptual with parent", &types.Model{Name: "x", Layer: types.LayerConceptual, ParentModelID: c.ModelID}, "parent_model_id", types.ErrInvalidParent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateModel(ctx, tt.model)
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsUserError(err))
		})
	}
}

func TestIsUserError(t *testing.T) {
	assert.True(t, IsUserError(fmt.Errorf("wrapped: %w", types.ErrNotFound)))
	assert.True(t, IsUserError(&FieldError{Field: "x", Err: errors.New("bad")}))
	assert.False(t, IsUserError(errors.New("disk full")))
	assert.False(t, IsUserError(types.ErrStoreDetached))
}

func TestCreateObject_CascadesFromConceptual(t *testing.T) {
	s, store := newService(t)
	tr := newTriple(t, s)

	res, err := s.CreateObject(context.Background(), CreateObjectInput{
		ModelID: tr.Conceptual.ModelID,
		Name:    "Customer",
		Attributes: []AttributeInput{
			{Name: "id", DataType: "int", IsPrimaryKey: true, PhysicalType: "BIGINT"},
			{Name: "email", ConceptualType: "Text"},
		},
		Config:      types.LayerConfig{"visible": true},
		LayerConfig: map[types.Layer]types.LayerConfig{types.LayerPhysical: {"position": map[string]any{"x": 3.0}}},
	})
	require.NoError(t, err)

	assert.Equal(t, tr.Conceptual.ModelID, res.Object.ModelID)
	require.Len(t, res.Attributes, 2)
	assert.Equal(t, 1, res.Attributes[1].Ordinal)
	assert.True(t, res.Attributes[1].IsNullable)
	assert.Empty(t, res.Skipped)

	require.Contains(t, res.Replicas, types.LayerLogical)
	require.Contains(t, res.Replicas, types.LayerPhysical)
	phys := res.Replicas[types.LayerPhysical]
	assert.Equal(t, res.Object.ObjectID, phys.Object.OriginObjectID)
	assert.Equal(t, tr.Physical.ModelID, phys.ModelObject.ModelID)
	assert.Equal(t, true, phys.ModelObject.Config["visible"])
	assert.Equal(t, map[string]any{"x": 3.0}, phys.ModelObject.Config["position"])
	assert.Equal(t, "BIGINT", phys.ModelAttributes[0].DataType)
	assert.Equal(t, "Text", phys.ModelAttributes[1].DataType)

	logical := res.Replicas[types.LayerLogical]
	assert.Nil(t, logical.ModelObject.Config["position"], "physical override does not leak")

	mos := testutil.Fetch[*types.ModelObject](t, store, types.ModelObjectsTable, nil)
	assert.Len(t, mos, 3)
}

func TestCreateObject_NoCascadeFromLogical(t *testing.T) {
	s, store := newService(t)
	tr := newTriple(t, s)

	res, err := s.CreateObject(context.Background(), CreateObjectInput{ModelID: tr.Logical.ModelID, Name: "AuditLog"})
	require.NoError(t, err)
	assert.Empty(t, res.Replicas)

	mos := testutil.Fetch[*types.ModelObject](t, store, types.ModelObjectsTable, nil)
	assert.Len(t, mos, 1)
}

func TestCreateObject_CascadeOptOut(t *testing.T) {
	s, _ := newService(t)
	tr := newTriple(t, s)
	off := false

	res, err := s.CreateObject(context.Background(), CreateObjectInput{ModelID: tr.Conceptual.ModelID, Name: "Draft", Cascade: &off})
	require.NoError(t, err)
	assert.Empty(t, res.Replicas)
}

func TestCreateObject_SkipsMissingLayer(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	c, err := s.CreateModel(ctx, &types.Model{Name: "Solo", Layer: types.LayerConceptual})
	require.NoError(t, err)

	res, err := s.CreateObject(ctx, CreateObjectInput{ModelID: c.ModelID, Name: "Thing"})
	require.NoError(t, err)
	assert.Len(t, res.Skipped, 2)
}

func TestCreateObject_WithRelationship(t *testing.T) {
	s, store := newService(t)
	tr := newTriple(t, s)
	ctx := context.Background()

	customer, err := s.CreateObject(ctx, CreateObjectInput{
		ModelID:    tr.Conceptual.ModelID,
		Name:       "Customer",
		Attributes: []AttributeInput{{Name: "id", DataType: "int", IsPrimaryKey: true}},
	})
	require.NoError(t, err)

	order, err := s.CreateObject(ctx, CreateObjectInput{
		ModelID:    tr.Conceptual.ModelID,
		Name:       "Order",
		Attributes: []AttributeInput{{Name: "customer_id", DataType: "int", IsForeignKey: true}},
		Relationships: []ObjectRelationshipInput{{
			TargetObjectID:    customer.Object.ObjectID,
			Type:              types.RelManyToOne,
			SourceAttribute:   "customer_id",
			TargetAttributeID: customer.Attributes[0].AttributeID,
		}},
	})
	require.NoError(t, err)
	require.Len(t, order.Relationships, 1)

	rel := order.Relationships[0]
	assert.True(t, rel.Created)
	assert.Equal(t, types.LevelAttribute, rel.Relationship.Level)
	assert.Equal(t, []string{tr.Conceptual.ModelID, tr.Logical.ModelID, tr.Physical.ModelID}, rel.SyncedModelIDs)
	assert.Empty(t, rel.Downgraded, "replicated copies carry their attributes")
	for _, mr := range rel.ByModel {
		assert.Equal(t, types.LevelAttribute, mr.Level)
		assert.Equal(t, rel.Relationship.RelationshipID, mr.RelationshipID)
	}

	mrs := testutil.Fetch[*types.ModelRelationship](t, store, types.ModelRelationshipsTable, nil)
	assert.Len(t, mrs, 3)
}

func TestCreateObject_Validation(t *testing.T) {
	s, _ := newService(t)
	tr := newTriple(t, s)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    CreateObjectInput
		field string
	}{
		{"missing name", CreateObjectInput{ModelID: tr.Conceptual.ModelID}, "name"},
		{"unknown model", CreateObjectInput{ModelID: "ghost", Name: "X"}, "model_id"},
		{"blank attribute", CreateObjectInput{ModelID: tr.Conceptual.ModelID, Name: "X", Attributes: []AttributeInput{{Name: " "}}}, "attributes[0].name"},
		{"bad relationship type", CreateObjectInput{ModelID: tr.Conceptual.ModelID, Name: "X",
			Relationships: []ObjectRelationshipInput{{TargetObjectID: "t", Type: "one"}}}, "relationships[0].type"},
		{"unknown source attribute", CreateObjectInput{ModelID: tr.Conceptual.ModelID, Name: "X",
			Relationships: []ObjectRelationshipInput{{TargetObjectID: "t", Type: types.RelOneToOne, SourceAttribute: "nope"}}}, "relationships[0].source_attribute"},
		{"unknown target", CreateObjectInput{ModelID: tr.Conceptual.ModelID, Name: "X",
			Relationships: []ObjectRelationshipInput{{TargetObjectID: "ghost", Type: types.RelOneToOne}}}, "relationships[0].target_object_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateObject(ctx, tt.in)
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestUpdateModelObjectConfig_PreservesUnknownKeys(t *testing.T) {
	s, _ := newService(t)
	tr := newTriple(t, s)
	ctx := context.Background()

	res, err := s.CreateObject(ctx, CreateObjectInput{
		ModelID: tr.Logical.ModelID,
		Name:    "Order",
		Config:  types.LayerConfig{"plugin": map[string]any{"color": "red"}, "position": map[string]any{"x": 1.0, "y": 1.0}},
	})
	require.NoError(t, err)

	mo, err := s.UpdateModelObjectConfig(ctx, res.ModelObject.ModelObjectID, types.LayerConfig{"position": map[string]any{"x": 4.0}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"color": "red"}, mo.Config["plugin"])
	assert.Equal(t, map[string]any{"x": 4.0, "y": 1.0}, mo.Config["position"])

	_, err = s.UpdateModelObjectConfig(ctx, "ghost", nil)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestAddAttribute(t *testing.T) {
	s, _ := newService(t)
	tr := newTriple(t, s)
	ctx := context.Background()

	res, err := s.CreateObject(ctx, CreateObjectInput{
		ModelID:    tr.Physical.ModelID,
		Name:       "orders",
		Attributes: []AttributeInput{{Name: "id", PhysicalType: "bigint"}},
	})
	require.NoError(t, err)

	no := false
	a, ma, err := s.AddAttribute(ctx, res.ModelObject.ModelObjectID, AttributeInput{Name: "total", PhysicalType: "numeric", IsNullable: &no})
	require.NoError(t, err)
	assert.Equal(t, 1, a.Ordinal)
	assert.False(t, a.IsNullable)
	assert.Equal(t, "numeric", ma.DataType)
	assert.Equal(t, tr.Physical.ModelID, ma.ModelID)

	_, _, err = s.AddAttribute(ctx, "ghost", AttributeInput{Name: "x"})
	assert.ErrorIs(t, err, types.ErrNotFound)
}
