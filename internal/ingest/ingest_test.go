package ingest

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/strata/internal/catalog"
	"github.com/mesh-intelligence/strata/internal/modeling"
	"github.com/mesh-intelligence/strata/internal/testutil"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// staticSource serves a fixed schema, filtered by the requested tables.
type staticSource struct {
	schema catalog.Schema
}

func (s staticSource) ExtractSchema(_ context.Context, tables []string) (*catalog.Schema, error) {
	out := &catalog.Schema{System: s.schema.System}
	for _, t := range s.schema.Tables {
		if len(tables) == 0 || slices.Contains(tables, t.Name) {
			out.Tables = append(out.Tables, t)
		}
	}
	return out, nil
}

func shopSource() staticSource {
	return staticSource{schema: catalog.Schema{
		System: "postgres",
		Tables: []catalog.Table{
			{
				Name:       "customers",
				PrimaryKey: []string{"id"},
				Columns: []catalog.Column{
					{Name: "id", Type: "bigint"},
					{Name: "email", Type: "text", IsUnique: true},
				},
			},
			{
				Name:       "orders",
				PrimaryKey: []string{"id"},
				Columns: []catalog.Column{
					{Name: "id", Type: "bigint"},
					{Name: "customer_id", Type: "bigint", Nullable: true},
					{Name: "buyer_id", Type: "bigint", Nullable: true},
				},
				ForeignKeys: []catalog.ForeignKey{{Column: "buyer_id", RefTable: "customers", RefColumn: "id"}},
			},
		},
	}}
}

type fixture struct {
	store  types.Store
	svc    *modeling.Service
	ing    *Ingestor
	triple *modeling.Triple
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore(t)
	logger := testutil.NewTestLogger(t)
	svc := modeling.NewService(store, logger)
	tr, err := svc.CreateModelTriple(context.Background(), modeling.TripleInput{Name: "Shop"})
	require.NoError(t, err)
	return &fixture{store: store, svc: svc, ing: New(svc, logger), triple: tr}
}

func TestSync_CreatesObjectsAttributesAndRelationships(t *testing.T) {
	f := newFixture(t)
	physical := f.triple.Physical.ModelID

	rep, err := f.ing.Sync(context.Background(), SyncRequest{
		ModelID:           physical,
		Direction:         DirectionTarget,
		IncludeAttributes: true,
		Source:            shopSource(),
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres", rep.System)
	assert.Equal(t, 2, rep.ObjectsCreated)
	assert.Equal(t, 5, rep.AttributesCreated)
	assert.Equal(t, 2, rep.RelationshipsCreated)
	assert.Empty(t, rep.Errors)
	assert.Equal(t, []string{physical}, rep.SyncedModelIDs)

	attrs := testutil.Fetch[*types.Attribute](t, f.store, types.AttributesTable, types.Filter{"name": "customer_id"})
	require.Len(t, attrs, 1)
	assert.Equal(t, "bigint", attrs[0].PhysicalType)
	assert.Empty(t, attrs[0].DataType)
	assert.True(t, attrs[0].IsNullable)

	mos := testutil.Fetch[*types.ModelObject](t, f.store, types.ModelObjectsTable, types.Filter{"model_id": physical})
	require.Len(t, mos, 2)
	for _, mo := range mos {
		assert.Equal(t, map[string]any{"sync": map[string]any{"system": "postgres", "direction": "target"}},
			mo.Config[types.ConfigKeyMetadata])
	}

	mrs := testutil.Fetch[*types.ModelRelationship](t, f.store, types.ModelRelationshipsTable, nil)
	require.Len(t, mrs, 2)
	for _, mr := range mrs {
		assert.Equal(t, types.LevelAttribute, mr.Level)
	}
}

func TestSync_RerunMatchesExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := SyncRequest{
		ModelID:           f.triple.Physical.ModelID,
		Direction:         DirectionTarget,
		IncludeAttributes: true,
		Source:            shopSource(),
	}
	_, err := f.ing.Sync(ctx, req)
	require.NoError(t, err)

	rep, err := f.ing.Sync(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.ObjectsCreated)
	assert.Equal(t, 2, rep.ObjectsMatched)
	assert.Equal(t, 0, rep.AttributesCreated)
	assert.Equal(t, 0, rep.RelationshipsCreated)
	assert.Equal(t, 2, rep.RelationshipsSkipped)

	assert.Len(t, testutil.Fetch[*types.Object](t, f.store, types.ObjectsTable, nil), 2)
	assert.Len(t, testutil.Fetch[*types.Relationship](t, f.store, types.RelationshipsTable, nil), 2)
	assert.Len(t, testutil.Fetch[*types.ModelRelationship](t, f.store, types.ModelRelationshipsTable, nil), 2)
}

func TestSync_KeepsExistingRelationship(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	model := f.triple.Physical.ModelID
	customers, err := f.svc.CreateObject(ctx, modeling.CreateObjectInput{
		ModelID:    model,
		Name:       "customers",
		Attributes: []modeling.AttributeInput{{Name: "id", IsPrimaryKey: true}},
	})
	require.NoError(t, err)
	orders, err := f.svc.CreateObject(ctx, modeling.CreateObjectInput{
		ModelID:    model,
		Name:       "orders",
		Attributes: []modeling.AttributeInput{{Name: "id", IsPrimaryKey: true}, {Name: "customer_id"}},
	})
	require.NoError(t, err)
	existing, err := f.svc.CreateRelationship(ctx, modeling.RelationshipInput{
		ModelID:           model,
		SourceObjectID:    orders.Object.ObjectID,
		TargetObjectID:    customers.Object.ObjectID,
		SourceAttributeID: orders.Attributes[1].AttributeID,
		TargetAttributeID: customers.Attributes[0].AttributeID,
		Type:              types.RelOneToMany,
		Name:              "places",
	})
	require.NoError(t, err)

	src := staticSource{schema: catalog.Schema{System: "postgres", Tables: []catalog.Table{
		{Name: "customers", PrimaryKey: []string{"id"}, Columns: []catalog.Column{{Name: "id", Type: "bigint"}}},
		{
			Name:       "orders",
			PrimaryKey: []string{"id"},
			Columns:    []catalog.Column{{Name: "id", Type: "bigint"}, {Name: "customer_id", Type: "bigint"}},
			ForeignKeys: []catalog.ForeignKey{
				{Column: "customer_id", RefTable: "customers", RefColumn: "id"},
			},
		},
	}}}
	rep, err := f.ing.Sync(ctx, SyncRequest{ModelID: model, Direction: DirectionTarget, IncludeAttributes: true, Source: src})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.RelationshipsCreated)
	assert.Equal(t, 1, rep.RelationshipsSkipped)
	assert.Empty(t, rep.Errors)

	rels := testutil.Fetch[*types.Relationship](t, f.store, types.RelationshipsTable, nil)
	require.Len(t, rels, 1)
	assert.Equal(t, existing.Relationship.RelationshipID, rels[0].RelationshipID)
	assert.Equal(t, types.RelOneToMany, rels[0].Type)
	assert.Equal(t, "places", rels[0].Name)

	mrs := testutil.Fetch[*types.ModelRelationship](t, f.store, types.ModelRelationshipsTable, nil)
	require.Len(t, mrs, 1)
	assert.Equal(t, types.RelOneToMany, mrs[0].Type)
	assert.Equal(t, "places", mrs[0].Name)
}

func TestSync_ObjectLevelSkipsRepeatedKeys(t *testing.T) {
	f := newFixture(t)

	rep, err := f.ing.Sync(context.Background(), SyncRequest{
		ModelID:   f.triple.Physical.ModelID,
		Direction: DirectionSource,
		Source:    shopSource(),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.AttributesCreated)
	assert.Equal(t, 1, rep.RelationshipsCreated)
	assert.Equal(t, 1, rep.RelationshipsSkipped, "buyer_id and customer_id both link orders to customers")

	rels := testutil.Fetch[*types.Relationship](t, f.store, types.RelationshipsTable, nil)
	require.Len(t, rels, 1)
	assert.Equal(t, types.LevelObject, rels[0].Level)
}

func TestSync_AddsMissingAttributesToMatchedObjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateObject(ctx, modeling.CreateObjectInput{
		ModelID:    f.triple.Physical.ModelID,
		Name:       "Customers",
		Attributes: []modeling.AttributeInput{{Name: "ID", PhysicalType: "int"}},
		Config:     types.LayerConfig{"visible": true},
	})
	require.NoError(t, err)

	rep, err := f.ing.Sync(ctx, SyncRequest{
		ModelID:           f.triple.Physical.ModelID,
		Direction:         DirectionSource,
		IncludeAttributes: true,
		Tables:            []string{"customers"},
		Source:            shopSource(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.ObjectsMatched)
	assert.Equal(t, 1, rep.AttributesCreated)

	email := testutil.Fetch[*types.Attribute](t, f.store, types.AttributesTable, types.Filter{"name": "email"})
	require.Len(t, email, 1)
	assert.Equal(t, "text", email[0].DataType)
	assert.Equal(t, 1, email[0].Ordinal)

	mos := testutil.Fetch[*types.ModelObject](t, f.store, types.ModelObjectsTable, nil)
	require.Len(t, mos, 1)
	assert.Equal(t, true, mos[0].Config["visible"])
	assert.NotNil(t, mos[0].Config[types.ConfigKeyMetadata])
}

func TestSync_CollectsCandidateErrors(t *testing.T) {
	f := newFixture(t)

	rep, err := f.ing.Sync(context.Background(), SyncRequest{
		ModelID:   f.triple.Physical.ModelID,
		Direction: DirectionSource,
		Tables:    []string{"orders"},
		Source:    shopSource(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.ObjectsCreated)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, "buyer_id", rep.Errors[0].Column)
	assert.Contains(t, rep.Errors[0].Message, "customers")
}

func TestSync_FromConceptualCascades(t *testing.T) {
	f := newFixture(t)

	rep, err := f.ing.Sync(context.Background(), SyncRequest{
		ModelID:           f.triple.Conceptual.ModelID,
		Direction:         DirectionSource,
		IncludeAttributes: true,
		Source:            shopSource(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.RelationshipsCreated)
	assert.Equal(t, []string{f.triple.Conceptual.ModelID, f.triple.Logical.ModelID, f.triple.Physical.ModelID}, rep.SyncedModelIDs)
	assert.Len(t, testutil.Fetch[*types.ModelRelationship](t, f.store, types.ModelRelationshipsTable, nil), 6)
}

func TestSync_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   SyncRequest
		field string
	}{
		{"no source", SyncRequest{ModelID: f.triple.Physical.ModelID, Direction: DirectionSource}, "source"},
		{"bad direction", SyncRequest{ModelID: f.triple.Physical.ModelID, Direction: "both", Source: shopSource()}, "direction"},
		{"unknown model", SyncRequest{ModelID: "ghost", Direction: DirectionSource, Source: shopSource()}, "model_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ing.Sync(ctx, tt.req)
			var fe *modeling.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
			assert.True(t, modeling.IsUserError(err))
		})
	}
}
