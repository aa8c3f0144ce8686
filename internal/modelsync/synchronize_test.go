package modelsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/strata/internal/testutil"
	"github.com/mesh-intelligence/strata/pkg/types"
)

func TestSynchronize_ObjectLevelAcrossFamily(t *testing.T) {
	w := newWorld(t)
	f := newSalesFamily(w)

	res := w.sync(SyncRequest{
		BaseModelID:    f.c.ModelID,
		SourceObjectID: f.order.ObjectID,
		TargetObjectID: f.customer.ObjectID,
		Type:           types.RelManyToOne,
		Level:          types.LevelObject,
	})

	assert.Equal(t, []string{f.c.ModelID, f.l.ModelID, f.p.ModelID}, res.SyncedModelIDs)
	assert.Empty(t, res.Downgraded)
	for _, m := range []*types.Model{f.c, f.l, f.p} {
		rels := w.relProjections(m.ModelID)
		require.Len(t, rels, 1, m.Name)
		assert.Equal(t, m.Layer, rels[0].Layer)
		assert.Equal(t, types.LevelObject, rels[0].Level)
		assert.Equal(t, types.RelManyToOne, rels[0].Type)
		assert.Equal(t, f.mos[m.ModelID][0].ModelObjectID, rels[0].SourceModelObjectID)
		assert.Equal(t, rels[0].ModelRelationshipID, res.ByModel[m.ModelID].ModelRelationshipID)
	}
}

func TestSynchronize_DowngradesWithoutAttributeCopies(t *testing.T) {
	w := newWorld(t)
	c := w.model("Sales", types.LayerConceptual, "")
	l := w.model("Sales L", types.LayerLogical, c.ModelID)
	p := w.model("Sales P", types.LayerPhysical, c.ModelID)
	order := w.object(c.ModelID, "Order")
	customer := w.object(c.ModelID, "Customer")
	customerID := w.attr(order.ObjectID, "customer_id", "int")
	id := w.attr(customer.ObjectID, "id", "int")
	for _, m := range []*types.Model{c, l} {
		w.project(m, order.ObjectID)
		w.project(m, customer.ObjectID)
	}
	// P projects its own copies of Order and Customer, which carry no
	// attributes.
	w.project(p, w.copyOf(p.ModelID, order).ObjectID)
	w.project(p, w.copyOf(p.ModelID, customer).ObjectID)

	res := w.sync(SyncRequest{
		BaseModelID:       c.ModelID,
		SourceObjectID:    order.ObjectID,
		TargetObjectID:    customer.ObjectID,
		Type:              types.RelManyToOne,
		Level:             types.LevelAttribute,
		SourceAttributeID: customerID.AttributeID,
		TargetAttributeID: id.AttributeID,
	})

	assert.Equal(t, []string{c.ModelID, l.ModelID, p.ModelID}, res.SyncedModelIDs)
	assert.Equal(t, []string{p.ModelID}, res.Downgraded)

	for _, m := range []*types.Model{c, l} {
		mr := res.ByModel[m.ModelID]
		assert.Equal(t, types.LevelAttribute, mr.Level, m.Name)
		assert.NotEmpty(t, mr.SourceModelAttributeID)
		assert.NotEmpty(t, mr.TargetModelAttributeID)
	}
	lAttrs := testutil.Fetch[*types.ModelAttribute](t, w.store, types.ModelAttributesTable, types.Filter{"model_id": l.ModelID})
	assert.Len(t, lAttrs, 2, "missing attribute projections are created in L")

	assert.Equal(t, types.LevelObject, res.ByModel[p.ModelID].Level)
	assert.Empty(t, res.ByModel[p.ModelID].SourceModelAttributeID)
	pAttrs := testutil.Fetch[*types.ModelAttribute](t, w.store, types.ModelAttributesTable, types.Filter{"model_id": p.ModelID})
	assert.Empty(t, pAttrs)
}

func TestSynchronize_Idempotent(t *testing.T) {
	w := newWorld(t)
	f := newSalesFamily(w)
	req := SyncRequest{
		BaseModelID:       f.l.ModelID,
		SourceObjectID:    f.order.ObjectID,
		TargetObjectID:    f.customer.ObjectID,
		Type:              types.RelManyToOne,
		Level:             types.LevelAttribute,
		SourceAttributeID: f.customerID.AttributeID,
		TargetAttributeID: f.id.AttributeID,
		Name:              "places",
	}

	first := w.sync(req)
	second := w.sync(req)

	assert.Equal(t, first.SyncedModelIDs, second.SyncedModelIDs)
	for modelID, mr := range first.ByModel {
		again := second.ByModel[modelID]
		assert.Equal(t, mr.ModelRelationshipID, again.ModelRelationshipID)
		assert.True(t, mr.UpdatedAt.Equal(again.UpdatedAt), "zero diff must not write")
		assert.Len(t, w.relProjections(modelID), 1)
	}
	attrs := testutil.Fetch[*types.ModelAttribute](t, w.store, types.ModelAttributesTable, nil)
	assert.Len(t, attrs, 6, "two attribute projections per model, created once")
}

func TestSynchronize_DirectionInsensitive(t *testing.T) {
	w := newWorld(t)
	f := newSalesFamily(w)

	forward := w.sync(SyncRequest{
		BaseModelID: f.c.ModelID, SourceObjectID: f.order.ObjectID, TargetObjectID: f.customer.ObjectID,
		Type: types.RelManyToOne, SourceAttributeID: f.customerID.AttributeID, TargetAttributeID: f.id.AttributeID,
	})
	backward := w.sync(SyncRequest{
		BaseModelID: f.c.ModelID, SourceObjectID: f.customer.ObjectID, TargetObjectID: f.order.ObjectID,
		Type: types.RelOneToMany, SourceAttributeID: f.id.AttributeID, TargetAttributeID: f.customerID.AttributeID,
	})

	for _, m := range []*types.Model{f.c, f.l, f.p} {
		rels := w.relProjections(m.ModelID)
		require.Len(t, rels, 1)
		assert.Equal(t, forward.ByModel[m.ModelID].ModelRelationshipID, backward.ByModel[m.ModelID].ModelRelationshipID)
		assert.Equal(t, types.RelOneToMany, rels[0].Type, "changed field is updated in place")
		assert.Equal(t, f.mos[m.ModelID][0].ModelObjectID, rels[0].SourceModelObjectID, "stored orientation is kept")
	}
}

func TestSynchronize_OneSidedAttributeIsObjectLevel(t *testing.T) {
	w := newWorld(t)
	f := newSalesFamily(w)

	res := w.sync(SyncRequest{
		BaseModelID: f.c.ModelID, SourceObjectID: f.order.ObjectID, TargetObjectID: f.customer.ObjectID,
		Type: types.RelManyToOne, Level: types.LevelAttribute, SourceAttributeID: f.customerID.AttributeID,
	})
	for _, mr := range res.ByModel {
		assert.Equal(t, types.LevelObject, mr.Level)
	}
	assert.Empty(t, res.Downgraded, "object level was the rule, not a downgrade")
}

func TestSynchronize_SkipsModelWithoutObjects(t *testing.T) {
	w := newWorld(t)
	c := w.model("Sales", types.LayerConceptual, "")
	l := w.model("Sales L", types.LayerLogical, c.ModelID)
	order := w.object(c.ModelID, "Order")
	customer := w.object(c.ModelID, "Customer")
	w.project(c, order.ObjectID)
	w.project(c, customer.ObjectID)
	w.project(l, order.ObjectID)

	res := w.sync(SyncRequest{
		BaseModelID: c.ModelID, SourceObjectID: order.ObjectID, TargetObjectID: customer.ObjectID, Type: types.RelOneToOne,
	})
	assert.Equal(t, []string{c.ModelID}, res.SyncedModelIDs)
	assert.Equal(t, []string{l.ModelID}, res.Skipped)
	assert.Empty(t, w.relProjections(l.ModelID))
}

func TestSynchronize_DuplicateOnCreateUpdatesExisting(t *testing.T) {
	w := newWorld(t)
	f := newSalesFamily(w)
	cache := NewCache()

	// Load C's projections into the cache, then let another writer insert
	// the same projection behind the cache's back.
	_, err := w.eng.RelationshipProjections(cache, f.c.ModelID)
	require.NoError(t, err)
	other := &types.ModelRelationship{
		ModelID: f.c.ModelID, SourceModelObjectID: f.mos[f.c.ModelID][0].ModelObjectID,
		TargetModelObjectID: f.mos[f.c.ModelID][1].ModelObjectID, Layer: types.LayerConceptual,
		Level: types.LevelObject, Type: types.RelOneToOne,
	}
	testutil.Set(t, w.store, types.ModelRelationshipsTable, other)

	res, err := w.eng.Synchronize(cache, SyncRequest{
		BaseModelID: f.c.ModelID, SourceObjectID: f.order.ObjectID, TargetObjectID: f.customer.ObjectID,
		Type: types.RelManyToOne,
	})
	require.NoError(t, err)
	assert.Equal(t, other.ModelRelationshipID, res.ByModel[f.c.ModelID].ModelRelationshipID)
	rels := w.relProjections(f.c.ModelID)
	require.Len(t, rels, 1)
	assert.Equal(t, types.RelManyToOne, rels[0].Type)

	got, ok := cache.SyncResult(f.c.ModelID)
	require.True(t, ok)
	assert.Equal(t, other.ModelRelationshipID, got.ModelRelationshipID)
}

func TestSynchronize_InvalidType(t *testing.T) {
	w := newWorld(t)
	f := newSalesFamily(w)
	_, err := w.eng.Synchronize(NewCache(), SyncRequest{
		BaseModelID: f.c.ModelID, SourceObjectID: f.order.ObjectID, TargetObjectID: f.customer.ObjectID, Type: "1:many",
	})
	assert.ErrorIs(t, err, types.ErrInvalidRelationshipType)
}
