package modelsync

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/strata/internal/testutil"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// world wires an Engine to a throwaway store and builds fixtures in it.
type world struct {
	t     *testing.T
	store types.Store
	eng   *Engine
}

func newWorld(t *testing.T) *world {
	t.Helper()
	store := testutil.NewStore(t)
	return &world{t: t, store: store, eng: New(store, testutil.NewTestLogger(t))}
}

func (w *world) model(name string, layer types.Layer, parent string) *types.Model {
	w.t.Helper()
	m := &types.Model{Name: name, Layer: layer, ParentModelID: parent}
	testutil.Set(w.t, w.store, types.ModelsTable, m)
	return m
}

func (w *world) object(modelID, name string) *types.Object {
	w.t.Helper()
	o := &types.Object{ModelID: modelID, Name: name}
	testutil.Set(w.t, w.store, types.ObjectsTable, o)
	return o
}

func (w *world) copyOf(modelID string, origin *types.Object) *types.Object {
	w.t.Helper()
	o := &types.Object{ModelID: modelID, Name: origin.Name, OriginObjectID: origin.ObjectID, OriginModelID: origin.ModelID}
	testutil.Set(w.t, w.store, types.ObjectsTable, o)
	return o
}

func (w *world) attr(objectID, name, dataType string) *types.Attribute {
	w.t.Helper()
	a := &types.Attribute{ObjectID: objectID, Name: name, DataType: dataType}
	testutil.Set(w.t, w.store, types.AttributesTable, a)
	return a
}

func (w *world) project(m *types.Model, objectID string) *types.ModelObject {
	w.t.Helper()
	mo := &types.ModelObject{ModelID: m.ModelID, ObjectID: objectID, Layer: m.Layer}
	testutil.Set(w.t, w.store, types.ModelObjectsTable, mo)
	return mo
}

func (w *world) relProjections(modelID string) []*types.ModelRelationship {
	w.t.Helper()
	return testutil.Fetch[*types.ModelRelationship](w.t, w.store, types.ModelRelationshipsTable, types.Filter{"model_id": modelID})
}

func (w *world) sync(req SyncRequest) *SyncResult {
	w.t.Helper()
	res, err := w.eng.Synchronize(NewCache(), req)
	require.NoError(w.t, err)
	return res
}

// salesFamily is the fixture shared by the synchronization tests: a
// conceptual model C with Order and Customer, and logical and physical
// children L and P that project both objects directly.
type salesFamily struct {
	c, l, p         *types.Model
	order, customer *types.Object
	customerID      *types.Attribute // on Order
	id              *types.Attribute // on Customer
	mos             map[string][2]*types.ModelObject
}

func newSalesFamily(w *world) *salesFamily {
	f := &salesFamily{mos: make(map[string][2]*types.ModelObject)}
	f.c = w.model("Sales", types.LayerConceptual, "")
	f.l = w.model("Sales L", types.LayerLogical, f.c.ModelID)
	f.p = w.model("Sales P", types.LayerPhysical, f.c.ModelID)
	f.order = w.object(f.c.ModelID, "Order")
	f.customer = w.object(f.c.ModelID, "Customer")
	f.customerID = w.attr(f.order.ObjectID, "customer_id", "int")
	f.id = w.attr(f.customer.ObjectID, "id", "int")
	for _, m := range []*types.Model{f.c, f.l, f.p} {
		f.mos[m.ModelID] = [2]*types.ModelObject{w.project(m, f.order.ObjectID), w.project(m, f.customer.ObjectID)}
	}
	return f
}
