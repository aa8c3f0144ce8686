package modelsync

import (
	"slices"
	"sync"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// Cache holds the records one request has seen. Reads fill it lazily and
// writes are mirrored into it. It is safe for the concurrent reads a
// request fans out, but must not outlive the request.
type Cache struct {
	mu sync.Mutex

	models      map[string]*types.Model
	allModels   []*types.Model
	objects     map[string]*types.Object
	attributes  map[string][]*types.Attribute      // by object id
	projections map[string][]*types.ModelObject    // by model id
	attrProjs   map[string][]*types.ModelAttribute // by model object id
	relProjs    map[string][]*types.ModelRelationship
	families    map[string]*Family
	syncResults map[string]*types.ModelRelationship
}

// NewCache returns an empty request cache.
func NewCache() *Cache {
	return &Cache{
		models:      make(map[string]*types.Model),
		objects:     make(map[string]*types.Object),
		attributes:  make(map[string][]*types.Attribute),
		projections: make(map[string][]*types.ModelObject),
		attrProjs:   make(map[string][]*types.ModelAttribute),
		relProjs:    make(map[string][]*types.ModelRelationship),
		families:    make(map[string]*Family),
		syncResults: make(map[string]*types.ModelRelationship),
	}
}

func (c *Cache) putModel(m *types.Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[m.ModelID] = m
	if c.allModels != nil {
		c.allModels = replaceOrAppend(c.allModels, m, func(x *types.Model) bool { return x.ModelID == m.ModelID })
	}
	// Membership may have changed.
	clear(c.families)
}

func (c *Cache) putObject(o *types.Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[o.ObjectID] = o
}

// initObject records an object created by this request; it has no
// attributes yet.
func (c *Cache) initObject(o *types.Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[o.ObjectID] = o
	if _, ok := c.attributes[o.ObjectID]; !ok {
		c.attributes[o.ObjectID] = nil
	}
}

// initModelObject records a projection created by this request.
func (c *Cache) initModelObject(mo *types.ModelObject) {
	c.mu.Lock()
	if _, ok := c.attrProjs[mo.ModelObjectID]; !ok {
		c.attrProjs[mo.ModelObjectID] = nil
	}
	c.mu.Unlock()
	c.putModelObject(mo)
}

func (c *Cache) putAttribute(a *types.Attribute) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if list, ok := c.attributes[a.ObjectID]; ok {
		c.attributes[a.ObjectID] = replaceOrAppend(list, a, func(x *types.Attribute) bool { return x.AttributeID == a.AttributeID })
	}
}

func (c *Cache) putModelObject(mo *types.ModelObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if list, ok := c.projections[mo.ModelID]; ok {
		c.projections[mo.ModelID] = replaceOrAppend(list, mo, func(x *types.ModelObject) bool { return x.ModelObjectID == mo.ModelObjectID })
	}
}

func (c *Cache) putModelAttribute(ma *types.ModelAttribute) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if list, ok := c.attrProjs[ma.ModelObjectID]; ok {
		c.attrProjs[ma.ModelObjectID] = replaceOrAppend(list, ma, func(x *types.ModelAttribute) bool { return x.ModelAttributeID == ma.ModelAttributeID })
	}
}

func (c *Cache) putModelRelationship(mr *types.ModelRelationship) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if list, ok := c.relProjs[mr.ModelID]; ok {
		c.relProjs[mr.ModelID] = replaceOrAppend(list, mr, func(x *types.ModelRelationship) bool { return x.ModelRelationshipID == mr.ModelRelationshipID })
	}
}

func (c *Cache) dropModelRelationship(mr *types.ModelRelationship) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if list, ok := c.relProjs[mr.ModelID]; ok {
		c.relProjs[mr.ModelID] = slices.DeleteFunc(list, func(x *types.ModelRelationship) bool {
			return x.ModelRelationshipID == mr.ModelRelationshipID
		})
	}
	delete(c.syncResults, mr.ModelID)
}

// forgetAttributeProjections drops the cached attribute projections under
// a model object.
func (c *Cache) forgetAttributeProjections(modelObjectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attrProjs, modelObjectID)
}

// forgetModelRelationships drops the cached relationship projections of a
// model so the next read goes to the store.
func (c *Cache) forgetModelRelationships(modelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.relProjs, modelID)
}

func (c *Cache) recordSync(mr *types.ModelRelationship) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncResults[mr.ModelID] = mr
}

// SyncResult returns the relationship projection the request last
// synchronized in modelID.
func (c *Cache) SyncResult(modelID string) (*types.ModelRelationship, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mr, ok := c.syncResults[modelID]
	return mr, ok
}

func replaceOrAppend[T any](list []T, v T, same func(T) bool) []T {
	if i := slices.IndexFunc(list, same); i >= 0 {
		list[i] = v
		return list
	}
	return append(list, v)
}

// Models returns every model in the store.
func (e *Engine) Models(c *Cache) ([]*types.Model, error) {
	c.mu.Lock()
	if c.allModels != nil {
		out := slices.Clone(c.allModels)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	models, err := fetchAll[*types.Model](e.store, types.ModelsTable, nil)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.allModels = models
	for _, m := range models {
		c.models[m.ModelID] = m
	}
	return slices.Clone(models), nil
}

// Model returns the model with the given id.
func (e *Engine) Model(c *Cache, id string) (*types.Model, error) {
	c.mu.Lock()
	m, ok := c.models[id]
	c.mu.Unlock()
	if ok {
		return m, nil
	}
	m, err := getAs[*types.Model](e.store, types.ModelsTable, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.models[id] = m
	c.mu.Unlock()
	return m, nil
}

// Object returns the canonical object with the given id.
func (e *Engine) Object(c *Cache, id string) (*types.Object, error) {
	c.mu.Lock()
	o, ok := c.objects[id]
	c.mu.Unlock()
	if ok {
		return o, nil
	}
	o, err := getAs[*types.Object](e.store, types.ObjectsTable, id)
	if err != nil {
		return nil, err
	}
	c.putObject(o)
	return o, nil
}

// Attributes returns the canonical attributes of an object in ordinal order.
func (e *Engine) Attributes(c *Cache, objectID string) ([]*types.Attribute, error) {
	c.mu.Lock()
	list, ok := c.attributes[objectID]
	c.mu.Unlock()
	if ok {
		return slices.Clone(list), nil
	}
	list, err := fetchAll[*types.Attribute](e.store, types.AttributesTable, types.Filter{"object_id": objectID})
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.attributes[objectID] = list
	c.mu.Unlock()
	return slices.Clone(list), nil
}

// Projections returns the object projections of a model.
func (e *Engine) Projections(c *Cache, modelID string) ([]*types.ModelObject, error) {
	c.mu.Lock()
	list, ok := c.projections[modelID]
	c.mu.Unlock()
	if ok {
		return slices.Clone(list), nil
	}
	list, err := fetchAll[*types.ModelObject](e.store, types.ModelObjectsTable, types.Filter{"model_id": modelID})
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.projections[modelID] = list
	c.mu.Unlock()
	return slices.Clone(list), nil
}

// AttributeProjections returns the attribute projections under one object
// projection.
func (e *Engine) AttributeProjections(c *Cache, modelObjectID string) ([]*types.ModelAttribute, error) {
	c.mu.Lock()
	list, ok := c.attrProjs[modelObjectID]
	c.mu.Unlock()
	if ok {
		return slices.Clone(list), nil
	}
	list, err := fetchAll[*types.ModelAttribute](e.store, types.ModelAttributesTable, types.Filter{"model_object_id": modelObjectID})
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.attrProjs[modelObjectID] = list
	c.mu.Unlock()
	return slices.Clone(list), nil
}

// RelationshipProjections returns the relationship projections of a model.
func (e *Engine) RelationshipProjections(c *Cache, modelID string) ([]*types.ModelRelationship, error) {
	c.mu.Lock()
	list, ok := c.relProjs[modelID]
	c.mu.Unlock()
	if ok {
		return slices.Clone(list), nil
	}
	list, err := fetchAll[*types.ModelRelationship](e.store, types.ModelRelationshipsTable, types.Filter{"model_id": modelID})
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.relProjs[modelID] = list
	c.mu.Unlock()
	return slices.Clone(list), nil
}

// Relationships returns the canonical relationships whose source is one of
// objectIDs. Canonical relationships are not cached.
func (e *Engine) Relationships(objectIDs []string) ([]*types.Relationship, error) {
	if len(objectIDs) == 0 {
		return nil, nil
	}
	return fetchAll[*types.Relationship](e.store, types.RelationshipsTable, types.Filter{"source_object_id": objectIDs})
}
