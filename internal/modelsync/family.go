package modelsync

import (
	"cmp"
	"slices"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// Family is the set of models sharing one conceptual root. It is derived
// from parent pointers on every call and never stored.
type Family struct {
	// Root is where the parent walk stopped. It is the conceptual model
	// unless the chain is broken or cyclic.
	Root       *types.Model
	Conceptual *types.Model
	Logical    *types.Model
	Physical   *types.Model
	// Members is every model whose root is Root, ordered conceptual,
	// logical, physical, then by creation time and id.
	Members []*types.Model
}

// ForLayer returns the family's model at layer, or nil.
func (f *Family) ForLayer(layer types.Layer) *types.Model {
	switch layer {
	case types.LayerConceptual:
		return f.Conceptual
	case types.LayerLogical:
		return f.Logical
	case types.LayerPhysical:
		return f.Physical
	}
	return nil
}

// MemberIDs returns the ids of Members in order.
func (f *Family) MemberIDs() []string {
	ids := make([]string, len(f.Members))
	for i, m := range f.Members {
		ids[i] = m.ModelID
	}
	return ids
}

// ResolveFamily finds the conceptual root of modelID and every model that
// shares it. When modelID is itself logical or physical it is the family's
// model for that layer regardless of siblings.
func (e *Engine) ResolveFamily(c *Cache, modelID string) (*Family, error) {
	c.mu.Lock()
	f, ok := c.families[modelID]
	c.mu.Unlock()
	if ok {
		return f, nil
	}

	self, err := e.Model(c, modelID)
	if err != nil {
		return nil, err
	}
	all, err := e.Models(c)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*types.Model, len(all)+1)
	for _, m := range all {
		byID[m.ModelID] = m
	}
	byID[self.ModelID] = self

	root := rootOf(self, byID)
	if !root.IsConceptual() && root.ParentModelID != "" {
		e.logger.Warn("model parent chain does not reach a conceptual model",
			"model_id", self.ModelID, "root_id", root.ModelID)
	}

	f = &Family{Root: root}
	for _, m := range all {
		if rootOf(m, byID).ModelID == root.ModelID {
			f.Members = append(f.Members, m)
		}
	}
	if !slices.ContainsFunc(f.Members, func(m *types.Model) bool { return m.ModelID == self.ModelID }) {
		f.Members = append(f.Members, self)
	}
	slices.SortFunc(f.Members, compareMembers)

	if root.IsConceptual() {
		f.Conceptual = root
	}
	for _, m := range f.Members {
		switch {
		case m.Layer == types.LayerLogical && f.Logical == nil:
			f.Logical = m
		case m.Layer == types.LayerPhysical && f.Physical == nil:
			f.Physical = m
		}
	}
	switch self.Layer {
	case types.LayerLogical:
		f.Logical = self
	case types.LayerPhysical:
		f.Physical = self
	}

	c.mu.Lock()
	c.families[modelID] = f
	c.mu.Unlock()
	return f, nil
}

// rootOf walks parent pointers from m. The walk stops at a conceptual model,
// a missing or absent parent, or a repeated id. On a cycle the member of the
// cycle with the smallest id is the root, so every model on the cycle
// agrees on it.
func rootOf(m *types.Model, byID map[string]*types.Model) *types.Model {
	visited := make(map[string]bool)
	var path []*types.Model
	cur := m
	for {
		if cur.IsConceptual() {
			return cur
		}
		if visited[cur.ModelID] {
			start := slices.IndexFunc(path, func(p *types.Model) bool { return p.ModelID == cur.ModelID })
			return slices.MinFunc(path[start:], func(a, b *types.Model) int { return cmp.Compare(a.ModelID, b.ModelID) })
		}
		visited[cur.ModelID] = true
		path = append(path, cur)

		parent, ok := byID[cur.ParentModelID]
		if cur.ParentModelID == "" || !ok {
			return cur
		}
		cur = parent
	}
}

func compareMembers(a, b *types.Model) int {
	return cmp.Or(
		cmp.Compare(a.Layer.Rank(), b.Layer.Rank()),
		a.CreatedAt.Compare(b.CreatedAt),
		cmp.Compare(a.ModelID, b.ModelID),
	)
}
