package modelsync

import (
	"fmt"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// LevelFor returns attribute level when both attribute ids are present and
// object level otherwise. A one-sided attribute id never forces attribute
// level.
func LevelFor(sourceAttrID, targetAttrID string) types.Level {
	if sourceAttrID != "" && targetAttrID != "" {
		return types.LevelAttribute
	}
	return types.LevelObject
}

// Key is the positional identity of a relationship. Swapping source and
// target yields a different key; matching handles direction.
type Key struct {
	Source          string
	Target          string
	Level           types.Level
	SourceAttribute string
	TargetAttribute string
}

// BuildKey builds the key for a relationship. Attribute ids take part only
// at attribute level.
func BuildKey(sourceObjectID, targetObjectID string, level types.Level, sourceAttrID, targetAttrID string) Key {
	k := Key{Source: sourceObjectID, Target: targetObjectID, Level: level}
	if level == types.LevelAttribute {
		k.SourceAttribute = sourceAttrID
		k.TargetAttribute = targetAttrID
	}
	return k
}

// KeyOf builds the key of an existing relationship or projection.
func KeyOf(ep types.Endpoints) Key {
	return BuildKey(ep.Source, ep.Target, ep.Level, ep.SourceAttribute, ep.TargetAttribute)
}

// Reversed swaps the ends, moving each attribute id with its object.
func (k Key) Reversed() Key {
	return Key{
		Source:          k.Target,
		Target:          k.Source,
		Level:           k.Level,
		SourceAttribute: k.TargetAttribute,
		TargetAttribute: k.SourceAttribute,
	}
}

func (k Key) String() string {
	if k.Level == types.LevelAttribute {
		return fmt.Sprintf("%s.%s->%s.%s", k.Source, k.SourceAttribute, k.Target, k.TargetAttribute)
	}
	return k.Source + "->" + k.Target
}

// Endpointer is implemented by canonical relationships and their layer
// projections.
type Endpointer interface {
	Endpoints() types.Endpoints
}

// FindMatching returns the first relationship in existing matching the
// given ends in either orientation. The direct orientation is checked over
// the whole list before the reversed one.
func FindMatching[T Endpointer](existing []T, sourceID, targetID string, level types.Level, sourceAttrID, targetAttrID string) (T, bool) {
	want := BuildKey(sourceID, targetID, level, sourceAttrID, targetAttrID)
	for _, cand := range []Key{want, want.Reversed()} {
		for _, r := range existing {
			if KeyOf(r.Endpoints()) == cand {
				return r, true
			}
		}
	}
	var zero T
	return zero, false
}

// FindAllMatching returns every relationship in existing matching the given
// ends in either orientation.
func FindAllMatching[T Endpointer](existing []T, sourceID, targetID string, level types.Level, sourceAttrID, targetAttrID string) []T {
	want := BuildKey(sourceID, targetID, level, sourceAttrID, targetAttrID)
	rev := want.Reversed()
	var out []T
	for _, r := range existing {
		if k := KeyOf(r.Endpoints()); k == want || k == rev {
			out = append(out, r)
		}
	}
	return out
}

// KeyRegistry is a direction-insensitive set of relationship keys.
type KeyRegistry struct {
	keys map[Key]struct{}
}

// NewKeyRegistry returns an empty registry.
func NewKeyRegistry() *KeyRegistry {
	return &KeyRegistry{keys: make(map[Key]struct{})}
}

// Add records k. It reports false when k or its reverse was already present.
func (r *KeyRegistry) Add(k Key) bool {
	if r.Contains(k) {
		return false
	}
	r.keys[k] = struct{}{}
	return true
}

// Contains reports whether k or its reverse is registered.
func (r *KeyRegistry) Contains(k Key) bool {
	if _, ok := r.keys[k]; ok {
		return true
	}
	_, ok := r.keys[k.Reversed()]
	return ok
}

// Len returns the number of registered keys.
func (r *KeyRegistry) Len() int {
	return len(r.keys)
}
