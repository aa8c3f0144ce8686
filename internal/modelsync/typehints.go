package modelsync

import "github.com/mesh-intelligence/strata/pkg/types"

// TypeHints are the per-layer type names carried by an attribute.
type TypeHints struct {
	Conceptual string
	Logical    string
	Physical   string
	DataType   string
}

// HintsOf extracts the type hints of a.
func HintsOf(a *types.Attribute) TypeHints {
	return TypeHints{
		Conceptual: a.ConceptualType,
		Logical:    a.LogicalType,
		Physical:   a.PhysicalType,
		DataType:   a.DataType,
	}
}

// ResolveTypeHint returns the type an attribute takes at layer: the layer's
// own hint, then conceptual, logical, physical, then the generic data type.
func ResolveTypeHint(layer types.Layer, h TypeHints) string {
	var own string
	switch layer {
	case types.LayerConceptual:
		own = h.Conceptual
	case types.LayerLogical:
		own = h.Logical
	case types.LayerPhysical:
		own = h.Physical
	}
	return FirstPresent(own, h.Conceptual, h.Logical, h.Physical, h.DataType)
}

// FirstPresent returns the first non-empty value.
func FirstPresent(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
