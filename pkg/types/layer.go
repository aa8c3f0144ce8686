package types

// Layer is the abstraction level a model lives at.
type Layer string

// Modeling layers, from most abstract to most concrete.
const (
	LayerConceptual Layer = "conceptual"
	LayerLogical    Layer = "logical"
	LayerPhysical   Layer = "physical"
)

// Layers lists every layer in abstraction order.
var Layers = []Layer{LayerConceptual, LayerLogical, LayerPhysical}

// Valid reports whether l is one of the known layers.
func (l Layer) Valid() bool {
	switch l {
	case LayerConceptual, LayerLogical, LayerPhysical:
		return true
	}
	return false
}

// Rank orders layers for sorting: conceptual first, unknown layers last.
func (l Layer) Rank() int {
	switch l {
	case LayerConceptual:
		return 0
	case LayerLogical:
		return 1
	case LayerPhysical:
		return 2
	}
	return 3
}

// ParseLayer converts s into a Layer. Returns ErrInvalidLayer for unknown
// values.
func ParseLayer(s string) (Layer, error) {
	l := Layer(s)
	if !l.Valid() {
		return "", ErrInvalidLayer
	}
	return l, nil
}
