package types

import "time"

// Object is a canonical business entity. It is created in a home model and
// appears in every layer of the family through ModelObject projections.
// Copies made for sibling layers carry an origin link back to the
// conceptual object they were replicated from.
type Object struct {
	ObjectID       string    `json:"object_id"`
	ModelID        string    `json:"model_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	OriginObjectID string    `json:"origin_object_id,omitempty"`
	OriginModelID  string    `json:"origin_model_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LineageID returns the id that correlates this object across layers: the
// origin object when set, otherwise the object itself.
func (o *Object) LineageID() string {
	if o.OriginObjectID != "" {
		return o.OriginObjectID
	}
	return o.ObjectID
}

// ModelObject is the projection of a canonical object inside one model.
// Config is a free-form JSON object (position, visibility, metadata) that
// other components extend with their own keys; writers must read, merge and
// write it back so unknown keys survive.
type ModelObject struct {
	ModelObjectID  string      `json:"model_object_id"`
	ModelID        string      `json:"model_id"`
	ObjectID       string      `json:"object_id"`
	Layer          Layer       `json:"layer"`
	Config         LayerConfig `json:"config,omitempty"`
	OriginObjectID string      `json:"origin_object_id,omitempty"`
	OriginModelID  string      `json:"origin_model_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Well-known LayerConfig keys.
const (
	ConfigKeyPosition = "position"
	ConfigKeyVisible  = "visible"
	ConfigKeyMetadata = "metadata"
)

// LayerConfig is the free-form configuration blob of a layer projection.
type LayerConfig map[string]any

// Clone returns a deep copy of c. Nested maps and slices are copied so the
// clone can be merged into without aliasing the original.
func (c LayerConfig) Clone() LayerConfig {
	if c == nil {
		return nil
	}
	out := make(LayerConfig, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case LayerConfig:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}
