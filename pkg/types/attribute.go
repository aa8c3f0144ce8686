package types

import "time"

// Attribute is a canonical field on an Object. Type hints are kept per
// layer; DataType is the generic fallback used when a layer has no hint.
type Attribute struct {
	AttributeID       string    `json:"attribute_id"`
	ObjectID          string    `json:"object_id"`
	Name              string    `json:"name"`
	DataType          string    `json:"data_type,omitempty"`
	ConceptualType    string    `json:"conceptual_type,omitempty"`
	LogicalType       string    `json:"logical_type,omitempty"`
	PhysicalType      string    `json:"physical_type,omitempty"`
	IsPrimaryKey      bool      `json:"is_primary_key"`
	IsForeignKey      bool      `json:"is_foreign_key"`
	IsNullable        bool      `json:"is_nullable"`
	Ordinal           int       `json:"ordinal"`
	OriginAttributeID string    `json:"origin_attribute_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// LineageID returns the id that correlates this attribute across layers.
func (a *Attribute) LineageID() string {
	if a.OriginAttributeID != "" {
		return a.OriginAttributeID
	}
	return a.AttributeID
}

// ModelAttribute is the projection of a canonical attribute inside one
// ModelObject. Projections are created lazily, only when a layer needs one.
type ModelAttribute struct {
	ModelAttributeID string    `json:"model_attribute_id"`
	ModelID          string    `json:"model_id"`
	ModelObjectID    string    `json:"model_object_id"`
	AttributeID      string    `json:"attribute_id"`
	Layer            Layer     `json:"layer"`
	DataType         string    `json:"data_type,omitempty"`
	IsPrimaryKey     bool      `json:"is_primary_key"`
	IsForeignKey     bool      `json:"is_foreign_key"`
	IsNullable       bool      `json:"is_nullable"`
	Ordinal          int       `json:"ordinal"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
