package types

import "time"

// Relationship type constants.
const (
	RelOneToOne   = "1:1"
	RelOneToMany  = "1:N"
	RelManyToOne  = "N:1"
	RelManyToMany = "N:M"
	RelMToN       = "M:N"
)

// validRelationshipTypes is the set of recognized relationship types.
var validRelationshipTypes = map[string]bool{
	RelOneToOne:   true,
	RelOneToMany:  true,
	RelManyToOne:  true,
	RelManyToMany: true,
	RelMToN:       true,
}

// ValidRelationshipType reports whether t is a recognized relationship type.
func ValidRelationshipType(t string) bool {
	return validRelationshipTypes[t]
}

// Level is the granularity a relationship is expressed at.
type Level string

// Relationship levels.
const (
	LevelObject    Level = "object"
	LevelAttribute Level = "attribute"
)

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	return l == LevelObject || l == LevelAttribute
}

// Endpoints is the positional identity of a relationship: the two ends, the
// level, and the attribute pair (meaningful only at attribute level).
type Endpoints struct {
	Source          string
	Target          string
	Level           Level
	SourceAttribute string
	TargetAttribute string
}

// Reversed returns the endpoints with source and target swapped, attribute
// ids swapped together with their objects.
func (e Endpoints) Reversed() Endpoints {
	return Endpoints{
		Source:          e.Target,
		Target:          e.Source,
		Level:           e.Level,
		SourceAttribute: e.TargetAttribute,
		TargetAttribute: e.SourceAttribute,
	}
}

// Relationship is the canonical, layer-independent link between two
// objects, optionally narrowed to one attribute on each side. Source and
// target are stored positionally but matching ignores direction.
type Relationship struct {
	RelationshipID    string    `json:"relationship_id"`
	SourceObjectID    string    `json:"source_object_id"`
	TargetObjectID    string    `json:"target_object_id"`
	SourceAttributeID string    `json:"source_attribute_id,omitempty"`
	TargetAttributeID string    `json:"target_attribute_id,omitempty"`
	Type              string    `json:"type"`
	Level             Level     `json:"level"`
	Name              string    `json:"name,omitempty"`
	Description       string    `json:"description,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Endpoints returns the canonical object and attribute ids of r.
func (r *Relationship) Endpoints() Endpoints {
	return Endpoints{
		Source:          r.SourceObjectID,
		Target:          r.TargetObjectID,
		Level:           r.Level,
		SourceAttribute: r.SourceAttributeID,
		TargetAttribute: r.TargetAttributeID,
	}
}

// ModelRelationship is the projection of a relationship between two
// ModelObjects inside one model. Its level is decided per layer and may be
// lower than the canonical relationship's when the layer lacks attributes.
type ModelRelationship struct {
	ModelRelationshipID    string    `json:"model_relationship_id"`
	ModelID                string    `json:"model_id"`
	RelationshipID         string    `json:"relationship_id,omitempty"`
	SourceModelObjectID    string    `json:"source_model_object_id"`
	TargetModelObjectID    string    `json:"target_model_object_id"`
	SourceModelAttributeID string    `json:"source_model_attribute_id,omitempty"`
	TargetModelAttributeID string    `json:"target_model_attribute_id,omitempty"`
	Layer                  Layer     `json:"layer"`
	Level                  Level     `json:"level"`
	Type                   string    `json:"type"`
	Name                   string    `json:"name,omitempty"`
	Description            string    `json:"description,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Endpoints returns the projection ids of mr.
func (mr *ModelRelationship) Endpoints() Endpoints {
	return Endpoints{
		Source:          mr.SourceModelObjectID,
		Target:          mr.TargetModelObjectID,
		Level:           mr.Level,
		SourceAttribute: mr.SourceModelAttributeID,
		TargetAttribute: mr.TargetModelAttributeID,
	}
}
