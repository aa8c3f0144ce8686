package types

import "time"

// Model is a named container at exactly one layer. Logical and physical
// models point at their conceptual parent through ParentModelID; a model
// family is derived from these pointers and never stored.
type Model struct {
	ModelID       string    `json:"model_id"`
	Name          string    `json:"name"`
	Layer         Layer     `json:"layer"`
	ParentModelID string    `json:"parent_model_id,omitempty"`
	Domain        string    `json:"domain,omitempty"`
	TargetSystem  string    `json:"target_system,omitempty"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsConceptual reports whether the model sits at the conceptual layer.
func (m *Model) IsConceptual() bool {
	return m.Layer == LayerConceptual
}

// Validate checks the fields required to persist a model.
func (m *Model) Validate() error {
	if m.Name == "" {
		return ErrInvalidName
	}
	if !m.Layer.Valid() {
		return ErrInvalidLayer
	}
	if m.ParentModelID != "" && m.ParentModelID == m.ModelID {
		return ErrInvalidParent
	}
	return nil
}
