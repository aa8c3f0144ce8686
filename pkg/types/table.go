package types

import "errors"

// Filter selects entities in Table.Fetch. Keys are column names (model_id,
// object_id, ...); values must be strings unless documented otherwise. An
// empty or nil filter matches every entity in the table.
type Filter map[string]any

// Table provides uniform CRUD operations for a single entity type.
// Get and Fetch return any; callers type-assert to the concrete entity struct.
type Table interface {
	// Get retrieves the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Get(id string) (any, error)

	// Set creates or updates an entity. When id is empty a new UUID v7 is
	// generated. When id is given the entity is updated, or inserted under
	// that id if it does not exist yet. Returns the actual ID used.
	Set(id string, data any) (string, error)

	// Delete removes the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Delete(id string) error

	// Fetch returns all entities matching the filter.
	Fetch(filter Filter) ([]any, error)
}

// Table operation errors.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrInvalidID     = errors.New("invalid entity ID")
	ErrInvalidData   = errors.New("invalid entity data")
	ErrInvalidFilter = errors.New("invalid filter value type")
	ErrDuplicate     = errors.New("entity already exists")
)

// Entity validation errors.
var (
	ErrInvalidName             = errors.New("invalid name")
	ErrInvalidLayer            = errors.New("invalid layer")
	ErrInvalidParent           = errors.New("invalid parent model")
	ErrInvalidRelationshipType = errors.New("invalid relationship type")
	ErrInvalidLevel            = errors.New("invalid relationship level")
	ErrInvalidDirection        = errors.New("invalid sync direction")
)
