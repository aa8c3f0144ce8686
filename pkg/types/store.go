package types

import "errors"

// Store defines the interface for backend-agnostic entity storage.
// Callers attach to a backend, access tables by name, and detach when done.
type Store interface {
	// GetTable returns the Table for the given name.
	// Returns ErrTableNotFound if the name is not a standard table.
	GetTable(name string) (Table, error)

	// Attach connects the Store to the backend described by config.
	// Creates the DataDir if it does not exist and migrates the schema.
	// Returns ErrAlreadyAttached if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	// After Detach, GetTable returns ErrStoreDetached.
	Detach() error
}

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrTableNotFound   = errors.New("table not found")
)
