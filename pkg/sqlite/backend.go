// Package sqlite provides the public API for the SQLite store backend.
// This package exposes the factory function for creating SQLite backends
// while keeping implementation details internal.
package sqlite

import (
	"github.com/mesh-intelligence/strata/internal/sqlite"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// Backend is the SQLite store. Besides types.Store it offers Export and
// Restore of JSONL snapshots.
type Backend = sqlite.Backend

// SnapshotStats counts records per table written by Export or loaded by
// Restore.
type SnapshotStats = sqlite.SnapshotStats

var _ types.Store = (*Backend)(nil)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".strata-db",
//	})
//	defer backend.Detach()
func NewBackend() *Backend {
	return sqlite.NewBackend()
}
