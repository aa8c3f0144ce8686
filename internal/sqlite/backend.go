// Package sqlite implements the SQLite storage backend for strata.
// The database file lives in Config.DataDir and is the source of truth;
// JSONL snapshots are written and restored on demand.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// DatabaseFile is the name of the SQLite file created inside DataDir.
const DatabaseFile = "strata.db"

// Backend implements the Store interface using SQLite.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	tables   map[string]types.Table
}

var _ types.Store = (*Backend)(nil)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{
		tables: make(map[string]types.Table),
	}
}

// GetTable returns a Table interface for the specified table name.
// Returns ErrTableNotFound if the table name is not recognized.
// Returns ErrStoreDetached if the backend is not attached.
func (b *Backend) GetTable(name string) (types.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	table, ok := b.tables[name]
	if !ok {
		return nil, types.ErrTableNotFound
	}
	return table, nil
}

// Attach initializes the backend with the given configuration.
// Creates DataDir if it does not exist, opens the database, runs pending
// migrations, and creates table accessors.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dsn := "file:" + filepath.Join(dataDir, DatabaseFile) +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("pinging database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return err
	}

	b.db = db
	b.config = config
	b.attached = true

	b.tables[types.ModelsTable] = &modelsTable{backend: b}
	b.tables[types.ObjectsTable] = &objectsTable{backend: b}
	b.tables[types.AttributesTable] = &attributesTable{backend: b}
	b.tables[types.ModelObjectsTable] = &modelObjectsTable{backend: b}
	b.tables[types.ModelAttributesTable] = &modelAttributesTable{backend: b}
	b.tables[types.RelationshipsTable] = &relationshipsTable{backend: b}
	b.tables[types.ModelRelationshipsTable] = &modelRelationshipsTable{backend: b}

	return nil
}

// Detach releases all resources held by the backend.
// Closes the SQLite connection. After Detach, all operations return
// ErrStoreDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}

	b.attached = false
	b.tables = make(map[string]types.Table)

	return nil
}

// DataDir returns the directory the backend was attached with.
func (b *Backend) DataDir() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config.DataDir
}

// newUUID generates a new UUID v7 for entity IDs.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}
