package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/mesh-intelligence/strata/pkg/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

// gooseMu guards goose's package-level configuration.
var gooseMu sync.Mutex

// migrate runs all pending schema migrations against db.
func migrate(db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(log.New(io.Discard, "", 0))

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the current migration version of the attached
// database.
func (b *Backend) SchemaVersion() (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return 0, types.ErrStoreDetached
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite"); err != nil {
		return 0, fmt.Errorf("setting migration dialect: %w", err)
	}
	return goose.GetDBVersion(b.db)
}
