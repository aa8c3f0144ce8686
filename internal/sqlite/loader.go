package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// SnapshotStats counts the records written or loaded per table.
type SnapshotStats map[string]int

// Export writes every table to <dir>/<table>.jsonl. Each file is replaced
// atomically; rows appear in primary key order.
func (b *Backend) Export(dir string) (SnapshotStats, error) {
	db, release, err := b.readLocked()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot dir: %w", err)
	}

	stats := SnapshotStats{}
	for _, st := range snapshotTables {
		records, err := dumpTable(db, st)
		if err != nil {
			return nil, err
		}
		if err := writeJSONL(filepath.Join(dir, st.file), records); err != nil {
			return nil, fmt.Errorf("writing %s: %w", st.file, err)
		}
		stats[st.table] = len(records)
	}
	return stats, nil
}

func dumpTable(db *sql.DB, st snapshotTable) ([]json.RawMessage, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(st.columns, ", "), st.table, st.key))
	if err != nil {
		return nil, fmt.Errorf("dumping %s: %w", st.table, err)
	}
	defer rows.Close()

	records := []json.RawMessage{}
	for rows.Next() {
		values := make([]any, len(st.columns))
		ptrs := make([]any, len(st.columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", st.table, err)
		}
		rec, err := encodeRow(st.columns, values)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", st.table, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", st.table, err)
	}
	return records, nil
}

// Restore replaces the contents of every table with the records found in
// dir. Loading is transactional: either every file loads or the database is
// left as it was. Malformed lines, unknown fields and rows violating a
// unique or check constraint are skipped; a dangling reference fails the
// commit. Missing files load as empty tables.
func (b *Backend) Restore(dir string) (SnapshotStats, error) {
	db, release, err := b.writeLocked()
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning restore transaction: %w", err)
	}
	defer tx.Rollback()

	// foreign_keys cannot change inside a transaction; deferring the checks
	// to commit lets rows reference each other in any order.
	if _, err := tx.Exec("PRAGMA defer_foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("deferring foreign keys: %w", err)
	}

	for i := len(snapshotTables) - 1; i >= 0; i-- {
		if _, err := tx.Exec("DELETE FROM " + snapshotTables[i].table); err != nil {
			return nil, fmt.Errorf("clearing %s: %w", snapshotTables[i].table, err)
		}
	}

	stats := SnapshotStats{}
	for _, st := range snapshotTables {
		records, err := readJSONL(filepath.Join(dir, st.file))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", st.file, err)
		}
		n, err := insertRecords(tx, st.table, st.columns, records)
		if err != nil {
			return nil, fmt.Errorf("loading %s into %s: %w", st.file, st.table, err)
		}
		stats[st.table] = n
	}

	if err := checkForeignKeys(tx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, translateError("committing restore", err)
	}
	return stats, nil
}

// checkForeignKeys fails with ErrNotFound when a loaded row references a
// missing parent. Checking before commit keeps the rollback in our hands.
func checkForeignKeys(tx *sql.Tx) error {
	rows, err := tx.Query("PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("checking foreign keys: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		var table, parent string
		var rowid sql.NullInt64
		var fkid int
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("checking foreign keys: %w", err)
		}
		return fmt.Errorf("restoring %s: row references missing %s: %w", table, parent, types.ErrNotFound)
	}
	return rows.Err()
}

// insertRecords inserts parsed JSONL records into a table and returns the
// number inserted. Only listed columns are read; nested JSON values are
// re-serialized to text.
func insertRecords(tx *sql.Tx, table string, columns []string, records []json.RawMessage) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders))
	if err != nil {
		return 0, fmt.Errorf("preparing insert for %s: %w", table, err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		var obj map[string]any
		if err := json.Unmarshal(rec, &obj); err != nil {
			continue
		}

		args := make([]any, len(columns))
		for i, col := range columns {
			switch v := obj[col].(type) {
			case map[string]any, []any:
				b, err := json.Marshal(v)
				if err != nil {
					continue
				}
				args[i] = string(b)
			case bool:
				args[i] = boolInt(v)
			case float64:
				args[i] = int64(v)
			case nil:
				args[i] = columnDefaults[col]
			default:
				args[i] = v
			}
		}

		if _, err := stmt.Exec(args...); err != nil {
			continue
		}
		inserted++
	}
	return inserted, nil
}
