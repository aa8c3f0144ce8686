package catalog

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteExtractor reads a SQLite database through its table-valued PRAGMA
// functions.
type SQLiteExtractor struct {
	db *sql.DB
}

// NewSQLiteExtractor returns an extractor over db. Close closes db.
func NewSQLiteExtractor(db *sql.DB) *SQLiteExtractor {
	return &SQLiteExtractor{db: db}
}

// Close closes the database.
func (e *SQLiteExtractor) Close() error {
	return e.db.Close()
}

// ExtractSchema reads the requested tables, or every table when tables is
// empty.
func (e *SQLiteExtractor) ExtractSchema(ctx context.Context, tables []string) (*Schema, error) {
	names, err := e.tableNames(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	s := &Schema{System: "sqlite"}
	for _, name := range names {
		t, err := e.extractTable(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("extracting table %s: %w", name, err)
		}
		s.Tables = append(s.Tables, *t)
	}
	resolveReferences(s)
	return s, nil
}

func (e *SQLiteExtractor) tableNames(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) > 0 {
		return requested, nil
	}
	rows, err := e.db.QueryContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (e *SQLiteExtractor) extractTable(ctx context.Context, name string) (*Table, error) {
	t := &Table{Name: name}
	if err := e.extractColumns(ctx, t); err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	if len(t.Columns) == 0 {
		return nil, ErrTableNotFound
	}
	unique, err := e.uniqueColumns(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("indexes: %w", err)
	}
	for i := range t.Columns {
		t.Columns[i].IsUnique = unique[t.Columns[i].Name]
	}
	if t.ForeignKeys, err = e.extractForeignKeys(ctx, name); err != nil {
		return nil, fmt.Errorf("foreign keys: %w", err)
	}
	return t, nil
}

// extractColumns fills columns and the primary key, ordered by key
// position.
func (e *SQLiteExtractor) extractColumns(ctx context.Context, t *Table) error {
	rows, err := e.db.QueryContext(ctx,
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	pk := map[int]string{}
	for rows.Next() {
		var (
			col     Column
			notNull int
			dflt    sql.NullString
			pkPos   int
		)
		if err := rows.Scan(&col.Name, &col.Type, &notNull, &dflt, &pkPos); err != nil {
			return err
		}
		col.Nullable = notNull == 0 && pkPos == 0
		if dflt.Valid {
			col.DefaultValue = &dflt.String
		}
		if pkPos > 0 {
			pk[pkPos] = col.Name
		}
		t.Columns = append(t.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := 1; i <= len(pk); i++ {
		t.PrimaryKey = append(t.PrimaryKey, pk[i])
	}
	return nil
}

// uniqueColumns returns the columns covered alone by a unique index other
// than the primary key.
func (e *SQLiteExtractor) uniqueColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT min(ii.name)
		FROM pragma_index_list(?) AS il, pragma_index_info(il.name) AS ii
		WHERE il."unique" = 1 AND il.origin != 'pk'
		GROUP BY il.name
		HAVING count(*) = 1`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var col sql.NullString
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		if col.Valid {
			out[col.String] = true
		}
	}
	return out, rows.Err()
}

// extractForeignKeys returns single-column foreign keys. Columns of
// composite keys are reported individually.
func (e *SQLiteExtractor) extractForeignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT "from", "table", "to" FROM pragma_foreign_key_list(?) ORDER BY id, seq`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		var to sql.NullString
		if err := rows.Scan(&fk.Column, &fk.RefTable, &to); err != nil {
			return nil, err
		}
		fk.RefColumn = to.String
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}
