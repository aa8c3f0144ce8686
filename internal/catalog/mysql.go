package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// MySQLExtractor reads a MySQL schema from information_schema.
type MySQLExtractor struct {
	db     *sql.DB
	schema string
}

// NewMySQLExtractor returns an extractor for schema over db. Close closes
// db.
func NewMySQLExtractor(db *sql.DB, schema string) *MySQLExtractor {
	return &MySQLExtractor{db: db, schema: schema}
}

// Close closes the database.
func (e *MySQLExtractor) Close() error {
	return e.db.Close()
}

// ExtractSchema reads the requested tables, or every base table of the
// schema when tables is empty.
func (e *MySQLExtractor) ExtractSchema(ctx context.Context, tables []string) (*Schema, error) {
	names, err := e.tableNames(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	s := &Schema{System: "mysql"}
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

func (e *MySQLExtractor) tableNames(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) > 0 {
		return requested, nil
	}
	rows, err := e.db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`, e.schema)
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

func (e *MySQLExtractor) extractTable(ctx context.Context, name string) (*Table, error) {
	t := &Table{Name: name}
	if err := e.extractColumns(ctx, t); err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	if len(t.Columns) == 0 {
		return nil, ErrTableNotFound
	}
	fks, err := e.extractForeignKeys(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("foreign keys: %w", err)
	}
	t.ForeignKeys = fks
	return t, nil
}

// extractColumns fills columns and the primary key from column_key.
func (e *MySQLExtractor) extractColumns(ctx context.Context, t *Table) error {
	rows, err := e.db.QueryContext(ctx, `
		SELECT column_name, column_type, is_nullable, column_default, column_key
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, e.schema, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			col      Column
			nullable string
			dflt     sql.NullString
			key      string
		)
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &dflt, &key); err != nil {
			return err
		}
		col.Nullable = nullable == "YES"
		col.IsUnique = key == "UNI"
		if dflt.Valid {
			col.DefaultValue = &dflt.String
		}
		if key == "PRI" {
			t.PrimaryKey = append(t.PrimaryKey, col.Name)
		}
		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

func (e *MySQLExtractor) extractForeignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ? AND referenced_table_name IS NOT NULL
		ORDER BY constraint_name, ordinal_position`, e.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}
