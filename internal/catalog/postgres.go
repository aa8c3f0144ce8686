package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PostgresExtractor reads a PostgreSQL schema from information_schema.
type PostgresExtractor struct {
	conn   *pgx.Conn
	schema string
}

// NewPostgresExtractor returns an extractor for schema over conn. Close
// closes conn.
func NewPostgresExtractor(conn *pgx.Conn, schema string) *PostgresExtractor {
	return &PostgresExtractor{conn: conn, schema: schema}
}

// Close closes the connection.
func (e *PostgresExtractor) Close() error {
	return e.conn.Close(context.Background())
}

// ExtractSchema reads the requested tables, or every base table of the
// schema when tables is empty.
func (e *PostgresExtractor) ExtractSchema(ctx context.Context, tables []string) (*Schema, error) {
	names := tables
	if len(names) == 0 {
		var err error
		names, err = e.strings(ctx, `
			SELECT table_name
			FROM information_schema.tables
			WHERE table_schema = $1 AND table_type = 'BASE TABLE'
			ORDER BY table_name`, e.schema)
		if err != nil {
			return nil, fmt.Errorf("listing tables: %w", err)
		}
	}

	s := &Schema{System: "postgres"}
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

func (e *PostgresExtractor) extractTable(ctx context.Context, name string) (*Table, error) {
	t := &Table{Name: name}
	cols, err := e.extractColumns(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	if len(cols) == 0 {
		return nil, ErrTableNotFound
	}
	t.Columns = cols

	t.PrimaryKey, err = e.strings(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position`, e.schema, name)
	if err != nil {
		return nil, fmt.Errorf("primary key: %w", err)
	}

	if t.ForeignKeys, err = e.extractForeignKeys(ctx, name); err != nil {
		return nil, fmt.Errorf("foreign keys: %w", err)
	}
	return t, nil
}

func (e *PostgresExtractor) extractColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := e.conn.Query(ctx, `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.constraint_column_usage ccu
					ON tc.constraint_name = ccu.constraint_name
					AND tc.table_schema = ccu.table_schema
				WHERE tc.table_schema = $1
					AND tc.table_name = $2
					AND tc.constraint_type = 'UNIQUE'
					AND ccu.column_name = c.column_name
			) AS is_unique
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`, e.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.DefaultValue, &col.IsUnique); err != nil {
			return nil, err
		}
		col.Nullable = nullable == "YES"
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (e *PostgresExtractor) extractForeignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	rows, err := e.conn.Query(ctx, `
		SELECT kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1
			AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`, e.schema, table)
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

// strings runs a query returning one text column.
func (e *PostgresExtractor) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := e.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
