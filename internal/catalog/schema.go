// Package catalog reads table, column and key metadata from a connected
// database so it can be ingested into a model.
package catalog

import (
	"context"
	"errors"
	"strings"
)

// Errors returned by extractors.
var (
	ErrTableNotFound     = errors.New("table not found")
	ErrUnsupportedDriver = errors.New("unsupported driver")
)

// Schema is the extracted metadata of one database schema.
type Schema struct {
	System string
	Tables []Table
}

// Table describes one base table.
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

// Column describes one table column.
type Column struct {
	Name         string
	Type         string
	Nullable     bool
	DefaultValue *string
	IsUnique     bool
}

// ForeignKey is a single-column reference to another table. RefColumn is
// empty when the database does not name it and the referenced table's key
// cannot be determined.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Extractor reads the schema of the given tables, or of every base table
// when tables is empty.
type Extractor interface {
	ExtractSchema(ctx context.Context, tables []string) (*Schema, error)
}

// Table returns the table with the given name, compared case-insensitively.
func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return &s.Tables[i]
		}
	}
	return nil
}

// Column returns the column with the given name, compared
// case-insensitively.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i]
		}
	}
	return nil
}

// IsPrimaryKey reports whether column is part of the primary key.
func (t *Table) IsPrimaryKey(column string) bool {
	for _, pk := range t.PrimaryKey {
		if strings.EqualFold(pk, column) {
			return true
		}
	}
	return false
}

// ForeignKeyOn returns the foreign key declared on column, if any.
func (t *Table) ForeignKeyOn(column string) *ForeignKey {
	for i := range t.ForeignKeys {
		if strings.EqualFold(t.ForeignKeys[i].Column, column) {
			return &t.ForeignKeys[i]
		}
	}
	return nil
}

// resolveReferences fills foreign keys that omit the referenced column with
// the referenced table's single-column primary key.
func resolveReferences(s *Schema) {
	for i := range s.Tables {
		for j := range s.Tables[i].ForeignKeys {
			fk := &s.Tables[i].ForeignKeys[j]
			if fk.RefColumn != "" {
				continue
			}
			if ref := s.Table(fk.RefTable); ref != nil && len(ref.PrimaryKey) == 1 {
				fk.RefColumn = ref.PrimaryKey[0]
			}
		}
	}
}
