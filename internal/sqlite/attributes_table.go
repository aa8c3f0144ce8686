package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/strata/pkg/types"
)

var _ types.Table = (*attributesTable)(nil)

// attributesTable implements the Table interface for canonical attributes.
type attributesTable struct {
	backend *Backend
}

const attributeColumns = "attribute_id, object_id, name, data_type, conceptual_type, logical_type, physical_type, " +
	"is_primary_key, is_foreign_key, is_nullable, ordinal, origin_attribute_id, created_at, updated_at"

var attributeFilterColumns = map[string]bool{
	"attribute_id":        true,
	"object_id":           true,
	"name":                true,
	"origin_attribute_id": true,
}

// Get retrieves an attribute by ID.
func (at *attributesTable) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	db, release, err := at.backend.readLocked()
	if err != nil {
		return nil, err
	}
	defer release()

	a, err := hydrateAttribute(db.QueryRow("SELECT "+attributeColumns+" FROM attributes WHERE attribute_id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting attribute %s: %w", id, err)
	}
	return a, nil
}

// Set persists a canonical attribute. The owning object must exist.
func (at *attributesTable) Set(id string, data any) (string, error) {
	a, ok := data.(*types.Attribute)
	if !ok {
		return "", types.ErrInvalidData
	}
	if a.Name == "" {
		return "", types.ErrInvalidName
	}
	if a.ObjectID == "" {
		return "", types.ErrInvalidData
	}
	if id == "" {
		id = newUUID()
	}
	a.AttributeID = id

	db, release, err := at.backend.writeLocked()
	if err != nil {
		return "", err
	}
	defer release()

	created, found, err := existingCreatedAt(db, "attributes", "attribute_id", id)
	if err != nil {
		return "", err
	}
	if found {
		a.CreatedAt = created
	}
	stamp(&a.CreatedAt, &a.UpdatedAt)

	if found {
		_, err = db.Exec(
			`UPDATE attributes SET object_id = ?, name = ?, data_type = ?, conceptual_type = ?, logical_type = ?,
			physical_type = ?, is_primary_key = ?, is_foreign_key = ?, is_nullable = ?, ordinal = ?,
			origin_attribute_id = ?, updated_at = ? WHERE attribute_id = ?`,
			a.ObjectID, a.Name, nullable(a.DataType), nullable(a.ConceptualType), nullable(a.LogicalType),
			nullable(a.PhysicalType), boolInt(a.IsPrimaryKey), boolInt(a.IsForeignKey), boolInt(a.IsNullable), a.Ordinal,
			nullable(a.OriginAttributeID), formatTime(a.UpdatedAt), id,
		)
	} else {
		_, err = db.Exec(
			"INSERT INTO attributes ("+attributeColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			id, a.ObjectID, a.Name, nullable(a.DataType), nullable(a.ConceptualType), nullable(a.LogicalType),
			nullable(a.PhysicalType), boolInt(a.IsPrimaryKey), boolInt(a.IsForeignKey), boolInt(a.IsNullable), a.Ordinal,
			nullable(a.OriginAttributeID), formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
		)
	}
	if err != nil {
		return "", translateError("persisting attribute", err)
	}
	return id, nil
}

// Delete removes an attribute and, by cascade, its projections and the
// attribute-level relationships pinned to it.
func (at *attributesTable) Delete(id string) error {
	db, release, err := at.backend.writeLocked()
	if err != nil {
		return err
	}
	defer release()
	return deleteByID(db, "attributes", "attribute_id", id)
}

// Fetch queries attributes matching the filter, ordered by ordinal.
func (at *attributesTable) Fetch(filter types.Filter) ([]any, error) {
	query, args, err := buildSelect("SELECT "+attributeColumns+" FROM attributes", filter, attributeFilterColumns,
		"object_id, ordinal, created_at, attribute_id")
	if err != nil {
		return nil, err
	}

	db, release, err := at.backend.readLocked()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching attributes: %w", err)
	}
	defer rows.Close()

	results := []any{}
	for rows.Next() {
		a, err := hydrateAttribute(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating attribute: %w", err)
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attributes: %w", err)
	}
	return results, nil
}

// hydrateAttribute converts a row into a *types.Attribute.
func hydrateAttribute(row rowScanner) (*types.Attribute, error) {
	var a types.Attribute
	var createdAt, updatedAt string
	var dataType, conceptual, logical, physical, origin sql.NullString
	var pk, fk, null int
	if err := row.Scan(&a.AttributeID, &a.ObjectID, &a.Name, &dataType, &conceptual, &logical, &physical,
		&pk, &fk, &null, &a.Ordinal, &origin, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.DataType = dataType.String
	a.ConceptualType = conceptual.String
	a.LogicalType = logical.String
	a.PhysicalType = physical.String
	a.OriginAttributeID = origin.String
	a.IsPrimaryKey = pk != 0
	a.IsForeignKey = fk != 0
	a.IsNullable = null != 0

	var err error
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &a, nil
}
