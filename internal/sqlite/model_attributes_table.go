package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/strata/pkg/types"
)

var _ types.Table = (*modelAttributesTable)(nil)

// modelAttributesTable implements the Table interface for attribute projections.
type modelAttributesTable struct {
	backend *Backend
}

const modelAttributeColumns = "model_attribute_id, model_id, model_object_id, attribute_id, layer, data_type, " +
	"is_primary_key, is_foreign_key, is_nullable, ordinal, created_at, updated_at"

var modelAttributeFilterColumns = map[string]bool{
	"model_attribute_id": true,
	"model_id":           true,
	"model_object_id":    true,
	"attribute_id":       true,
	"layer":              true,
}

// Get retrieves a model attribute by ID.
func (mt *modelAttributesTable) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	db, release, err := mt.backend.readLocked()
	if err != nil {
		return nil, err
	}
	defer release()

	ma, err := hydrateModelAttribute(db.QueryRow("SELECT "+modelAttributeColumns+" FROM model_attributes WHERE model_attribute_id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting model attribute %s: %w", id, err)
	}
	return ma, nil
}

// Set persists an attribute projection.
func (mt *modelAttributesTable) Set(id string, data any) (string, error) {
	ma, ok := data.(*types.ModelAttribute)
	if !ok {
		return "", types.ErrInvalidData
	}
	if ma.ModelID == "" || ma.ModelObjectID == "" || ma.AttributeID == "" {
		return "", types.ErrInvalidData
	}
	if !ma.Layer.Valid() {
		return "", types.ErrInvalidLayer
	}
	if id == "" {
		id = newUUID()
	}
	ma.ModelAttributeID = id

	db, release, err := mt.backend.writeLocked()
	if err != nil {
		return "", err
	}
	defer release()

	created, found, err := existingCreatedAt(db, "model_attributes", "model_attribute_id", id)
	if err != nil {
		return "", err
	}
	if found {
		ma.CreatedAt = created
	}
	stamp(&ma.CreatedAt, &ma.UpdatedAt)

	if found {
		_, err = db.Exec(
			`UPDATE model_attributes SET model_id = ?, model_object_id = ?, attribute_id = ?, layer = ?, data_type = ?,
			is_primary_key = ?, is_foreign_key = ?, is_nullable = ?, ordinal = ?, updated_at = ?
			WHERE model_attribute_id = ?`,
			ma.ModelID, ma.ModelObjectID, ma.AttributeID, string(ma.Layer), nullable(ma.DataType),
			boolInt(ma.IsPrimaryKey), boolInt(ma.IsForeignKey), boolInt(ma.IsNullable), ma.Ordinal,
			formatTime(ma.UpdatedAt), id,
		)
	} else {
		_, err = db.Exec(
			"INSERT INTO model_attributes ("+modelAttributeColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			id, ma.ModelID, ma.ModelObjectID, ma.AttributeID, string(ma.Layer), nullable(ma.DataType),
			boolInt(ma.IsPrimaryKey), boolInt(ma.IsForeignKey), boolInt(ma.IsNullable), ma.Ordinal,
			formatTime(ma.CreatedAt), formatTime(ma.UpdatedAt),
		)
	}
	if err != nil {
		return "", translateError("persisting model attribute", err)
	}
	return id, nil
}

// Delete removes an attribute projection.
func (mt *modelAttributesTable) Delete(id string) error {
	db, release, err := mt.backend.writeLocked()
	if err != nil {
		return err
	}
	defer release()
	return deleteByID(db, "model_attributes", "model_attribute_id", id)
}

// Fetch queries model attributes matching the filter, ordered by ordinal.
func (mt *modelAttributesTable) Fetch(filter types.Filter) ([]any, error) {
	query, args, err := buildSelect("SELECT "+modelAttributeColumns+" FROM model_attributes", filter,
		modelAttributeFilterColumns, "model_object_id, ordinal, created_at, model_attribute_id")
	if err != nil {
		return nil, err
	}

	db, release, err := mt.backend.readLocked()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching model attributes: %w", err)
	}
	defer rows.Close()

	results := []any{}
	for rows.Next() {
		ma, err := hydrateModelAttribute(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating model attribute: %w", err)
		}
		results = append(results, ma)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating model attributes: %w", err)
	}
	return results, nil
}

// hydrateModelAttribute converts a row into a *types.ModelAttribute.
func hydrateModelAttribute(row rowScanner) (*types.ModelAttribute, error) {
	var ma types.ModelAttribute
	var layer, createdAt, updatedAt string
	var dataType sql.NullString
	var pk, fk, null int
	if err := row.Scan(&ma.ModelAttributeID, &ma.ModelID, &ma.ModelObjectID, &ma.AttributeID, &layer, &dataType,
		&pk, &fk, &null, &ma.Ordinal, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	ma.Layer = types.Layer(layer)
	ma.DataType = dataType.String
	ma.IsPrimaryKey = pk != 0
	ma.IsForeignKey = fk != 0
	ma.IsNullable = null != 0

	var err error
	if ma.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if ma.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &ma, nil
}
