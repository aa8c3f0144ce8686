package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/strata/pkg/types"
)

var _ types.Table = (*modelRelationshipsTable)(nil)

// modelRelationshipsTable implements the Table interface for relationship
// projections. The unique index over (model, endpoints, level, attribute
// pair) surfaces as ErrDuplicate on Set.
type modelRelationshipsTable struct {
	backend *Backend
}

const modelRelationshipColumns = "model_relationship_id, model_id, relationship_id, source_model_object_id, " +
	"target_model_object_id, source_model_attribute_id, target_model_attribute_id, layer, level, type, name, " +
	"description, created_at, updated_at"

var modelRelationshipFilterColumns = map[string]bool{
	"model_relationship_id":  true,
	"model_id":               true,
	"relationship_id":        true,
	"source_model_object_id": true,
	"target_model_object_id": true,
	"layer":                  true,
	"level":                  true,
}

// Get retrieves a model relationship by ID.
func (mt *modelRelationshipsTable) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	db, release, err := mt.backend.readLocked()
	if err != nil {
		return nil, err
	}
	defer release()

	mr, err := hydrateModelRelationship(db.QueryRow(
		"SELECT "+modelRelationshipColumns+" FROM model_relationships WHERE model_relationship_id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting model relationship %s: %w", id, err)
	}
	return mr, nil
}

// Set persists a relationship projection.
func (mt *modelRelationshipsTable) Set(id string, data any) (string, error) {
	mr, ok := data.(*types.ModelRelationship)
	if !ok {
		return "", types.ErrInvalidData
	}
	if mr.ModelID == "" || mr.SourceModelObjectID == "" || mr.TargetModelObjectID == "" {
		return "", types.ErrInvalidData
	}
	if !mr.Layer.Valid() {
		return "", types.ErrInvalidLayer
	}
	if !types.ValidRelationshipType(mr.Type) {
		return "", types.ErrInvalidRelationshipType
	}
	if err := checkLevel(mr.Level, &mr.SourceModelAttributeID, &mr.TargetModelAttributeID); err != nil {
		return "", err
	}
	if id == "" {
		id = newUUID()
	}
	mr.ModelRelationshipID = id

	db, release, err := mt.backend.writeLocked()
	if err != nil {
		return "", err
	}
	defer release()

	created, found, err := existingCreatedAt(db, "model_relationships", "model_relationship_id", id)
	if err != nil {
		return "", err
	}
	if found {
		mr.CreatedAt = created
	}
	stamp(&mr.CreatedAt, &mr.UpdatedAt)

	if found {
		_, err = db.Exec(
			`UPDATE model_relationships SET model_id = ?, relationship_id = ?, source_model_object_id = ?,
			target_model_object_id = ?, source_model_attribute_id = ?, target_model_attribute_id = ?, layer = ?,
			level = ?, type = ?, name = ?, description = ?, updated_at = ? WHERE model_relationship_id = ?`,
			mr.ModelID, nullable(mr.RelationshipID), mr.SourceModelObjectID, mr.TargetModelObjectID,
			nullable(mr.SourceModelAttributeID), nullable(mr.TargetModelAttributeID), string(mr.Layer),
			string(mr.Level), mr.Type, nullable(mr.Name), nullable(mr.Description), formatTime(mr.UpdatedAt), id,
		)
	} else {
		_, err = db.Exec(
			"INSERT INTO model_relationships ("+modelRelationshipColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			id, mr.ModelID, nullable(mr.RelationshipID), mr.SourceModelObjectID, mr.TargetModelObjectID,
			nullable(mr.SourceModelAttributeID), nullable(mr.TargetModelAttributeID), string(mr.Layer),
			string(mr.Level), mr.Type, nullable(mr.Name), nullable(mr.Description),
			formatTime(mr.CreatedAt), formatTime(mr.UpdatedAt),
		)
	}
	if err != nil {
		return "", translateError("persisting model relationship", err)
	}
	return id, nil
}

// Delete removes a relationship projection.
func (mt *modelRelationshipsTable) Delete(id string) error {
	db, release, err := mt.backend.writeLocked()
	if err != nil {
		return err
	}
	defer release()
	return deleteByID(db, "model_relationships", "model_relationship_id", id)
}

// Fetch queries model relationships matching the filter.
func (mt *modelRelationshipsTable) Fetch(filter types.Filter) ([]any, error) {
	query, args, err := buildSelect("SELECT "+modelRelationshipColumns+" FROM model_relationships", filter,
		modelRelationshipFilterColumns, "created_at, model_relationship_id")
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
		return nil, fmt.Errorf("fetching model relationships: %w", err)
	}
	defer rows.Close()

	results := []any{}
	for rows.Next() {
		mr, err := hydrateModelRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating model relationship: %w", err)
		}
		results = append(results, mr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating model relationships: %w", err)
	}
	return results, nil
}

// hydrateModelRelationship converts a row into a *types.ModelRelationship.
func hydrateModelRelationship(row rowScanner) (*types.ModelRelationship, error) {
	var mr types.ModelRelationship
	var layer, level, createdAt, updatedAt string
	var relID, sourceAttr, targetAttr, name, description sql.NullString
	if err := row.Scan(&mr.ModelRelationshipID, &mr.ModelID, &relID, &mr.SourceModelObjectID, &mr.TargetModelObjectID,
		&sourceAttr, &targetAttr, &layer, &level, &mr.Type, &name, &description, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	mr.RelationshipID = relID.String
	mr.SourceModelAttributeID = sourceAttr.String
	mr.TargetModelAttributeID = targetAttr.String
	mr.Layer = types.Layer(layer)
	mr.Level = types.Level(level)
	mr.Name = name.String
	mr.Description = description.String

	var err error
	if mr.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if mr.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &mr, nil
}
