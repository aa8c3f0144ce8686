package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/strata/pkg/types"
)

var _ types.Table = (*relationshipsTable)(nil)

// relationshipsTable implements the Table interface for canonical
// relationships.
type relationshipsTable struct {
	backend *Backend
}

const relationshipColumns = "relationship_id, source_object_id, target_object_id, source_attribute_id, target_attribute_id, " +
	"type, level, name, description, created_at, updated_at"

var relationshipFilterColumns = map[string]bool{
	"relationship_id":     true,
	"source_object_id":    true,
	"target_object_id":    true,
	"source_attribute_id": true,
	"target_attribute_id": true,
	"level":               true,
	"type":                true,
}

// Get retrieves a relationship by ID.
func (rt *relationshipsTable) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	db, release, err := rt.backend.readLocked()
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := hydrateRelationship(db.QueryRow("SELECT "+relationshipColumns+" FROM relationships WHERE relationship_id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting relationship %s: %w", id, err)
	}
	return r, nil
}

// Set persists a canonical relationship. Attribute ids are dropped when the
// level is object.
func (rt *relationshipsTable) Set(id string, data any) (string, error) {
	r, ok := data.(*types.Relationship)
	if !ok {
		return "", types.ErrInvalidData
	}
	if r.SourceObjectID == "" || r.TargetObjectID == "" {
		return "", types.ErrInvalidData
	}
	if !types.ValidRelationshipType(r.Type) {
		return "", types.ErrInvalidRelationshipType
	}
	if err := checkLevel(r.Level, &r.SourceAttributeID, &r.TargetAttributeID); err != nil {
		return "", err
	}
	if id == "" {
		id = newUUID()
	}
	r.RelationshipID = id

	db, release, err := rt.backend.writeLocked()
	if err != nil {
		return "", err
	}
	defer release()

	created, found, err := existingCreatedAt(db, "relationships", "relationship_id", id)
	if err != nil {
		return "", err
	}
	if found {
		r.CreatedAt = created
	}
	stamp(&r.CreatedAt, &r.UpdatedAt)

	if found {
		_, err = db.Exec(
			`UPDATE relationships SET source_object_id = ?, target_object_id = ?, source_attribute_id = ?,
			target_attribute_id = ?, type = ?, level = ?, name = ?, description = ?, updated_at = ?
			WHERE relationship_id = ?`,
			r.SourceObjectID, r.TargetObjectID, nullable(r.SourceAttributeID), nullable(r.TargetAttributeID),
			r.Type, string(r.Level), nullable(r.Name), nullable(r.Description), formatTime(r.UpdatedAt), id,
		)
	} else {
		_, err = db.Exec(
			"INSERT INTO relationships ("+relationshipColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			id, r.SourceObjectID, r.TargetObjectID, nullable(r.SourceAttributeID), nullable(r.TargetAttributeID),
			r.Type, string(r.Level), nullable(r.Name), nullable(r.Description),
			formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
		)
	}
	if err != nil {
		return "", translateError("persisting relationship", err)
	}
	return id, nil
}

// Delete removes a canonical relationship. Projections keep their rows with
// relationship_id cleared.
func (rt *relationshipsTable) Delete(id string) error {
	db, release, err := rt.backend.writeLocked()
	if err != nil {
		return err
	}
	defer release()
	return deleteByID(db, "relationships", "relationship_id", id)
}

// Fetch queries relationships matching the filter.
func (rt *relationshipsTable) Fetch(filter types.Filter) ([]any, error) {
	query, args, err := buildSelect("SELECT "+relationshipColumns+" FROM relationships", filter, relationshipFilterColumns,
		"created_at, relationship_id")
	if err != nil {
		return nil, err
	}

	db, release, err := rt.backend.readLocked()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching relationships: %w", err)
	}
	defer rows.Close()

	results := []any{}
	for rows.Next() {
		r, err := hydrateRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating relationship: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relationships: %w", err)
	}
	return results, nil
}

// checkLevel enforces that attribute level carries both attribute ids and
// clears them at object level.
func checkLevel(level types.Level, source, target *string) error {
	switch level {
	case types.LevelAttribute:
		if *source == "" || *target == "" {
			return types.ErrInvalidLevel
		}
	case types.LevelObject:
		*source, *target = "", ""
	default:
		return types.ErrInvalidLevel
	}
	return nil
}

// hydrateRelationship converts a row into a *types.Relationship.
func hydrateRelationship(row rowScanner) (*types.Relationship, error) {
	var r types.Relationship
	var level, createdAt, updatedAt string
	var sourceAttr, targetAttr, name, description sql.NullString
	if err := row.Scan(&r.RelationshipID, &r.SourceObjectID, &r.TargetObjectID, &sourceAttr, &targetAttr,
		&r.Type, &level, &name, &description, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	r.Level = types.Level(level)
	r.SourceAttributeID = sourceAttr.String
	r.TargetAttributeID = targetAttr.String
	r.Name = name.String
	r.Description = description.String

	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &r, nil
}
