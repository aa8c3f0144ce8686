package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/strata/pkg/types"
)

var _ types.Table = (*objectsTable)(nil)

// objectsTable implements the Table interface for canonical objects.
type objectsTable struct {
	backend *Backend
}

const objectColumns = "object_id, model_id, name, description, origin_object_id, origin_model_id, created_at, updated_at"

var objectFilterColumns = map[string]bool{
	"object_id":        true,
	"model_id":         true,
	"name":             true,
	"origin_object_id": true,
	"origin_model_id":  true,
}

// Get retrieves an object by ID.
func (ot *objectsTable) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	db, release, err := ot.backend.readLocked()
	if err != nil {
		return nil, err
	}
	defer release()

	o, err := hydrateObject(db.QueryRow("SELECT "+objectColumns+" FROM objects WHERE object_id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting object %s: %w", id, err)
	}
	return o, nil
}

// Set persists a canonical object. The home model must exist.
func (ot *objectsTable) Set(id string, data any) (string, error) {
	o, ok := data.(*types.Object)
	if !ok {
		return "", types.ErrInvalidData
	}
	if o.Name == "" {
		return "", types.ErrInvalidName
	}
	if o.ModelID == "" {
		return "", types.ErrInvalidData
	}
	if id == "" {
		id = newUUID()
	}
	o.ObjectID = id

	db, release, err := ot.backend.writeLocked()
	if err != nil {
		return "", err
	}
	defer release()

	created, found, err := existingCreatedAt(db, "objects", "object_id", id)
	if err != nil {
		return "", err
	}
	if found {
		o.CreatedAt = created
	}
	stamp(&o.CreatedAt, &o.UpdatedAt)

	if found {
		_, err = db.Exec(
			`UPDATE objects SET model_id = ?, name = ?, description = ?, origin_object_id = ?, origin_model_id = ?,
			updated_at = ? WHERE object_id = ?`,
			o.ModelID, o.Name, nullable(o.Description), nullable(o.OriginObjectID), nullable(o.OriginModelID),
			formatTime(o.UpdatedAt), id,
		)
	} else {
		_, err = db.Exec(
			"INSERT INTO objects ("+objectColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			id, o.ModelID, o.Name, nullable(o.Description), nullable(o.OriginObjectID), nullable(o.OriginModelID),
			formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
		)
	}
	if err != nil {
		return "", translateError("persisting object", err)
	}
	return id, nil
}

// Delete removes an object. Attributes, projections and relationships that
// reference it cascade.
func (ot *objectsTable) Delete(id string) error {
	db, release, err := ot.backend.writeLocked()
	if err != nil {
		return err
	}
	defer release()
	return deleteByID(db, "objects", "object_id", id)
}

// Fetch queries objects matching the filter, ordered by created_at then id.
func (ot *objectsTable) Fetch(filter types.Filter) ([]any, error) {
	query, args, err := buildSelect("SELECT "+objectColumns+" FROM objects", filter, objectFilterColumns, "created_at, object_id")
	if err != nil {
		return nil, err
	}

	db, release, err := ot.backend.readLocked()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching objects: %w", err)
	}
	defer rows.Close()

	results := []any{}
	for rows.Next() {
		o, err := hydrateObject(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating object: %w", err)
		}
		results = append(results, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating objects: %w", err)
	}
	return results, nil
}

// hydrateObject converts a row into a *types.Object.
func hydrateObject(row rowScanner) (*types.Object, error) {
	var o types.Object
	var createdAt, updatedAt string
	var description, originObject, originModel sql.NullString
	if err := row.Scan(&o.ObjectID, &o.ModelID, &o.Name, &description, &originObject, &originModel, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	o.Description = description.String
	o.OriginObjectID = originObject.String
	o.OriginModelID = originModel.String

	var err error
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &o, nil
}
