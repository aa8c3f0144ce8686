package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/strata/pkg/types"
)

var _ types.Table = (*modelObjectsTable)(nil)

// modelObjectsTable implements the Table interface for object projections.
// The layer config is stored as a JSON document in the config column.
type modelObjectsTable struct {
	backend *Backend
}

const modelObjectColumns = "model_object_id, model_id, object_id, layer, config, origin_object_id, origin_model_id, created_at, updated_at"

var modelObjectFilterColumns = map[string]bool{
	"model_object_id":  true,
	"model_id":         true,
	"object_id":        true,
	"layer":            true,
	"origin_object_id": true,
}

// Get retrieves a model object by ID.
func (mt *modelObjectsTable) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	db, release, err := mt.backend.readLocked()
	if err != nil {
		return nil, err
	}
	defer release()

	mo, err := hydrateModelObject(db.QueryRow("SELECT "+modelObjectColumns+" FROM model_objects WHERE model_object_id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting model object %s: %w", id, err)
	}
	return mo, nil
}

// Set persists an object projection. A second projection of the same object
// into the same model returns ErrDuplicate.
func (mt *modelObjectsTable) Set(id string, data any) (string, error) {
	mo, ok := data.(*types.ModelObject)
	if !ok {
		return "", types.ErrInvalidData
	}
	if mo.ModelID == "" || mo.ObjectID == "" {
		return "", types.ErrInvalidData
	}
	if !mo.Layer.Valid() {
		return "", types.ErrInvalidLayer
	}
	config, err := encodeConfig(mo.Config)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = newUUID()
	}
	mo.ModelObjectID = id

	db, release, err := mt.backend.writeLocked()
	if err != nil {
		return "", err
	}
	defer release()

	created, found, err := existingCreatedAt(db, "model_objects", "model_object_id", id)
	if err != nil {
		return "", err
	}
	if found {
		mo.CreatedAt = created
	}
	stamp(&mo.CreatedAt, &mo.UpdatedAt)

	if found {
		_, err = db.Exec(
			`UPDATE model_objects SET model_id = ?, object_id = ?, layer = ?, config = ?, origin_object_id = ?,
			origin_model_id = ?, updated_at = ? WHERE model_object_id = ?`,
			mo.ModelID, mo.ObjectID, string(mo.Layer), config, nullable(mo.OriginObjectID), nullable(mo.OriginModelID),
			formatTime(mo.UpdatedAt), id,
		)
	} else {
		_, err = db.Exec(
			"INSERT INTO model_objects ("+modelObjectColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			id, mo.ModelID, mo.ObjectID, string(mo.Layer), config, nullable(mo.OriginObjectID), nullable(mo.OriginModelID),
			formatTime(mo.CreatedAt), formatTime(mo.UpdatedAt),
		)
	}
	if err != nil {
		return "", translateError("persisting model object", err)
	}
	return id, nil
}

// Delete removes an object projection together with its attribute
// projections and the relationship projections that reference it.
func (mt *modelObjectsTable) Delete(id string) error {
	db, release, err := mt.backend.writeLocked()
	if err != nil {
		return err
	}
	defer release()
	return deleteByID(db, "model_objects", "model_object_id", id)
}

// Fetch queries model objects matching the filter.
func (mt *modelObjectsTable) Fetch(filter types.Filter) ([]any, error) {
	query, args, err := buildSelect("SELECT "+modelObjectColumns+" FROM model_objects", filter, modelObjectFilterColumns,
		"created_at, model_object_id")
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
		return nil, fmt.Errorf("fetching model objects: %w", err)
	}
	defer rows.Close()

	results := []any{}
	for rows.Next() {
		mo, err := hydrateModelObject(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating model object: %w", err)
		}
		results = append(results, mo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating model objects: %w", err)
	}
	return results, nil
}

func encodeConfig(c types.LayerConfig) (string, error) {
	if len(c) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("%w: encoding layer config: %v", types.ErrInvalidData, err)
	}
	return string(b), nil
}

func decodeConfig(raw string) (types.LayerConfig, error) {
	c := types.LayerConfig{}
	if raw == "" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decoding layer config: %w", err)
	}
	return c, nil
}

// hydrateModelObject converts a row into a *types.ModelObject.
func hydrateModelObject(row rowScanner) (*types.ModelObject, error) {
	var mo types.ModelObject
	var layer, config, createdAt, updatedAt string
	var originObject, originModel sql.NullString
	if err := row.Scan(&mo.ModelObjectID, &mo.ModelID, &mo.ObjectID, &layer, &config, &originObject, &originModel,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	mo.Layer = types.Layer(layer)
	mo.OriginObjectID = originObject.String
	mo.OriginModelID = originModel.String

	var err error
	if mo.Config, err = decodeConfig(config); err != nil {
		return nil, err
	}
	if mo.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if mo.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &mo, nil
}
