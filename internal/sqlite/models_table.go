package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/strata/pkg/types"
)

var _ types.Table = (*modelsTable)(nil)

// modelsTable implements the Table interface for models.
type modelsTable struct {
	backend *Backend
}

const modelColumns = "model_id, name, layer, parent_model_id, domain, target_system, description, created_at, updated_at"

var modelFilterColumns = map[string]bool{
	"model_id":        true,
	"name":            true,
	"layer":           true,
	"parent_model_id": true,
	"domain":          true,
}

// Get retrieves a model by ID.
func (mt *modelsTable) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	db, release, err := mt.backend.readLocked()
	if err != nil {
		return nil, err
	}
	defer release()

	m, err := hydrateModel(db.QueryRow("SELECT "+modelColumns+" FROM models WHERE model_id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting model %s: %w", id, err)
	}
	return m, nil
}

// Set persists a model. The parent model is not required to exist: family
// resolution tolerates dangling and cyclic parent chains.
func (mt *modelsTable) Set(id string, data any) (string, error) {
	m, ok := data.(*types.Model)
	if !ok {
		return "", types.ErrInvalidData
	}
	if id == "" {
		id = newUUID()
	}
	m.ModelID = id
	if err := m.Validate(); err != nil {
		return "", err
	}

	db, release, err := mt.backend.writeLocked()
	if err != nil {
		return "", err
	}
	defer release()

	created, found, err := existingCreatedAt(db, "models", "model_id", id)
	if err != nil {
		return "", err
	}
	if found {
		m.CreatedAt = created
	}
	stamp(&m.CreatedAt, &m.UpdatedAt)

	if found {
		_, err = db.Exec(
			`UPDATE models SET name = ?, layer = ?, parent_model_id = ?, domain = ?, target_system = ?,
			description = ?, updated_at = ? WHERE model_id = ?`,
			m.Name, string(m.Layer), nullable(m.ParentModelID), nullable(m.Domain), nullable(m.TargetSystem),
			nullable(m.Description), formatTime(m.UpdatedAt), id,
		)
	} else {
		_, err = db.Exec(
			"INSERT INTO models ("+modelColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			id, m.Name, string(m.Layer), nullable(m.ParentModelID), nullable(m.Domain), nullable(m.TargetSystem),
			nullable(m.Description), formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
		)
	}
	if err != nil {
		return "", translateError("persisting model", err)
	}
	return id, nil
}

// Delete removes a model. Its projections cascade; canonical objects homed
// in the model cascade as well.
func (mt *modelsTable) Delete(id string) error {
	db, release, err := mt.backend.writeLocked()
	if err != nil {
		return err
	}
	defer release()
	return deleteByID(db, "models", "model_id", id)
}

// Fetch queries models matching the filter, ordered by created_at then id.
func (mt *modelsTable) Fetch(filter types.Filter) ([]any, error) {
	query, args, err := buildSelect("SELECT "+modelColumns+" FROM models", filter, modelFilterColumns, "created_at, model_id")
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
		return nil, fmt.Errorf("fetching models: %w", err)
	}
	defer rows.Close()

	results := []any{}
	for rows.Next() {
		m, err := hydrateModel(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating model: %w", err)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating models: %w", err)
	}
	return results, nil
}

// hydrateModel converts a row into a *types.Model.
func hydrateModel(row rowScanner) (*types.Model, error) {
	var m types.Model
	var layer, createdAt, updatedAt string
	var parent, domain, target, description sql.NullString
	if err := row.Scan(&m.ModelID, &m.Name, &layer, &parent, &domain, &target, &description, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	m.Layer = types.Layer(layer)
	m.ParentModelID = parent.String
	m.Domain = domain.String
	m.TargetSystem = target.String
	m.Description = description.String

	var err error
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &m, nil
}
