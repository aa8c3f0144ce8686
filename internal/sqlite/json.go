package sqlite

import (
	"encoding/json"
	"fmt"
)

// snapshotTable describes how one table maps onto its JSONL snapshot file.
// Tables are listed parents first so a restore never inserts a child before
// the row it references.
type snapshotTable struct {
	file    string
	table   string
	key     string
	columns []string
}

var snapshotTables = []snapshotTable{
	{"models.jsonl", "models", "model_id", []string{
		"model_id", "name", "layer", "parent_model_id", "domain", "target_system", "description",
		"created_at", "updated_at",
	}},
	{"objects.jsonl", "objects", "object_id", []string{
		"object_id", "model_id", "name", "description", "origin_object_id", "origin_model_id",
		"created_at", "updated_at",
	}},
	{"attributes.jsonl", "attributes", "attribute_id", []string{
		"attribute_id", "object_id", "name", "data_type", "conceptual_type", "logical_type", "physical_type",
		"is_primary_key", "is_foreign_key", "is_nullable", "ordinal", "origin_attribute_id",
		"created_at", "updated_at",
	}},
	{"model_objects.jsonl", "model_objects", "model_object_id", []string{
		"model_object_id", "model_id", "object_id", "layer", "config", "origin_object_id", "origin_model_id",
		"created_at", "updated_at",
	}},
	{"model_attributes.jsonl", "model_attributes", "model_attribute_id", []string{
		"model_attribute_id", "model_id", "model_object_id", "attribute_id", "layer", "data_type",
		"is_primary_key", "is_foreign_key", "is_nullable", "ordinal", "created_at", "updated_at",
	}},
	{"relationships.jsonl", "relationships", "relationship_id", []string{
		"relationship_id", "source_object_id", "target_object_id", "source_attribute_id", "target_attribute_id",
		"type", "level", "name", "description", "created_at", "updated_at",
	}},
	{"model_relationships.jsonl", "model_relationships", "model_relationship_id", []string{
		"model_relationship_id", "model_id", "relationship_id", "source_model_object_id", "target_model_object_id",
		"source_model_attribute_id", "target_model_attribute_id", "layer", "level", "type", "name", "description",
		"created_at", "updated_at",
	}},
}

// documentColumns hold JSON text in SQLite and are written to snapshots as
// nested JSON rather than escaped strings.
var documentColumns = map[string]bool{
	"config": true,
}

// columnDefaults fill NOT NULL columns absent from a snapshot record.
var columnDefaults = map[string]any{
	"config":         "{}",
	"is_primary_key": 0,
	"is_foreign_key": 0,
	"is_nullable":    1,
	"ordinal":        0,
}

// encodeRow renders one scanned row as a JSONL record.
func encodeRow(columns []string, values []any) (json.RawMessage, error) {
	obj := make(map[string]any, len(columns))
	for i, col := range columns {
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		if s, ok := v.(string); ok && documentColumns[col] && json.Valid([]byte(s)) {
			v = json.RawMessage(s)
		}
		obj[col] = v
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return b, nil
}
