package sqlite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/strata/pkg/types"
)

func TestSnapshot_ExportRestore(t *testing.T) {
	src := setupBackend(t)
	f := seed(t, src)
	_, err := table(t, src, types.ModelObjectsTable).Set(f.orderMO, &types.ModelObject{
		ModelID: f.model, ObjectID: f.order, Layer: types.LayerConceptual,
		Config: types.LayerConfig{"visible": true, "metadata": map[string]any{"note": "x"}},
	})
	require.NoError(t, err)

	dir := t.TempDir()
	stats, err := src.Export(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[types.ModelsTable])
	assert.Equal(t, 2, stats[types.ObjectsTable])
	assert.Equal(t, 2, stats[types.ModelAttributesTable])

	raw, err := os.ReadFile(filepath.Join(dir, "model_objects.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"config":{"metadata":{"note":"x"},"visible":true}`)

	dst := setupBackend(t)
	stats, err = dst.Restore(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, stats[types.AttributesTable])

	got, err := table(t, dst, types.ModelObjectsTable).Get(f.orderMO)
	require.NoError(t, err)
	mo := got.(*types.ModelObject)
	assert.Equal(t, true, mo.Config["visible"])
	assert.Equal(t, map[string]any{"note": "x"}, mo.Config["metadata"])

	attr, err := table(t, dst, types.AttributesTable).Get(f.customerID)
	require.NoError(t, err)
	assert.True(t, attr.(*types.Attribute).IsPrimaryKey)
}

func TestSnapshot_RestoreReplacesContents(t *testing.T) {
	b := setupBackend(t)
	seed(t, b)

	stats, err := b.Restore(t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, stats[types.ModelsTable])

	models, err := table(t, b, types.ModelsTable).Fetch(nil)
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestSnapshot_RestoreSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	lines := []string{
		`{"model_id":"m1","name":"Sales","layer":"conceptual","created_at":"2026-01-01T00:00:00Z","updated_at":"2026-01-01T00:00:00Z"}`,
		`not json`,
		`{"model_id":"m2","name":"Bad","layer":"semantic","created_at":"2026-01-01T00:00:00Z","updated_at":"2026-01-01T00:00:00Z"}`,
		``,
		`{"model_id":"m3","name":"Sales L","layer":"logical","parent_model_id":"m1","future_field":1,"created_at":"2026-01-01T00:00:00Z","updated_at":"2026-01-01T00:00:00Z"}`,
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models.jsonl"), []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	b := setupBackend(t)
	stats, err := b.Restore(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, stats[types.ModelsTable])

	got, err := table(t, b, types.ModelsTable).Get("m3")
	require.NoError(t, err)
	assert.Equal(t, "m1", got.(*types.Model).ParentModelID)
}

func TestSnapshot_RestoreRejectsDanglingReference(t *testing.T) {
	dir := t.TempDir()
	line := `{"object_id":"o1","model_id":"ghost","name":"Order","created_at":"2026-01-01T00:00:00Z","updated_at":"2026-01-01T00:00:00Z"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "objects.jsonl"), []byte(line+"\n"), 0o644))

	b := setupBackend(t)
	f := seed(t, b)
	_, err := b.Restore(dir)
	require.Error(t, err)

	// The failed restore leaves the previous contents in place.
	_, err = table(t, b, types.ModelsTable).Get(f.model)
	assert.NoError(t, err)
}

func TestWriteJSONL_Atomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.jsonl")
	require.NoError(t, writeJSONL(path, nil))

	records, err := readJSONL(path)
	require.NoError(t, err)
	assert.Empty(t, records)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")

	missing, err := readJSONL(filepath.Join(dir, "absent.jsonl"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}
