package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// setupBackend creates an attached Backend in a temp dir and detaches it
// when the test ends.
func setupBackend(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}))
	t.Cleanup(func() { b.Detach() })
	return b
}

func table(t *testing.T, b *Backend, name string) types.Table {
	t.Helper()
	tbl, err := b.GetTable(name)
	require.NoError(t, err)
	return tbl
}

func TestBackend_Attach(t *testing.T) {
	dir := t.TempDir()
	b := NewBackend()
	config := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	require.NoError(t, b.Attach(config))
	defer b.Detach()

	_, err := os.Stat(filepath.Join(dir, DatabaseFile))
	assert.NoError(t, err, "database file should exist")

	assert.ErrorIs(t, b.Attach(config), types.ErrAlreadyAttached)

	version, err := b.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestBackend_AttachInvalidConfig(t *testing.T) {
	b := NewBackend()
	err := b.Attach(types.Config{DataDir: t.TempDir()})
	assert.ErrorIs(t, err, types.ErrBackendEmpty)
}

func TestBackend_Detach(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))

	require.NoError(t, b.Detach())
	assert.NoError(t, b.Detach(), "Detach is idempotent")

	_, err := b.GetTable(types.ModelsTable)
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}

func TestBackend_DetachedTableOperations(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	tbl := table(t, b, types.ModelsTable)
	require.NoError(t, b.Detach())

	_, err := tbl.Get("x")
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	_, err = tbl.Set("", &types.Model{Name: "m", Layer: types.LayerConceptual})
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	_, err = tbl.Fetch(nil)
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}

func TestBackend_GetTable(t *testing.T) {
	b := setupBackend(t)

	for _, name := range types.StandardTableNames {
		t.Run(name, func(t *testing.T) {
			tbl, err := b.GetTable(name)
			require.NoError(t, err)
			assert.NotNil(t, tbl)
		})
	}

	_, err := b.GetTable("ghosts")
	assert.ErrorIs(t, err, types.ErrTableNotFound)
}

func TestBackend_ReattachKeepsData(t *testing.T) {
	dir := t.TempDir()
	config := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	b := NewBackend()
	require.NoError(t, b.Attach(config))
	id, err := table(t, b, types.ModelsTable).Set("", &types.Model{Name: "Sales", Layer: types.LayerConceptual})
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	b2 := NewBackend()
	require.NoError(t, b2.Attach(config))
	defer b2.Detach()
	got, err := table(t, b2, types.ModelsTable).Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Sales", got.(*types.Model).Name)
}
